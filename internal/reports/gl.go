package reports

import (
	"sort"
	"time"
)

// BuildGeneralLedger orders entry lines by (date, transaction id, line no) so
// the listing is deterministic regardless of fetch order.
func BuildGeneralLedger(lines []GeneralLedgerLine, from, to time.Time) GeneralLedger {
	sorted := append([]GeneralLedgerLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID.String() < b.TransactionID.String()
		}
		return a.LineNo < b.LineNo
	})
	return GeneralLedger{From: from, To: to, Lines: sorted}
}
