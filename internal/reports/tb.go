package reports

import (
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounts"
)

// BuildTrialBalance converts account activity into trial balance rows with
// column totals. Balances follow the account's normal side: debit-normal
// accounts report debits minus credits, credit-normal the reverse.
func BuildTrialBalance(activity []AccountActivity, asOf *time.Time) TrialBalance {
	tb := TrialBalance{AsOf: asOf}
	for _, acc := range activity {
		if acc.Debit == 0 && acc.Credit == 0 {
			continue
		}
		row := TrialBalanceRow{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     acc.Debit,
			Credit:    acc.Credit,
		}
		if acc.Type.NormalSide() == accounts.SideDebit {
			row.Balance = acc.Debit - acc.Credit
		} else {
			row.Balance = acc.Credit - acc.Debit
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit += row.Debit
		tb.TotalCredit += row.Credit
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	tb.Balanced = tb.TotalDebit == tb.TotalCredit
	return tb
}
