package reports

import (
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/money"
)

// balanceTolerance is the rounding slack allowed before a balance sheet is
// flagged unbalanced.
const balanceTolerance = money.Cents(1)

// BuildBalanceSheet groups cumulative-from-inception balances through asOf.
// Revenue and expense activity folds into a retained earnings equity line so
// the statement closes. A violation of assets == liabilities + equity beyond
// one cent is surfaced via Balanced/OutOfBalance, never silently corrected.
func BuildBalanceSheet(activity []AccountActivity, asOf time.Time) BalanceSheet {
	bs := BalanceSheet{
		AsOf:        asOf,
		Assets:      BalanceSheetSection{Label: "Assets"},
		Liabilities: BalanceSheetSection{Label: "Liabilities"},
		Equity:      BalanceSheetSection{Label: "Equity"},
	}

	for _, acc := range activity {
		switch acc.Type {
		case accounts.TypeAsset:
			appendBSRow(&bs.Assets, acc, acc.Debit-acc.Credit)
		case accounts.TypeLiability:
			appendBSRow(&bs.Liabilities, acc, acc.Credit-acc.Debit)
		case accounts.TypeEquity:
			appendBSRow(&bs.Equity, acc, acc.Credit-acc.Debit)
		case accounts.TypeRevenue:
			bs.RetainedEarnings += acc.Credit - acc.Debit
		case accounts.TypeExpense:
			bs.RetainedEarnings -= acc.Debit - acc.Credit
		}
	}

	for _, section := range []*BalanceSheetSection{&bs.Assets, &bs.Liabilities, &bs.Equity} {
		sort.Slice(section.Rows, func(i, j int) bool { return section.Rows[i].Code < section.Rows[j].Code })
	}

	bs.TotalLiabEquity = bs.Liabilities.Total + bs.Equity.Total + bs.RetainedEarnings
	bs.OutOfBalance = bs.Assets.Total - bs.TotalLiabEquity
	bs.Balanced = bs.OutOfBalance.Abs() <= balanceTolerance
	return bs
}

func appendBSRow(section *BalanceSheetSection, acc AccountActivity, balance money.Cents) {
	if balance == 0 && acc.Debit == 0 && acc.Credit == 0 {
		return
	}
	section.Rows = append(section.Rows, BalanceSheetRow{Code: acc.Code, Name: acc.Name, Balance: balance})
	section.Total += balance
}
