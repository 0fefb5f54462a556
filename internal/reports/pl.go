package reports

import (
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounts"
)

// costOfSalesGroup is the code group treated as cost of sales when deriving
// gross profit.
const costOfSalesGroup = "5"

// BuildProfitAndLoss aggregates revenue and expense activity for a half-open
// date range [from, to). Revenue is credits minus debits; expenses the
// reverse, grouped by account code group.
func BuildProfitAndLoss(activity []AccountActivity, from, to time.Time) ProfitAndLoss {
	pl := ProfitAndLoss{From: from, To: to}
	categories := make(map[string]*ExpenseCategory)
	var keys []string

	for _, acc := range activity {
		switch acc.Type {
		case accounts.TypeRevenue:
			row := ProfitAndLossRow{Code: acc.Code, Name: acc.Name, Amount: acc.Credit - acc.Debit}
			pl.Revenue = append(pl.Revenue, row)
			pl.TotalRevenue += row.Amount
		case accounts.TypeExpense:
			row := ProfitAndLossRow{Code: acc.Code, Name: acc.Name, Amount: acc.Debit - acc.Credit}
			if acc.GroupKey() == costOfSalesGroup {
				pl.CostOfSales = append(pl.CostOfSales, row)
				pl.TotalCost += row.Amount
				continue
			}
			key := acc.GroupKey()
			cat, ok := categories[key]
			if !ok {
				cat = &ExpenseCategory{Key: key}
				categories[key] = cat
				keys = append(keys, key)
			}
			cat.Rows = append(cat.Rows, row)
			cat.Total += row.Amount
			pl.TotalExpenses += row.Amount
		}
	}

	sort.Slice(pl.Revenue, func(i, j int) bool { return pl.Revenue[i].Code < pl.Revenue[j].Code })
	sort.Slice(pl.CostOfSales, func(i, j int) bool { return pl.CostOfSales[i].Code < pl.CostOfSales[j].Code })
	sort.Strings(keys)
	for _, key := range keys {
		cat := categories[key]
		sort.Slice(cat.Rows, func(i, j int) bool { return cat.Rows[i].Code < cat.Rows[j].Code })
		pl.Expenses = append(pl.Expenses, *cat)
	}

	pl.GrossProfit = pl.TotalRevenue - pl.TotalCost
	pl.NetIncome = pl.GrossProfit - pl.TotalExpenses
	return pl
}
