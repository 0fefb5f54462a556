package reports

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerline/ledgerline/internal/money"
)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders cents with thousands separators, e.g. "1,234.50".
func formatAmount(c money.Cents) string {
	return amountPrinter.Sprintf("%.2f", float64(c)/100)
}

// WriteTrialBalanceCSV serialises the trial balance to CSV.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Code", "Name", "Type", "Debit", "Credit", "Balance"}); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		if err := writer.Write([]string{
			row.Code, row.Name, string(row.Type),
			formatAmount(row.Debit), formatAmount(row.Credit), formatAmount(row.Balance),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "Total", "", formatAmount(tb.TotalDebit), formatAmount(tb.TotalCredit), ""}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteGeneralLedgerCSV serialises the general ledger listing to CSV.
func WriteGeneralLedgerCSV(w io.Writer, gl GeneralLedger) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Date", "Transaction", "Line", "Account", "Name", "Description", "Debit", "Credit"}); err != nil {
		return err
	}
	for _, line := range gl.Lines {
		if err := writer.Write([]string{
			line.Date.Format("2006-01-02"),
			line.TransactionID.String(),
			amountPrinter.Sprintf("%d", line.LineNo),
			line.AccountCode, line.AccountName, line.Description,
			formatAmount(line.Debit), formatAmount(line.Credit),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteProfitAndLossCSV serialises the income statement to CSV.
func WriteProfitAndLossCSV(w io.Writer, pl ProfitAndLoss) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Section", "Code", "Name", "Amount"}); err != nil {
		return err
	}
	for _, row := range pl.Revenue {
		if err := writer.Write([]string{"Revenue", row.Code, row.Name, formatAmount(row.Amount)}); err != nil {
			return err
		}
	}
	for _, row := range pl.CostOfSales {
		if err := writer.Write([]string{"Cost of Sales", row.Code, row.Name, formatAmount(row.Amount)}); err != nil {
			return err
		}
	}
	for _, cat := range pl.Expenses {
		for _, row := range cat.Rows {
			if err := writer.Write([]string{"Expenses " + cat.Key, row.Code, row.Name, formatAmount(row.Amount)}); err != nil {
				return err
			}
		}
	}
	totals := [][]string{
		{"Total Revenue", "", "", formatAmount(pl.TotalRevenue)},
		{"Gross Profit", "", "", formatAmount(pl.GrossProfit)},
		{"Total Expenses", "", "", formatAmount(pl.TotalExpenses)},
		{"Net Income", "", "", formatAmount(pl.NetIncome)},
	}
	for _, rec := range totals {
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBalanceSheetCSV serialises the balance sheet to CSV.
func WriteBalanceSheetCSV(w io.Writer, bs BalanceSheet) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Section", "Code", "Name", "Balance"}); err != nil {
		return err
	}
	for _, section := range []BalanceSheetSection{bs.Assets, bs.Liabilities, bs.Equity} {
		for _, row := range section.Rows {
			if err := writer.Write([]string{section.Label, row.Code, row.Name, formatAmount(row.Balance)}); err != nil {
				return err
			}
		}
		if err := writer.Write([]string{section.Label + " Total", "", "", formatAmount(section.Total)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Retained Earnings", "", "", formatAmount(bs.RetainedEarnings)}); err != nil {
		return err
	}
	if err := writer.Write([]string{"Liabilities + Equity", "", "", formatAmount(bs.TotalLiabEquity)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
