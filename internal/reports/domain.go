// Package reports implements the statement generator: trial balance, general
// ledger, profit & loss, and balance sheet. All builders are pure functions
// over aggregated ledger activity; they take no write locks and never correct
// the numbers. Integrity violations are surfaced as flags on the output.
package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/money"
)

// AccountActivity is one account's aggregated debit/credit movement, the raw
// material for every statement.
type AccountActivity struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounts.AccountType
	Debit     money.Cents
	Credit    money.Cents
}

// GroupKey returns the code prefix used for statement grouping.
func (a AccountActivity) GroupKey() string {
	acc := accounts.Account{Code: a.Code}
	return acc.GroupKey()
}

// TrialBalanceRow is one account in the trial balance.
type TrialBalanceRow struct {
	AccountID int64                `json:"accountId"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Debit     money.Cents          `json:"debit"`
	Credit    money.Cents          `json:"credit"`
	Balance   money.Cents          `json:"balance"`
}

// TrialBalance lists every account balance with column totals. Balanced is
// false when total debits and credits diverge, which indicates a posting
// engine defect rather than an input error.
type TrialBalance struct {
	AsOf        *time.Time        `json:"asOf,omitempty"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  money.Cents       `json:"totalDebit"`
	TotalCredit money.Cents       `json:"totalCredit"`
	Balanced    bool              `json:"balanced"`
}

// GeneralLedgerLine is one ledger entry joined with account metadata.
type GeneralLedgerLine struct {
	Date          time.Time   `json:"date"`
	TransactionID uuid.UUID   `json:"transactionId"`
	LineNo        int         `json:"lineNo"`
	AccountCode   string      `json:"accountCode"`
	AccountName   string      `json:"accountName"`
	Description   string      `json:"description"`
	Debit         money.Cents `json:"debit"`
	Credit        money.Cents `json:"credit"`
}

// GeneralLedger is the flat chronological entry listing.
type GeneralLedger struct {
	From  time.Time           `json:"from"`
	To    time.Time           `json:"to"`
	Lines []GeneralLedgerLine `json:"lines"`
}

// ProfitAndLossRow is one revenue or expense account summary.
type ProfitAndLossRow struct {
	Code   string      `json:"code"`
	Name   string      `json:"name"`
	Amount money.Cents `json:"amount"`
}

// ExpenseCategory groups expense accounts by code group.
type ExpenseCategory struct {
	Key   string             `json:"key"`
	Rows  []ProfitAndLossRow `json:"rows"`
	Total money.Cents        `json:"total"`
}

// ProfitAndLoss is the period income statement. Cost of sales (the "5" code
// group) is split out so gross profit can be derived before operating
// expenses.
type ProfitAndLoss struct {
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	Revenue       []ProfitAndLossRow `json:"revenue"`
	TotalRevenue  money.Cents        `json:"totalRevenue"`
	CostOfSales   []ProfitAndLossRow `json:"costOfSales"`
	TotalCost     money.Cents        `json:"totalCost"`
	Expenses      []ExpenseCategory  `json:"expenses"`
	TotalExpenses money.Cents        `json:"totalExpenses"`
	GrossProfit   money.Cents        `json:"grossProfit"`
	NetIncome     money.Cents        `json:"netIncome"`
}

// BalanceSheetRow summarises one balance sheet account.
type BalanceSheetRow struct {
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Balance money.Cents `json:"balance"`
}

// BalanceSheetSection contains the accounts and total for a classification.
type BalanceSheetSection struct {
	Label string            `json:"label"`
	Rows  []BalanceSheetRow `json:"rows"`
	Total money.Cents       `json:"total"`
}

// BalanceSheet groups asset, liability, and equity balances cumulative from
// inception through AsOf. Balance sheet accounts are never period-reset; the
// as-of date is inclusive. Balanced tolerates a one-cent rounding difference;
// anything larger is reported via OutOfBalance, never hidden.
type BalanceSheet struct {
	AsOf             time.Time           `json:"asOf"`
	Assets           BalanceSheetSection `json:"assets"`
	Liabilities      BalanceSheetSection `json:"liabilities"`
	Equity           BalanceSheetSection `json:"equity"`
	RetainedEarnings money.Cents         `json:"retainedEarnings"`
	TotalLiabEquity  money.Cents         `json:"totalLiabilitiesAndEquity"`
	OutOfBalance     money.Cents         `json:"outOfBalance"`
	Balanced         bool                `json:"balanced"`
}
