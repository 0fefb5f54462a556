// Package bankfeed ingests third-party bank CSV exports. Imports tolerate
// partial failure: malformed rows are dropped and counted, never abort the
// feed. Imported rows are staging data until categorised into the ledger.
package bankfeed

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/money"
)

// Row is one imported bank statement line. Amount keeps the feed's sign
// convention: negative is money out.
type Row struct {
	ID             int64       `json:"id"`
	CompanyID      int64       `json:"companyId"`
	BankAccountID  int64       `json:"bankAccountId"`
	Date           time.Time   `json:"date"`
	Description    string      `json:"description"`
	Amount         money.Cents `json:"amount"`
	RunningBalance money.Cents `json:"runningBalance"`
	Position       int         `json:"position"`
	Category       string      `json:"category,omitempty"`
	CustomerID     *int64      `json:"customerId,omitempty"`
	VendorID       *int64      `json:"vendorId,omitempty"`
	TransactionID  *uuid.UUID  `json:"transactionId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ParsedRow is a feed line that survived parsing, before persistence.
type ParsedRow struct {
	Date        time.Time
	Description string
	Amount      money.Cents
}

// ImportResult summarises one feed import.
type ImportResult struct {
	Parsed  int   `json:"parsed"`
	Skipped int   `json:"skipped"`
	Rows    []Row `json:"rows"`
}

// CategorizeInput attaches accounting meaning to a staged row.
type CategorizeInput struct {
	Category   string
	AccountID  int64 // offset account the row posts against
	CustomerID *int64
	VendorID   *int64
}

// BankAccount links a feed source to its ledger account.
type BankAccount struct {
	ID              int64  `json:"id"`
	CompanyID       int64  `json:"companyId"`
	Name            string `json:"name"`
	LedgerAccountID int64  `json:"ledgerAccountId"`
}

var (
	// ErrMissingHeaders indicates the feed lacks date, description or
	// amount columns.
	ErrMissingHeaders = errors.New("bankfeed: feed must have date, description and amount columns")
	// ErrRowNotFound indicates an unknown staged row.
	ErrRowNotFound = errors.New("bankfeed: row not found")
	// ErrRowAlreadyPosted indicates the row already has a ledger transaction.
	ErrRowAlreadyPosted = errors.New("bankfeed: row already posted to ledger")
	// ErrBankAccountNotFound indicates an unknown bank account.
	ErrBankAccountNotFound = errors.New("bankfeed: bank account not found")
)
