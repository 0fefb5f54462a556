// Package ledger implements the double-entry posting engine. Entries are
// append-only; corrections post reversing transactions, never mutate history.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/money"
)

// SourceKind tags the business document a transaction originates from.
type SourceKind string

const (
	SourceInvoice        SourceKind = "INVOICE"
	SourceBill           SourceKind = "BILL"
	SourceBankRow        SourceKind = "BANK_ROW"
	SourceOpeningBalance SourceKind = "OPENING_BALANCE"
	SourcePayment        SourceKind = "PAYMENT"
	SourceManual         SourceKind = "MANUAL"
	SourceReversal       SourceKind = "REVERSAL"
)

// SourceRef identifies the document behind a posting.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   int64      `json:"id"`
}

// Zero reports whether the reference is unset.
func (s SourceRef) Zero() bool {
	return s.Kind == "" && s.ID == 0
}

// Entry is one debit or credit line against one account. Exactly one of
// Debit/Credit is nonzero.
type Entry struct {
	ID            int64       `json:"id"`
	CompanyID     int64       `json:"companyId"`
	AccountID     int64       `json:"accountId"`
	TransactionID uuid.UUID   `json:"transactionId"`
	Date          time.Time   `json:"date"`
	Debit         money.Cents `json:"debit"`
	Credit        money.Cents `json:"credit"`
	LineNo        int         `json:"lineNo"`
	Description   string      `json:"description"`
	Source        SourceRef   `json:"source"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Transaction is an atomic balanced group of entries recording one business
// event.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   int64      `json:"companyId"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	Source      SourceRef  `json:"source"`
	Settles     *SourceRef `json:"settles,omitempty"`
	ReversalOf  *uuid.UUID `json:"reversalOf,omitempty"`
	ReversedBy  *uuid.UUID `json:"reversedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Entries     []Entry    `json:"entries,omitempty"`
}

// PostingLine carries one side of a posting. Exactly one of Debit/Credit must
// be positive.
type PostingLine struct {
	AccountID int64
	Debit     money.Cents
	Credit    money.Cents
}

// PostingInput groups fields required to post a transaction.
type PostingInput struct {
	Date        time.Time
	Description string
	Source      SourceRef
	// Settles names the invoice or bill this posting pays down, if any. When
	// the cumulative settled amount covers the document total its status
	// flips to PAID inside the same database transaction.
	Settles *SourceRef
	Lines   []PostingLine
}

var (
	// ErrUnknownAccount indicates a line references a missing or foreign account.
	ErrUnknownAccount = errors.New("ledger: unknown account")
	// ErrInsufficientLines indicates fewer than two posting lines.
	ErrInsufficientLines = errors.New("ledger: transaction requires at least two lines")
	// ErrUnbalanced indicates debit and credit totals differ.
	ErrUnbalanced = errors.New("ledger: debits and credits must balance")
	// ErrInvalidAmount indicates a negative, empty, or two-sided line amount.
	ErrInvalidAmount = errors.New("ledger: invalid line amount")
	// ErrTransactionNotFound indicates a missing transaction id.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrAlreadyReversed indicates the transaction was reversed before.
	ErrAlreadyReversed = errors.New("ledger: transaction already reversed")
	// ErrSourceAlreadyLinked indicates the source document was posted before.
	ErrSourceAlreadyLinked = errors.New("ledger: source document already posted")
	// ErrInvalidSettlement indicates a Settles reference that is not an
	// invoice or bill.
	ErrInvalidSettlement = errors.New("ledger: settlement must reference an invoice or bill")
)

// EntryFilter scopes read queries for the statement generator.
type EntryFilter struct {
	CompanyID int64
	From      *time.Time // inclusive
	To        *time.Time // exclusive
}
