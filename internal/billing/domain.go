// Package billing owns invoice and bill lifecycle. Each non-cancelled
// document has exactly one ledger transaction recognising the receivable or
// payable; payments settle documents through the posting engine.
package billing

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/money"
)

// DocStatus enumerates invoice/bill lifecycle values.
type DocStatus string

const (
	StatusPending   DocStatus = "PENDING"
	StatusPaid      DocStatus = "PAID"
	StatusOverdue   DocStatus = "OVERDUE"
	StatusCancelled DocStatus = "CANCELLED"
)

// Invoice is a receivable document owned by the billing subsystem.
type Invoice struct {
	ID            int64       `json:"id"`
	CompanyID     int64       `json:"companyId"`
	CustomerID    int64       `json:"customerId"`
	Number        string      `json:"number"`
	IssueDate     time.Time   `json:"issueDate"`
	DueDate       time.Time   `json:"dueDate"`
	Terms         string      `json:"terms"`
	Total         money.Cents `json:"total"`
	Tax           money.Cents `json:"tax"`
	Status        DocStatus   `json:"status"`
	TransactionID *uuid.UUID  `json:"transactionId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Bill is a payable document.
type Bill struct {
	ID            int64       `json:"id"`
	CompanyID     int64       `json:"companyId"`
	VendorID      int64       `json:"vendorId"`
	Number        string      `json:"number"`
	IssueDate     time.Time   `json:"issueDate"`
	DueDate       time.Time   `json:"dueDate"`
	Terms         string      `json:"terms"`
	Total         money.Cents `json:"total"`
	Status        DocStatus   `json:"status"`
	TransactionID *uuid.UUID  `json:"transactionId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// InvoiceInput describes an invoice creation request.
type InvoiceInput struct {
	CustomerID int64
	Number     string
	IssueDate  time.Time
	Terms      string
	Total      money.Cents
	Tax        money.Cents
}

// BillInput describes a bill creation request.
type BillInput struct {
	VendorID  int64
	Number    string
	IssueDate time.Time
	Terms     string
	Total     money.Cents
}

// PaymentInput records a payment against a document.
type PaymentInput struct {
	Amount money.Cents
	PaidAt time.Time
	Method string
	Note   string
}

var (
	// ErrDocumentNotFound indicates a missing invoice or bill.
	ErrDocumentNotFound = errors.New("billing: document not found")
	// ErrDocumentClosed indicates an operation on a paid or cancelled document.
	ErrDocumentClosed = errors.New("billing: document already closed")
	// ErrInvalidAmount indicates a non-positive document or payment amount.
	ErrInvalidAmount = errors.New("billing: amount must be positive")
	// ErrPostingAccountMissing indicates a chart account required for
	// document posting does not exist for the company.
	ErrPostingAccountMissing = errors.New("billing: posting account missing from chart")
)

// defaultTermsDays applies when a payment terms string cannot be parsed.
const defaultTermsDays = 30

var netTermsPattern = regexp.MustCompile(`(?i)^\s*net\s*(\d+)\s*$`)

// ParseTerms reads a "Net N" payment terms string into a day count,
// defaulting to 30 days when unparseable.
func ParseTerms(terms string) int {
	m := netTermsPattern.FindStringSubmatch(terms)
	if m == nil {
		return defaultTermsDays
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days < 0 {
		return defaultTermsDays
	}
	return days
}

// DueDate derives the due date from issue date and terms.
func DueDate(issue time.Time, terms string) time.Time {
	return issue.AddDate(0, 0, ParseTerms(terms))
}
