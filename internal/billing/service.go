package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// Chart codes documents post against. Companies seeded with the default
// chart have all of them; others must create matching codes first.
const (
	codeBank       = "1100"
	codeReceivable = "1200"
	codePayable    = "2000"
	codeSalesTax   = "2100"
	codeRevenue    = "4000"
	codeExpense    = "6000"
)

// RepositoryPort abstracts document persistence for the service.
type RepositoryPort interface {
	InsertInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, companyID, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error)
	SetInvoicePosting(ctx context.Context, companyID, id int64, txID uuid.UUID) error
	SetInvoiceStatus(ctx context.Context, companyID, id int64, status DocStatus) error
	DeleteInvoice(ctx context.Context, companyID, id int64) error

	InsertBill(ctx context.Context, b *Bill) error
	GetBill(ctx context.Context, companyID, id int64) (*Bill, error)
	ListBills(ctx context.Context, companyID int64) ([]Bill, error)
	SetBillPosting(ctx context.Context, companyID, id int64, txID uuid.UUID) error
	SetBillStatus(ctx context.Context, companyID, id int64, status DocStatus) error
	DeleteBill(ctx context.Context, companyID, id int64) error

	InsertPayment(ctx context.Context, companyID int64, docKind string, docID int64, in PaymentInput) (int64, error)
	DeletePayment(ctx context.Context, companyID, id int64) error
	AccountIDByCode(ctx context.Context, companyID int64, code string) (int64, error)
	MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error)
}

// Poster is the slice of the ledger service billing drives.
type Poster interface {
	Post(ctx context.Context, companyID int64, input ledger.PostingInput) (uuid.UUID, error)
	Reverse(ctx context.Context, companyID int64, original uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	repo   RepositoryPort
	poster Poster
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, poster Poster, log *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, log: log, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) { s.now = now }

// CreateInvoice stores the invoice and posts its recognition transaction:
// receivable debited for the total, revenue and sales tax credited.
func (s *Service) CreateInvoice(ctx context.Context, companyID int64, in InvoiceInput) (*Invoice, error) {
	if in.Total <= 0 || in.Tax < 0 || in.Tax >= in.Total {
		return nil, ErrInvalidAmount
	}
	arID, err := s.repo.AccountIDByCode(ctx, companyID, codeReceivable)
	if err != nil {
		return nil, err
	}
	revenueID, err := s.repo.AccountIDByCode(ctx, companyID, codeRevenue)
	if err != nil {
		return nil, err
	}
	var taxID int64
	if in.Tax > 0 {
		if taxID, err = s.repo.AccountIDByCode(ctx, companyID, codeSalesTax); err != nil {
			return nil, err
		}
	}

	inv := &Invoice{
		CompanyID:  companyID,
		CustomerID: in.CustomerID,
		Number:     in.Number,
		IssueDate:  in.IssueDate,
		DueDate:    DueDate(in.IssueDate, in.Terms),
		Terms:      in.Terms,
		Total:      in.Total,
		Tax:        in.Tax,
		Status:     StatusPending,
	}
	if err := s.repo.InsertInvoice(ctx, inv); err != nil {
		return nil, err
	}

	lines := []ledger.PostingLine{
		{AccountID: arID, Debit: in.Total},
		{AccountID: revenueID, Credit: in.Total - in.Tax},
	}
	if in.Tax > 0 {
		lines = append(lines, ledger.PostingLine{AccountID: taxID, Credit: in.Tax})
	}
	txID, err := s.poster.Post(ctx, companyID, ledger.PostingInput{
		Date:        in.IssueDate,
		Description: "Invoice " + inv.Number,
		Source:      ledger.SourceRef{Kind: ledger.SourceInvoice, ID: inv.ID},
		Lines:       lines,
	})
	if err != nil {
		if derr := s.repo.DeleteInvoice(ctx, companyID, inv.ID); derr != nil {
			s.log.Error("orphan invoice left after failed posting",
				slog.Int64("invoiceId", inv.ID), slog.Any("error", derr))
		}
		return nil, err
	}
	if err := s.repo.SetInvoicePosting(ctx, companyID, inv.ID, txID); err != nil {
		return nil, err
	}
	inv.TransactionID = &txID
	return inv, nil
}

// CreateBill stores the bill and posts expense against accounts payable.
func (s *Service) CreateBill(ctx context.Context, companyID int64, in BillInput) (*Bill, error) {
	if in.Total <= 0 {
		return nil, ErrInvalidAmount
	}
	expenseID, err := s.repo.AccountIDByCode(ctx, companyID, codeExpense)
	if err != nil {
		return nil, err
	}
	apID, err := s.repo.AccountIDByCode(ctx, companyID, codePayable)
	if err != nil {
		return nil, err
	}

	b := &Bill{
		CompanyID: companyID,
		VendorID:  in.VendorID,
		Number:    in.Number,
		IssueDate: in.IssueDate,
		DueDate:   DueDate(in.IssueDate, in.Terms),
		Terms:     in.Terms,
		Total:     in.Total,
		Status:    StatusPending,
	}
	if err := s.repo.InsertBill(ctx, b); err != nil {
		return nil, err
	}

	txID, err := s.poster.Post(ctx, companyID, ledger.PostingInput{
		Date:        in.IssueDate,
		Description: "Bill " + b.Number,
		Source:      ledger.SourceRef{Kind: ledger.SourceBill, ID: b.ID},
		Lines: []ledger.PostingLine{
			{AccountID: expenseID, Debit: in.Total},
			{AccountID: apID, Credit: in.Total},
		},
	})
	if err != nil {
		if derr := s.repo.DeleteBill(ctx, companyID, b.ID); derr != nil {
			s.log.Error("orphan bill left after failed posting",
				slog.Int64("billId", b.ID), slog.Any("error", derr))
		}
		return nil, err
	}
	if err := s.repo.SetBillPosting(ctx, companyID, b.ID, txID); err != nil {
		return nil, err
	}
	b.TransactionID = &txID
	return b, nil
}

// RecordInvoicePayment posts cash received against the receivable. The
// invoice flips to PAID inside the posting transaction once payments cover
// the total.
func (s *Service) RecordInvoicePayment(ctx context.Context, companyID, invoiceID int64, in PaymentInput) (*Invoice, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	inv, err := s.repo.GetInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending && inv.Status != StatusOverdue {
		return nil, ErrDocumentClosed
	}
	bankID, err := s.repo.AccountIDByCode(ctx, companyID, codeBank)
	if err != nil {
		return nil, err
	}
	arID, err := s.repo.AccountIDByCode(ctx, companyID, codeReceivable)
	if err != nil {
		return nil, err
	}

	paymentID, err := s.repo.InsertPayment(ctx, companyID, string(ledger.SourceInvoice), invoiceID, in)
	if err != nil {
		return nil, err
	}
	_, err = s.poster.Post(ctx, companyID, ledger.PostingInput{
		Date:        in.PaidAt,
		Description: "Payment for invoice " + inv.Number,
		Source:      ledger.SourceRef{Kind: ledger.SourcePayment, ID: paymentID},
		Settles:     &ledger.SourceRef{Kind: ledger.SourceInvoice, ID: invoiceID},
		Lines: []ledger.PostingLine{
			{AccountID: bankID, Debit: in.Amount},
			{AccountID: arID, Credit: in.Amount},
		},
	})
	if err != nil {
		if derr := s.repo.DeletePayment(ctx, companyID, paymentID); derr != nil {
			s.log.Error("orphan payment left after failed posting",
				slog.Int64("paymentId", paymentID), slog.Any("error", derr))
		}
		return nil, err
	}
	return s.repo.GetInvoice(ctx, companyID, invoiceID)
}

// RecordBillPayment posts cash paid against the payable.
func (s *Service) RecordBillPayment(ctx context.Context, companyID, billID int64, in PaymentInput) (*Bill, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	b, err := s.repo.GetBill(ctx, companyID, billID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending && b.Status != StatusOverdue {
		return nil, ErrDocumentClosed
	}
	apID, err := s.repo.AccountIDByCode(ctx, companyID, codePayable)
	if err != nil {
		return nil, err
	}
	bankID, err := s.repo.AccountIDByCode(ctx, companyID, codeBank)
	if err != nil {
		return nil, err
	}

	paymentID, err := s.repo.InsertPayment(ctx, companyID, string(ledger.SourceBill), billID, in)
	if err != nil {
		return nil, err
	}
	_, err = s.poster.Post(ctx, companyID, ledger.PostingInput{
		Date:        in.PaidAt,
		Description: "Payment for bill " + b.Number,
		Source:      ledger.SourceRef{Kind: ledger.SourcePayment, ID: paymentID},
		Settles:     &ledger.SourceRef{Kind: ledger.SourceBill, ID: billID},
		Lines: []ledger.PostingLine{
			{AccountID: apID, Debit: in.Amount},
			{AccountID: bankID, Credit: in.Amount},
		},
	})
	if err != nil {
		if derr := s.repo.DeletePayment(ctx, companyID, paymentID); derr != nil {
			s.log.Error("orphan payment left after failed posting",
				slog.Int64("paymentId", paymentID), slog.Any("error", derr))
		}
		return nil, err
	}
	return s.repo.GetBill(ctx, companyID, billID)
}

// CancelInvoice reverses the open invoice's recognition transaction and
// marks it CANCELLED. Paid invoices cannot be cancelled.
func (s *Service) CancelInvoice(ctx context.Context, companyID, invoiceID int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending && inv.Status != StatusOverdue {
		return nil, ErrDocumentClosed
	}
	if inv.TransactionID != nil {
		if _, err := s.poster.Reverse(ctx, companyID, *inv.TransactionID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetInvoiceStatus(ctx, companyID, invoiceID, StatusCancelled); err != nil {
		return nil, err
	}
	inv.Status = StatusCancelled
	return inv, nil
}

// CancelBill mirrors CancelInvoice for payables.
func (s *Service) CancelBill(ctx context.Context, companyID, billID int64) (*Bill, error) {
	b, err := s.repo.GetBill(ctx, companyID, billID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending && b.Status != StatusOverdue {
		return nil, ErrDocumentClosed
	}
	if b.TransactionID != nil {
		if _, err := s.poster.Reverse(ctx, companyID, *b.TransactionID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetBillStatus(ctx, companyID, billID, StatusCancelled); err != nil {
		return nil, err
	}
	b.Status = StatusCancelled
	return b, nil
}

func (s *Service) GetInvoice(ctx context.Context, companyID, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, companyID, id)
}

func (s *Service) ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, companyID)
}

func (s *Service) GetBill(ctx context.Context, companyID, id int64) (*Bill, error) {
	return s.repo.GetBill(ctx, companyID, id)
}

func (s *Service) ListBills(ctx context.Context, companyID int64) ([]Bill, error) {
	return s.repo.ListBills(ctx, companyID)
}

// MarkOverdue flips pending documents past due to OVERDUE as of now.
func (s *Service) MarkOverdue(ctx context.Context, companyID int64) (int64, error) {
	return s.repo.MarkOverdue(ctx, companyID, s.now())
}
