package billing

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/money"
)

type memoryRepo struct {
	accounts map[string]int64
	invoices map[int64]*Invoice
	bills    map[int64]*Bill
	payments map[int64]PaymentInput
	settled  map[ledger.SourceRef]money.Cents
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: map[string]int64{
			codeBank: 10, codeReceivable: 11, codePayable: 12,
			codeSalesTax: 13, codeRevenue: 14, codeExpense: 15,
		},
		invoices: map[int64]*Invoice{},
		bills:    map[int64]*Bill{},
		payments: map[int64]PaymentInput{},
		settled:  map[ledger.SourceRef]money.Cents{},
	}
}

func (m *memoryRepo) id() int64 { m.nextID++; return m.nextID }

func (m *memoryRepo) InsertInvoice(_ context.Context, inv *Invoice) error {
	inv.ID = m.id()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memoryRepo) GetInvoice(_ context.Context, _ int64, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memoryRepo) ListInvoices(_ context.Context, _ int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, nil
}

func (m *memoryRepo) SetInvoicePosting(_ context.Context, _ int64, id int64, txID uuid.UUID) error {
	m.invoices[id].TransactionID = &txID
	return nil
}

func (m *memoryRepo) SetInvoiceStatus(_ context.Context, _ int64, id int64, status DocStatus) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrDocumentNotFound
	}
	inv.Status = status
	return nil
}

func (m *memoryRepo) DeleteInvoice(_ context.Context, _ int64, id int64) error {
	delete(m.invoices, id)
	return nil
}

func (m *memoryRepo) InsertBill(_ context.Context, b *Bill) error {
	b.ID = m.id()
	cp := *b
	m.bills[b.ID] = &cp
	return nil
}

func (m *memoryRepo) GetBill(_ context.Context, _ int64, id int64) (*Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memoryRepo) ListBills(_ context.Context, _ int64) ([]Bill, error) {
	var out []Bill
	for _, b := range m.bills {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memoryRepo) SetBillPosting(_ context.Context, _ int64, id int64, txID uuid.UUID) error {
	m.bills[id].TransactionID = &txID
	return nil
}

func (m *memoryRepo) SetBillStatus(_ context.Context, _ int64, id int64, status DocStatus) error {
	b, ok := m.bills[id]
	if !ok {
		return ErrDocumentNotFound
	}
	b.Status = status
	return nil
}

func (m *memoryRepo) DeleteBill(_ context.Context, _ int64, id int64) error {
	delete(m.bills, id)
	return nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, _ int64, _ string, _ int64, in PaymentInput) (int64, error) {
	id := m.id()
	m.payments[id] = in
	return id, nil
}

func (m *memoryRepo) DeletePayment(_ context.Context, _ int64, id int64) error {
	delete(m.payments, id)
	return nil
}

func (m *memoryRepo) AccountIDByCode(_ context.Context, _ int64, code string) (int64, error) {
	id, ok := m.accounts[code]
	if !ok {
		return 0, ErrPostingAccountMissing
	}
	return id, nil
}

func (m *memoryRepo) MarkOverdue(_ context.Context, _ int64, asOf time.Time) (int64, error) {
	var n int64
	for _, inv := range m.invoices {
		if inv.Status == StatusPending && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			n++
		}
	}
	for _, b := range m.bills {
		if b.Status == StatusPending && b.DueDate.Before(asOf) {
			b.Status = StatusOverdue
			n++
		}
	}
	return n, nil
}

// settle mirrors what the posting engine does inside its transaction.
func (m *memoryRepo) settle(ref ledger.SourceRef, amount money.Cents) {
	m.settled[ref] += amount
	switch ref.Kind {
	case ledger.SourceInvoice:
		if inv, ok := m.invoices[ref.ID]; ok && m.settled[ref] >= inv.Total {
			inv.Status = StatusPaid
		}
	case ledger.SourceBill:
		if b, ok := m.bills[ref.ID]; ok && m.settled[ref] >= b.Total {
			b.Status = StatusPaid
		}
	}
}

type fakePoster struct {
	repo     *memoryRepo
	posted   []ledger.PostingInput
	reversed []uuid.UUID
	failNext error
}

func (p *fakePoster) Post(_ context.Context, _ int64, input ledger.PostingInput) (uuid.UUID, error) {
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return uuid.Nil, err
	}
	p.posted = append(p.posted, input)
	if input.Settles != nil {
		var amount money.Cents
		for _, l := range input.Lines {
			amount += l.Debit
		}
		p.repo.settle(*input.Settles, amount)
	}
	return uuid.New(), nil
}

func (p *fakePoster) Reverse(_ context.Context, _ int64, original uuid.UUID) (uuid.UUID, error) {
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return uuid.Nil, err
	}
	p.reversed = append(p.reversed, original)
	return uuid.New(), nil
}

func newTestService() (*Service, *memoryRepo, *fakePoster) {
	repo := newMemoryRepo()
	poster := &fakePoster{repo: repo}
	svc := NewService(repo, poster, slog.Default())
	svc.WithNow(func() time.Time {
		return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	})
	return svc, repo, poster
}

func TestCreateInvoicePostsRecognition(t *testing.T) {
	svc, _, poster := newTestService()
	issue := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7,
		Number:     "INV-001",
		IssueDate:  issue,
		Terms:      "Net 15",
		Total:      money.Cents(11000),
		Tax:        money.Cents(1000),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, inv.Status)
	require.True(t, inv.DueDate.Equal(issue.AddDate(0, 0, 15)))
	require.NotNil(t, inv.TransactionID)

	require.Len(t, poster.posted, 1)
	posting := poster.posted[0]
	require.Equal(t, ledger.SourceRef{Kind: ledger.SourceInvoice, ID: inv.ID}, posting.Source)
	require.Len(t, posting.Lines, 3)
	require.Equal(t, money.Cents(11000), posting.Lines[0].Debit)
	require.Equal(t, money.Cents(10000), posting.Lines[1].Credit)
	require.Equal(t, money.Cents(1000), posting.Lines[2].Credit)
}

func TestCreateInvoiceRejectsBadAmounts(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Now(), Total: money.Cents(1000), Tax: money.Cents(1000),
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Empty(t, repo.invoices)
}

func TestCreateInvoiceMissingChartAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	delete(repo.accounts, codeRevenue)
	_, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Now(), Total: money.Cents(1000),
	})
	require.ErrorIs(t, err, ErrPostingAccountMissing)
	require.Empty(t, repo.invoices)
}

func TestCreateInvoiceCompensatesFailedPosting(t *testing.T) {
	svc, repo, poster := newTestService()
	poster.failNext = errors.New("posting rejected")
	_, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Now(), Total: money.Cents(1000),
	})
	require.Error(t, err)
	require.Empty(t, repo.invoices)
}

func TestRecordInvoicePaymentFullSettlement(t *testing.T) {
	svc, _, poster := newTestService()
	inv, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Total:     money.Cents(5000),
	})
	require.NoError(t, err)

	paid, err := svc.RecordInvoicePayment(context.Background(), 1, inv.ID, PaymentInput{
		Amount: money.Cents(5000),
		PaidAt: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	last := poster.posted[len(poster.posted)-1]
	require.NotNil(t, last.Settles)
	require.Equal(t, ledger.SourceRef{Kind: ledger.SourceInvoice, ID: inv.ID}, *last.Settles)
	require.Equal(t, ledger.SourcePayment, last.Source.Kind)
}

func TestRecordInvoicePaymentPartialStaysOpen(t *testing.T) {
	svc, _, _ := newTestService()
	inv, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Total:     money.Cents(5000),
	})
	require.NoError(t, err)

	paid, err := svc.RecordInvoicePayment(context.Background(), 1, inv.ID, PaymentInput{
		Amount: money.Cents(2000),
		PaidAt: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, paid.Status)
}

func TestRecordPaymentOnClosedInvoice(t *testing.T) {
	svc, _, _ := newTestService()
	inv, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Total:     money.Cents(5000),
	})
	require.NoError(t, err)
	_, err = svc.RecordInvoicePayment(context.Background(), 1, inv.ID, PaymentInput{
		Amount: money.Cents(5000),
		PaidAt: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.RecordInvoicePayment(context.Background(), 1, inv.ID, PaymentInput{
		Amount: money.Cents(100),
		PaidAt: time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrDocumentClosed)
}

func TestCancelInvoiceReversesPosting(t *testing.T) {
	svc, _, poster := newTestService()
	inv, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Total:     money.Cents(5000),
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelInvoice(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Len(t, poster.reversed, 1)
	require.Equal(t, *inv.TransactionID, poster.reversed[0])

	_, err = svc.CancelInvoice(context.Background(), 1, inv.ID)
	require.ErrorIs(t, err, ErrDocumentClosed)
}

func TestCreateBillPostsExpense(t *testing.T) {
	svc, _, poster := newTestService()
	b, err := svc.CreateBill(context.Background(), 1, BillInput{
		VendorID: 3, Number: "BILL-9",
		IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Terms:     "Net 30",
		Total:     money.Cents(2500),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, b.Status)

	posting := poster.posted[0]
	require.Equal(t, ledger.SourceRef{Kind: ledger.SourceBill, ID: b.ID}, posting.Source)
	require.Equal(t, money.Cents(2500), posting.Lines[0].Debit)
	require.Equal(t, money.Cents(2500), posting.Lines[1].Credit)
}

func TestRecordBillPaymentSettles(t *testing.T) {
	svc, _, _ := newTestService()
	b, err := svc.CreateBill(context.Background(), 1, BillInput{
		VendorID: 3, Number: "BILL-9",
		IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Total:     money.Cents(2500),
	})
	require.NoError(t, err)

	paid, err := svc.RecordBillPayment(context.Background(), 1, b.ID, PaymentInput{
		Amount: money.Cents(2500),
		PaidAt: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
}

func TestMarkOverdueFlipsPastDue(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-001",
		IssueDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Terms:     "Net 15",
		Total:     money.Cents(1000),
	})
	require.NoError(t, err)
	_, err = svc.CreateInvoice(context.Background(), 1, InvoiceInput{
		CustomerID: 7, Number: "INV-002",
		IssueDate: time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
		Terms:     "Net 30",
		Total:     money.Cents(1000),
	})
	require.NoError(t, err)

	n, err := svc.MarkOverdue(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	for _, inv := range repo.invoices {
		if inv.Number == "INV-001" {
			require.Equal(t, StatusOverdue, inv.Status)
		} else {
			require.Equal(t, StatusPending, inv.Status)
		}
	}
}
