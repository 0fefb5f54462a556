package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/money"
)

// Repository persists invoices, bills and payments.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, company_id, customer_id, number, issue_date, due_date, terms,
	total_cents, tax_cents, status, transaction_id, created_at, updated_at`

func (r *Repository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (company_id, customer_id, number, issue_date, due_date, terms, total_cents, tax_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		inv.CompanyID, inv.CustomerID, inv.Number, inv.IssueDate, inv.DueDate,
		inv.Terms, int64(inv.Total), int64(inv.Tax), inv.Status)
	return row.Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
}

func (r *Repository) GetInvoice(ctx context.Context, companyID, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices WHERE company_id = $1 AND id = $2`, companyID, id)
	return scanInvoice(row)
}

func (r *Repository) ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices WHERE company_id = $1
		ORDER BY issue_date DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r *Repository) SetInvoicePosting(ctx context.Context, companyID, id int64, txID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invoices SET transaction_id = $3, updated_at = now()
		WHERE company_id = $1 AND id = $2`, companyID, id, txID)
	return err
}

func (r *Repository) SetInvoiceStatus(ctx context.Context, companyID, id int64, status DocStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $3, updated_at = now()
		WHERE company_id = $1 AND id = $2`, companyID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteInvoice removes an invoice that never got a ledger transaction.
func (r *Repository) DeleteInvoice(ctx context.Context, companyID, id int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM invoices WHERE company_id = $1 AND id = $2 AND transaction_id IS NULL`,
		companyID, id)
	return err
}

const billColumns = `id, company_id, vendor_id, number, issue_date, due_date, terms,
	total_cents, status, transaction_id, created_at, updated_at`

func (r *Repository) InsertBill(ctx context.Context, b *Bill) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bills (company_id, vendor_id, number, issue_date, due_date, terms, total_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		b.CompanyID, b.VendorID, b.Number, b.IssueDate, b.DueDate,
		b.Terms, int64(b.Total), b.Status)
	return row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *Repository) GetBill(ctx context.Context, companyID, id int64) (*Bill, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+billColumns+`
		FROM bills WHERE company_id = $1 AND id = $2`, companyID, id)
	return scanBill(row)
}

func (r *Repository) ListBills(ctx context.Context, companyID int64) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+billColumns+`
		FROM bills WHERE company_id = $1
		ORDER BY issue_date DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *Repository) SetBillPosting(ctx context.Context, companyID, id int64, txID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bills SET transaction_id = $3, updated_at = now()
		WHERE company_id = $1 AND id = $2`, companyID, id, txID)
	return err
}

func (r *Repository) SetBillStatus(ctx context.Context, companyID, id int64, status DocStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bills SET status = $3, updated_at = now()
		WHERE company_id = $1 AND id = $2`, companyID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteBill removes a bill that never got a ledger transaction.
func (r *Repository) DeleteBill(ctx context.Context, companyID, id int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM bills WHERE company_id = $1 AND id = $2 AND transaction_id IS NULL`,
		companyID, id)
	return err
}

// InsertPayment records the payment row; the ledger transaction referencing
// it is posted afterwards with the returned id as its source.
func (r *Repository) InsertPayment(ctx context.Context, companyID int64, docKind string, docID int64, in PaymentInput) (int64, error) {
	var id int64
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (company_id, document_kind, document_id, amount_cents, paid_at, method, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		companyID, docKind, docID, int64(in.Amount), in.PaidAt, in.Method, in.Note)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) DeletePayment(ctx context.Context, companyID, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE company_id = $1 AND id = $2`, companyID, id)
	return err
}

// AccountIDByCode resolves a chart account for document posting.
func (r *Repository) AccountIDByCode(ctx context.Context, companyID int64, code string) (int64, error) {
	var id int64
	row := r.pool.QueryRow(ctx, `
		SELECT id FROM accounts WHERE company_id = $1 AND code = $2`, companyID, code)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPostingAccountMissing
		}
		return 0, err
	}
	return id, nil
}

// MarkOverdue flips open documents past their due date to OVERDUE.
func (r *Repository) MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error) {
	tagInv, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = 'OVERDUE', updated_at = now()
		WHERE company_id = $1 AND status = 'PENDING' AND due_date < $2`, companyID, asOf)
	if err != nil {
		return 0, err
	}
	tagBill, err := r.pool.Exec(ctx, `
		UPDATE bills SET status = 'OVERDUE', updated_at = now()
		WHERE company_id = $1 AND status = 'PENDING' AND due_date < $2`, companyID, asOf)
	if err != nil {
		return tagInv.RowsAffected(), err
	}
	return tagInv.RowsAffected() + tagBill.RowsAffected(), nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv   Invoice
		total int64
		tax   int64
	)
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Number,
		&inv.IssueDate, &inv.DueDate, &inv.Terms, &total, &tax,
		&inv.Status, &inv.TransactionID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	inv.Total = money.Cents(total)
	inv.Tax = money.Cents(tax)
	return &inv, nil
}

func scanBill(row pgx.Row) (*Bill, error) {
	var (
		b     Bill
		total int64
	)
	err := row.Scan(&b.ID, &b.CompanyID, &b.VendorID, &b.Number,
		&b.IssueDate, &b.DueDate, &b.Terms, &total,
		&b.Status, &b.TransactionID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	b.Total = money.Cents(total)
	return &b, nil
}
