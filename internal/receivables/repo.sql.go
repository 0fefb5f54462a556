package receivables

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/money"
)

// Repository reads aging data from open invoices and persists reminder
// history.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CustomersWithBalance aggregates open invoices per customer as of the given
// instant. Customers without open invoices still appear with a zero balance
// so the scheduler can reset their reminder cycle. Each invoice contributes
// its uncollected remainder only: settling postings that have not been
// reversed reduce the balance, the same sum SettleDocument checks before
// flipping a document to PAID.
func (r *Repository) CustomersWithBalance(ctx context.Context, companyID int64, now time.Time) ([]CustomerBalance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, COALESCE(c.email, ''), c.reminders_enabled,
		       COALESCE(SUM(GREATEST(0, i.total_cents - COALESCE(s.settled_cents, 0))), 0) AS outstanding,
		       COALESCE(MAX(GREATEST(0, ($2::date - i.due_date::date))), 0) AS days_overdue,
		       COUNT(i.id) AS invoice_count,
		       MAX(i.issue_date) AS last_invoice_date,
		       rr.last_sent_at
		FROM customers c
		LEFT JOIN invoices i
		  ON i.customer_id = c.id
		 AND i.company_id = c.company_id
		 AND i.status IN ('PENDING', 'OVERDUE')
		LEFT JOIN LATERAL (
			SELECT SUM(e.debit_cents) AS settled_cents
			FROM ledger_transactions t
			JOIN ledger_entries e ON e.transaction_id = t.id
			WHERE t.company_id = i.company_id
			  AND t.settles_kind = 'INVOICE'
			  AND t.settles_id = i.id
			  AND t.reversed_by IS NULL
		) s ON TRUE
		LEFT JOIN reminder_records rr
		  ON rr.company_id = c.company_id AND rr.customer_id = c.id
		WHERE c.company_id = $1
		GROUP BY c.id, c.name, c.email, c.reminders_enabled, rr.last_sent_at
		ORDER BY outstanding DESC, c.id`, companyID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CustomerBalance
	for rows.Next() {
		var (
			cb          CustomerBalance
			outstanding int64
		)
		if err := rows.Scan(&cb.CustomerID, &cb.Name, &cb.Email, &cb.RemindersEnabled,
			&outstanding, &cb.DaysOverdue, &cb.InvoiceCount,
			&cb.LastInvoiceDate, &cb.LastReminderSent); err != nil {
			return nil, err
		}
		cb.Outstanding = money.Cents(outstanding)
		out = append(out, cb)
	}
	return out, rows.Err()
}

// HasInvoiceDueOn reports whether the customer has an open invoice due on
// the given calendar day. Used to distinguish DUE from CURRENT.
func (r *Repository) HasInvoiceDueOn(ctx context.Context, companyID, customerID int64, day time.Time) (bool, error) {
	var due bool
	row := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE company_id = $1 AND customer_id = $2
			  AND status IN ('PENDING', 'OVERDUE')
			  AND due_date::date = $3::date
		)`, companyID, customerID, day)
	if err := row.Scan(&due); err != nil {
		return false, err
	}
	return due, nil
}

// GetReminderRecord returns the stored cycle, or an empty one when the
// customer has never been reminded.
func (r *Repository) GetReminderRecord(ctx context.Context, companyID, customerID int64) (ReminderRecord, error) {
	rec := ReminderRecord{CompanyID: companyID, CustomerID: customerID}
	row := r.pool.QueryRow(ctx, `
		SELECT last_sent_at, fired_offsets
		FROM reminder_records
		WHERE company_id = $1 AND customer_id = $2`, companyID, customerID)
	err := row.Scan(&rec.LastSentAt, &rec.FiredOffsets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, nil
		}
		return rec, err
	}
	return rec, nil
}

// UpsertReminderRecord stores the cycle after a successful send.
func (r *Repository) UpsertReminderRecord(ctx context.Context, rec ReminderRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_records (company_id, customer_id, last_sent_at, fired_offsets)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, customer_id)
		DO UPDATE SET last_sent_at = EXCLUDED.last_sent_at, fired_offsets = EXCLUDED.fired_offsets`,
		rec.CompanyID, rec.CustomerID, rec.LastSentAt, rec.FiredOffsets)
	return err
}

// ResetReminderRecord clears the cycle once the balance returns to zero.
func (r *Repository) ResetReminderRecord(ctx context.Context, companyID, customerID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM reminder_records
		WHERE company_id = $1 AND customer_id = $2`, companyID, customerID)
	return err
}
