package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/money"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	AccountIDs(ctx context.Context, companyID int64, ids []int64) (map[int64]bool, error)
	InsertTransaction(ctx context.Context, trans Transaction) error
	InsertEntries(ctx context.Context, entries []Entry) error
	GetTransactionForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, []Entry, error)
	MarkReversed(ctx context.Context, companyID int64, id, reversalID uuid.UUID) error
	SettleDocument(ctx context.Context, companyID int64, settles SourceRef) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithCompanyTx runs fn inside a repeatable-read transaction holding the
// per-company advisory lock, serialising postings per company.
func (r *Repository) WithCompanyTx(ctx context.Context, companyID int64, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := db.AcquireAdvisoryLock(ctx, tx, shared.LedgerLockKey(companyID)); err != nil {
			return err
		}
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) AccountIDs(ctx context.Context, companyID int64, ids []int64) (map[int64]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM accounts WHERE company_id=$1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	known := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, trans Transaction) error {
	var settlesKind *string
	var settlesID *int64
	if trans.Settles != nil {
		kind := string(trans.Settles.Kind)
		settlesKind = &kind
		settlesID = &trans.Settles.ID
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_transactions (id, company_id, date, description, source_kind, source_id, settles_kind, settles_id, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		trans.ID, trans.CompanyID, trans.Date, trans.Description,
		string(trans.Source.Kind), trans.Source.ID, settlesKind, settlesID, trans.ReversalOf)
	if err != nil {
		var pgErr *pgconn.PgError
		// uq_ledger_tx_source keeps document postings idempotent: one
		// transaction per (company, source kind, source id) for document kinds.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries (company_id, account_id, transaction_id, date, debit_cents, credit_cents, line_no, description, source_kind, source_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			e.CompanyID, e.AccountID, e.TransactionID, e.Date, int64(e.Debit), int64(e.Credit), e.LineNo, e.Description, string(e.Source.Kind), e.Source.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, []Entry, error) {
	trans, err := scanTransaction(r.tx.QueryRow(ctx, `SELECT id, company_id, date, description, source_kind, source_id, settles_kind, settles_id, reversal_of, reversed_by, created_at
FROM ledger_transactions WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		return Transaction{}, nil, err
	}
	entries, err := queryEntries(ctx, r.tx, `SELECT id, company_id, account_id, transaction_id, date, debit_cents, credit_cents, line_no, description, source_kind, source_id, created_at
FROM ledger_entries WHERE company_id=$1 AND transaction_id=$2 ORDER BY line_no`, companyID, id)
	if err != nil {
		return Transaction{}, nil, err
	}
	return trans, entries, nil
}

func (r *txRepository) MarkReversed(ctx context.Context, companyID int64, id, reversalID uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_transactions SET reversed_by=$3 WHERE company_id=$1 AND id=$2 AND reversed_by IS NULL`, companyID, id, reversalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

// SettleDocument flips an invoice or bill to PAID when settling postings have
// covered the full document amount. Runs inside the posting transaction so
// the status change commits atomically with the entries.
func (r *txRepository) SettleDocument(ctx context.Context, companyID int64, settles SourceRef) (bool, error) {
	table := "invoices"
	if settles.Kind == SourceBill {
		table = "bills"
	}
	tag, err := r.tx.Exec(ctx, `UPDATE `+table+` d SET status='PAID', updated_at=NOW()
WHERE d.company_id=$1 AND d.id=$2 AND d.status IN ('PENDING','OVERDUE')
AND d.total_cents <= (
	SELECT COALESCE(SUM(e.debit_cents),0)
	FROM ledger_transactions t
	JOIN ledger_entries e ON e.transaction_id = t.id
	WHERE t.company_id=$1 AND t.settles_kind=$3 AND t.settles_id=$2 AND t.reversed_by IS NULL
)`, companyID, settles.ID, string(settles.Kind))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetTransaction fetches a transaction with entries outside any write lock.
func (r *Repository) GetTransaction(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, error) {
	trans, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT id, company_id, date, description, source_kind, source_id, settles_kind, settles_id, reversal_of, reversed_by, created_at
FROM ledger_transactions WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		return Transaction{}, err
	}
	entries, err := queryEntries(ctx, r.pool, `SELECT id, company_id, account_id, transaction_id, date, debit_cents, credit_cents, line_no, description, source_kind, source_id, created_at
FROM ledger_entries WHERE company_id=$1 AND transaction_id=$2 ORDER BY line_no`, companyID, id)
	if err != nil {
		return Transaction{}, err
	}
	trans.Entries = entries
	return trans, nil
}

// ListEntries returns entries in deterministic statement order.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	query := `SELECT id, company_id, account_id, transaction_id, date, debit_cents, credit_cents, line_no, description, source_kind, source_id, created_at
FROM ledger_entries WHERE company_id=$1`
	args := []any{filter.CompanyID}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND date >= $2`
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		if filter.From != nil {
			query += ` AND date < $3`
		} else {
			query += ` AND date < $2`
		}
	}
	query += ` ORDER BY date, transaction_id, line_no`
	return queryEntries(ctx, r.pool, query, args...)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryEntries(ctx context.Context, q queryer, sql string, args ...any) ([]Entry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var debit, credit int64
		var kind string
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.AccountID, &e.TransactionID, &e.Date, &debit, &credit, &e.LineNo, &e.Description, &kind, &e.Source.ID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Debit = money.Cents(debit)
		e.Credit = money.Cents(credit)
		e.Source.Kind = SourceKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var trans Transaction
	var sourceKind string
	var settlesKind *string
	var settlesID *int64
	err := row.Scan(&trans.ID, &trans.CompanyID, &trans.Date, &trans.Description, &sourceKind, &trans.Source.ID, &settlesKind, &settlesID, &trans.ReversalOf, &trans.ReversedBy, &trans.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	trans.Source.Kind = SourceKind(sourceKind)
	if settlesKind != nil && settlesID != nil {
		trans.Settles = &SourceRef{Kind: SourceKind(*settlesKind), ID: *settlesID}
	}
	return trans, nil
}
