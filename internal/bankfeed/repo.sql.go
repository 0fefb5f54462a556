package bankfeed

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/money"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository persists staged bank rows. Imports run inside a transaction
// serialised per bank account.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the import-scoped slice of the repository.
type TxRepository interface {
	NextPosition(ctx context.Context, bankAccountID int64) (int, error)
	InsertRow(ctx context.Context, row *Row) error
	RecomputeRunningBalance(ctx context.Context, bankAccountID int64) error
	RowsForAccount(ctx context.Context, bankAccountID int64) ([]Row, error)
}

// WithAccountTx runs fn holding the per-bank-account import lock.
func (r *Repository) WithAccountTx(ctx context.Context, bankAccountID int64, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := db.AcquireAdvisoryLock(ctx, tx, shared.BankFeedLockKey(bankAccountID)); err != nil {
			return err
		}
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) NextPosition(ctx context.Context, bankAccountID int64) (int, error) {
	var pos int
	row := t.tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1 FROM bank_rows WHERE bank_account_id = $1`,
		bankAccountID)
	if err := row.Scan(&pos); err != nil {
		return 0, err
	}
	return pos, nil
}

func (t *txRepository) InsertRow(ctx context.Context, row *Row) error {
	r := t.tx.QueryRow(ctx, `
		INSERT INTO bank_rows (company_id, bank_account_id, date, description, amount_cents, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		row.CompanyID, row.BankAccountID, row.Date, row.Description,
		int64(row.Amount), row.Position)
	return r.Scan(&row.ID, &row.CreatedAt)
}

// RecomputeRunningBalance rebuilds every balance for the account as a prefix
// sum ordered by (date, position). Full recomputation keeps balances right
// when a later feed inserts rows dated before existing ones.
func (t *txRepository) RecomputeRunningBalance(ctx context.Context, bankAccountID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bank_rows br
		SET running_balance_cents = ordered.running
		FROM (
			SELECT id,
			       SUM(amount_cents) OVER (ORDER BY date, position) AS running
			FROM bank_rows
			WHERE bank_account_id = $1
		) AS ordered
		WHERE br.id = ordered.id`, bankAccountID)
	return err
}

const rowColumns = `id, company_id, bank_account_id, date, description, amount_cents,
	COALESCE(running_balance_cents, 0), position, COALESCE(category, ''),
	customer_id, vendor_id, transaction_id, created_at`

func (t *txRepository) RowsForAccount(ctx context.Context, bankAccountID int64) ([]Row, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+rowColumns+`
		FROM bank_rows WHERE bank_account_id = $1
		ORDER BY date, position`, bankAccountID)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// GetBankAccount loads the feed source and its ledger account link.
func (r *Repository) GetBankAccount(ctx context.Context, companyID, id int64) (*BankAccount, error) {
	var ba BankAccount
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, ledger_account_id
		FROM bank_accounts WHERE company_id = $1 AND id = $2`, companyID, id)
	if err := row.Scan(&ba.ID, &ba.CompanyID, &ba.Name, &ba.LedgerAccountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBankAccountNotFound
		}
		return nil, err
	}
	return &ba, nil
}

func (r *Repository) GetRow(ctx context.Context, companyID, id int64) (*Row, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+rowColumns+`
		FROM bank_rows WHERE company_id = $1 AND id = $2`, companyID, id)
	out, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRowNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListRows(ctx context.Context, companyID, bankAccountID int64) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rowColumns+`
		FROM bank_rows WHERE company_id = $1 AND bank_account_id = $2
		ORDER BY date, position`, companyID, bankAccountID)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// SetCategorization attaches category and counterparty, then the posted
// transaction id. Amount and date stay immutable.
func (r *Repository) SetCategorization(ctx context.Context, companyID, id int64, in CategorizeInput, txID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bank_rows
		SET category = $3, customer_id = $4, vendor_id = $5, transaction_id = $6
		WHERE company_id = $1 AND id = $2 AND transaction_id IS NULL`,
		companyID, id, in.Category, in.CustomerID, in.VendorID, txID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRowAlreadyPosted
	}
	return nil
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRow(row pgx.Row) (*Row, error) {
	var (
		r       Row
		amount  int64
		running int64
	)
	err := row.Scan(&r.ID, &r.CompanyID, &r.BankAccountID, &r.Date, &r.Description,
		&amount, &running, &r.Position, &r.Category,
		&r.CustomerID, &r.VendorID, &r.TransactionID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Amount = money.Cents(amount)
	r.RunningBalance = money.Cents(running)
	return &r, nil
}
