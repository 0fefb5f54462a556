package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/money"
)

// Repository aggregates ledger activity for the statement generator. All
// queries are read-only; each runs in its own snapshot so concurrent postings
// are never observed half-written.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AccountActivity sums debit and credit movement per account. From is
// inclusive, To exclusive; either may be nil for an unbounded side.
func (r *Repository) AccountActivity(ctx context.Context, companyID int64, from, to *time.Time) ([]AccountActivity, error) {
	join := `LEFT JOIN ledger_entries e ON e.account_id = a.id`
	args := []any{companyID}
	if from != nil {
		args = append(args, *from)
		join += ` AND e.date >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			join += ` AND e.date < $3`
		} else {
			join += ` AND e.date < $2`
		}
	}
	query := `SELECT a.id, a.code, a.name, a.type, COALESCE(SUM(e.debit_cents), 0), COALESCE(SUM(e.credit_cents), 0)
FROM accounts a
` + join + `
WHERE a.company_id = $1
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var act AccountActivity
		var accType string
		var debit, credit int64
		if err := rows.Scan(&act.AccountID, &act.Code, &act.Name, &accType, &debit, &credit); err != nil {
			return nil, err
		}
		act.Type = accounts.AccountType(accType)
		act.Debit = money.Cents(debit)
		act.Credit = money.Cents(credit)
		out = append(out, act)
	}
	return out, rows.Err()
}

// GeneralLedgerLines fetches entries joined with account metadata for the
// half-open range [from, to).
func (r *Repository) GeneralLedgerLines(ctx context.Context, companyID int64, from, to time.Time) ([]GeneralLedgerLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.date, e.transaction_id, e.line_no, a.code, a.name, e.description, e.debit_cents, e.credit_cents
FROM ledger_entries e
JOIN accounts a ON a.id = e.account_id
WHERE e.company_id = $1 AND e.date >= $2 AND e.date < $3
ORDER BY e.date, e.transaction_id, e.line_no`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GeneralLedgerLine
	for rows.Next() {
		var line GeneralLedgerLine
		var debit, credit int64
		if err := rows.Scan(&line.Date, &line.TransactionID, &line.LineNo, &line.AccountCode, &line.AccountName, &line.Description, &debit, &credit); err != nil {
			return nil, err
		}
		line.Debit = money.Cents(debit)
		line.Credit = money.Cents(credit)
		out = append(out, line)
	}
	return out, rows.Err()
}

// CompanyIDs lists companies with ledger activity, used by the nightly
// integrity scan.
func (r *Repository) CompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM ledger_entries ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
