package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chart of accounts entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new account.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, is_active)
VALUES ($1,$2,$3,$4,TRUE) RETURNING id, created_at, updated_at`, in.CompanyID, in.Code, in.Name, in.Type)
	acc := Account{CompanyID: in.CompanyID, Code: in.Code, Name: in.Name, Type: in.Type, IsActive: true}
	if err := row.Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return acc, nil
}

// List returns all accounts for a company ordered by code.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, code, name, type, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Get fetches one company-scoped account.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, code, name, type, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// HasPostedEntries reports whether any ledger entry references the account.
func (r *Repository) HasPostedEntries(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

// Rename updates the display name of an unreferenced account.
func (r *Repository) Rename(ctx context.Context, companyID, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET name=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
