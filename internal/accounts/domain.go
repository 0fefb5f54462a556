// Package accounts implements the chart of accounts, the leaf dependency of
// the posting engine and every report.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// Side identifies the normal balance side of an account.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NormalSide returns the side a positive balance sits on.
func (t AccountType) NormalSide() Side {
	switch t {
	case TypeAsset, TypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Valid reports whether the type is one of the five categories.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node. Accounts are tenant scoped and
// become immutable once a posted ledger entry references them.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupKey returns the code prefix used for report grouping.
func (a Account) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 1 {
		return a.Code[:1]
	}
	return a.Code
}

var (
	// ErrAccountNotFound indicates a missing or cross-company account.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrDuplicateCode indicates a (company, code) uniqueness conflict.
	ErrDuplicateCode = errors.New("accounts: code already in use")
	// ErrAccountInUse blocks mutation of accounts referenced by posted entries.
	ErrAccountInUse = errors.New("accounts: account referenced by ledger entries")
)

// CreateInput describes an account creation request.
type CreateInput struct {
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
}

// Validate checks input shape before any mutation.
func (in CreateInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("accounts: company required")
	}
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("accounts: code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("accounts: name required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("accounts: unknown type %q", in.Type)
	}
	return nil
}
