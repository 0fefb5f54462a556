package accounts

import (
	"context"
	"errors"
)

// RepositoryPort defines data access for the chart of accounts.
type RepositoryPort interface {
	Insert(ctx context.Context, in CreateInput) (Account, error)
	List(ctx context.Context, companyID int64) ([]Account, error)
	Get(ctx context.Context, companyID, id int64) (Account, error)
	HasPostedEntries(ctx context.Context, accountID int64) (bool, error)
	Rename(ctx context.Context, companyID, id int64, name string) error
}

// Service coordinates chart of accounts operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	return s.repo.Insert(ctx, in)
}

// List returns the company chart ordered by code.
func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.List(ctx, companyID)
}

// Get fetches one account scoped to the company.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Account, error) {
	return s.repo.Get(ctx, companyID, id)
}

// Rename updates an account name. Accounts referenced by posted entries are
// immutable and the call fails with ErrAccountInUse.
func (s *Service) Rename(ctx context.Context, companyID, id int64, name string) error {
	if name == "" {
		return errors.New("accounts: name required")
	}
	if _, err := s.repo.Get(ctx, companyID, id); err != nil {
		return err
	}
	used, err := s.repo.HasPostedEntries(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrAccountInUse
	}
	return s.repo.Rename(ctx, companyID, id, name)
}

// defaultChart is the small-business chart installed at company setup.
var defaultChart = []struct {
	Code string
	Name string
	Type AccountType
}{
	{"1000", "Cash", TypeAsset},
	{"1100", "Bank", TypeAsset},
	{"1200", "Accounts Receivable", TypeAsset},
	{"2000", "Accounts Payable", TypeLiability},
	{"2100", "Sales Tax Payable", TypeLiability},
	{"3000", "Owner Equity", TypeEquity},
	{"3100", "Retained Earnings", TypeEquity},
	{"4000", "Sales Revenue", TypeRevenue},
	{"5000", "Cost of Goods Sold", TypeExpense},
	{"6000", "Operating Expenses", TypeExpense},
}

// SeedDefaultChart installs the default chart for a new company. Codes that
// already exist are left untouched.
func (s *Service) SeedDefaultChart(ctx context.Context, companyID int64) ([]Account, error) {
	var created []Account
	for _, def := range defaultChart {
		acc, err := s.repo.Insert(ctx, CreateInput{
			CompanyID: companyID,
			Code:      def.Code,
			Name:      def.Name,
			Type:      def.Type,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateCode) {
				continue
			}
			return created, err
		}
		created = append(created, acc)
	}
	return created, nil
}
