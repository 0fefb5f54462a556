package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	nextID   int64
	accounts map[int64]Account
	posted   map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, accounts: map[int64]Account{}, posted: map[int64]bool{}}
}

func (m *memoryRepo) Insert(_ context.Context, in CreateInput) (Account, error) {
	for _, acc := range m.accounts {
		if acc.CompanyID == in.CompanyID && acc.Code == in.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	acc := Account{
		ID:        m.nextID,
		CompanyID: in.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		IsActive:  true,
	}
	m.nextID++
	m.accounts[acc.ID] = acc
	return acc, nil
}

func (m *memoryRepo) List(_ context.Context, companyID int64) ([]Account, error) {
	var out []Account
	for _, acc := range m.accounts {
		if acc.CompanyID == companyID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, companyID, id int64) (Account, error) {
	acc, ok := m.accounts[id]
	if !ok || acc.CompanyID != companyID {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (m *memoryRepo) HasPostedEntries(_ context.Context, accountID int64) (bool, error) {
	return m.posted[accountID], nil
}

func (m *memoryRepo) Rename(_ context.Context, companyID, id int64, name string) error {
	acc, ok := m.accounts[id]
	if !ok || acc.CompanyID != companyID {
		return ErrAccountNotFound
	}
	acc.Name = name
	m.accounts[id] = acc
	return nil
}

func TestNormalSide(t *testing.T) {
	assert.Equal(t, SideDebit, TypeAsset.NormalSide())
	assert.Equal(t, SideDebit, TypeExpense.NormalSide())
	assert.Equal(t, SideCredit, TypeLiability.NormalSide())
	assert.Equal(t, SideCredit, TypeEquity.NormalSide())
	assert.Equal(t, SideCredit, TypeRevenue.NormalSide())
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1000", Name: "Cash", Type: TypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1000", Name: "Cash again", Type: TypeAsset})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	// Same code under another company is fine.
	_, err = svc.Create(ctx, CreateInput{CompanyID: 2, Code: "1000", Name: "Cash", Type: TypeAsset})
	assert.NoError(t, err)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "", Name: "Cash", Type: TypeAsset})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1000", Name: "Cash", Type: AccountType("CASHMONEY")})
	assert.Error(t, err)
}

func TestRenameBlockedOnceReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	acc, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1200", Name: "Receivables", Type: TypeAsset})
	require.NoError(t, err)

	require.NoError(t, svc.Rename(ctx, 1, acc.ID, "Accounts Receivable"))

	repo.posted[acc.ID] = true
	err = svc.Rename(ctx, 1, acc.ID, "Trade Debtors")
	assert.ErrorIs(t, err, ErrAccountInUse)

	got, err := svc.Get(ctx, 1, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Accounts Receivable", got.Name)
}

func TestSeedDefaultChartIsIdempotent(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	first, err := svc.SeedDefaultChart(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, first, len(defaultChart))

	second, err := svc.SeedDefaultChart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "6", Account{Code: "6000"}.GroupKey())
	assert.Equal(t, "6000", Account{Code: "6000.10"}.GroupKey())
	assert.Equal(t, "", Account{Code: ""}.GroupKey())
}
