package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/money"
)

type memoryRepo struct {
	accounts     map[int64]int64 // account id -> company id
	transactions map[uuid.UUID]*Transaction
	entries      []Entry
	settled      []SourceRef
	nextEntryID  int64
}

func newMemoryRepo(accountCompany map[int64]int64) *memoryRepo {
	return &memoryRepo{
		accounts:     accountCompany,
		transactions: make(map[uuid.UUID]*Transaction),
	}
}

type memoryTx struct {
	repo      *memoryRepo
	staged    []Entry
	stagedTxs []Transaction
}

func (r *memoryRepo) WithCompanyTx(ctx context.Context, companyID int64, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// commit
	for i := range tx.stagedTxs {
		staged := tx.stagedTxs[i]
		r.transactions[staged.ID] = &staged
	}
	for _, e := range tx.staged {
		r.nextEntryID++
		e.ID = r.nextEntryID
		r.entries = append(r.entries, e)
	}
	return nil
}

func (r *memoryRepo) GetTransaction(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, error) {
	trans, ok := r.transactions[id]
	if !ok || trans.CompanyID != companyID {
		return Transaction{}, ErrTransactionNotFound
	}
	out := *trans
	for _, e := range r.entries {
		if e.TransactionID == id {
			out.Entries = append(out.Entries, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.CompanyID == filter.CompanyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tx *memoryTx) AccountIDs(ctx context.Context, companyID int64, ids []int64) (map[int64]bool, error) {
	known := make(map[int64]bool)
	for _, id := range ids {
		if tx.repo.accounts[id] == companyID {
			known[id] = true
		}
	}
	return known, nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, trans Transaction) error {
	for _, existing := range tx.repo.transactions {
		if existing.CompanyID == trans.CompanyID && existing.Source == trans.Source && trans.Source.Kind != SourceManual && trans.Source.Kind != SourceReversal {
			return ErrSourceAlreadyLinked
		}
	}
	tx.stagedTxs = append(tx.stagedTxs, trans)
	return nil
}

func (tx *memoryTx) InsertEntries(ctx context.Context, entries []Entry) error {
	tx.staged = append(tx.staged, entries...)
	return nil
}

func (tx *memoryTx) GetTransactionForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, []Entry, error) {
	trans, err := tx.repo.GetTransaction(ctx, companyID, id)
	if err != nil {
		return Transaction{}, nil, err
	}
	entries := trans.Entries
	trans.Entries = nil
	return trans, entries, nil
}

func (tx *memoryTx) MarkReversed(ctx context.Context, companyID int64, id, reversalID uuid.UUID) error {
	trans, ok := tx.repo.transactions[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if trans.ReversedBy != nil {
		return ErrAlreadyReversed
	}
	trans.ReversedBy = &reversalID
	return nil
}

func (tx *memoryTx) SettleDocument(ctx context.Context, companyID int64, settles SourceRef) (bool, error) {
	tx.repo.settled = append(tx.repo.settled, settles)
	return true, nil
}

func testService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
	return svc
}

func balancedInput() PostingInput {
	return PostingInput{
		Date:        time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Description: "Invoice INV-1",
		Source:      SourceRef{Kind: SourceInvoice, ID: 1},
		Lines: []PostingLine{
			{AccountID: 1, Debit: 10000},
			{AccountID: 2, Credit: 10000},
		},
	}
}

func TestPostBalancedTransaction(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	txID, err := svc.Post(context.Background(), 7, balancedInput())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, txID)

	trans, err := svc.GetTransaction(context.Background(), 7, txID)
	require.NoError(t, err)
	require.Len(t, trans.Entries, 2)

	var debit, credit money.Cents
	for _, e := range trans.Entries {
		debit += e.Debit
		credit += e.Credit
	}
	require.Equal(t, debit, credit)
	require.Equal(t, money.Cents(10000), debit)
}

func TestPostUnknownAccount(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 8}) // account 2 belongs to another company
	svc := testService(repo)

	_, err := svc.Post(context.Background(), 7, balancedInput())
	require.ErrorIs(t, err, ErrUnknownAccount)
	require.Empty(t, repo.entries, "no entries persist after validation failure")
}

func TestPostInsufficientLines(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7})
	svc := testService(repo)

	input := balancedInput()
	input.Lines = input.Lines[:1]
	_, err := svc.Post(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrInsufficientLines)
}

func TestPostUnbalancedLeavesNothingPersisted(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	input := balancedInput()
	input.Lines = []PostingLine{
		{AccountID: 1, Debit: 10000},
		{AccountID: 2, Credit: 9999},
	}
	_, err := svc.Post(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Empty(t, repo.entries)
	require.Empty(t, repo.transactions)
}

func TestPostInvalidAmount(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	input := balancedInput()
	input.Lines = []PostingLine{
		{AccountID: 1, Debit: 5000, Credit: 5000},
		{AccountID: 2, Debit: 5000, Credit: 5000},
	}
	_, err := svc.Post(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPostSameSourceTwice(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	_, err := svc.Post(context.Background(), 7, balancedInput())
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), 7, balancedInput())
	require.ErrorIs(t, err, ErrSourceAlreadyLinked)
}

func TestReverseMirrorsLines(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	txID, err := svc.Post(context.Background(), 7, balancedInput())
	require.NoError(t, err)

	reversalID, err := svc.Reverse(context.Background(), 7, txID)
	require.NoError(t, err)

	reversal, err := svc.GetTransaction(context.Background(), 7, reversalID)
	require.NoError(t, err)
	require.Len(t, reversal.Entries, 2)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, txID, *reversal.ReversalOf)

	original, err := svc.GetTransaction(context.Background(), 7, txID)
	require.NoError(t, err)
	for i, e := range reversal.Entries {
		require.Equal(t, original.Entries[i].Debit, e.Credit)
		require.Equal(t, original.Entries[i].Credit, e.Debit)
	}
}

func TestReverseTwiceFails(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	txID, err := svc.Post(context.Background(), 7, balancedInput())
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), 7, txID)
	require.NoError(t, err)
	_, err = svc.Reverse(context.Background(), 7, txID)
	require.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestReverseUnknownTransaction(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7})
	svc := testService(repo)

	_, err := svc.Reverse(context.Background(), 7, uuid.New())
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestPostSettlementRunsInSameUnit(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	input := balancedInput()
	input.Source = SourceRef{Kind: SourcePayment, ID: 44}
	input.Settles = &SourceRef{Kind: SourceInvoice, ID: 1}
	_, err := svc.Post(context.Background(), 7, input)
	require.NoError(t, err)
	require.Equal(t, []SourceRef{{Kind: SourceInvoice, ID: 1}}, repo.settled)
}

func TestPostRejectsBadSettlementKind(t *testing.T) {
	repo := newMemoryRepo(map[int64]int64{1: 7, 2: 7})
	svc := testService(repo)

	input := balancedInput()
	input.Settles = &SourceRef{Kind: SourceBankRow, ID: 3}
	_, err := svc.Post(context.Background(), 7, input)
	require.ErrorIs(t, err, ErrInvalidSettlement)
}
