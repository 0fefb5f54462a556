package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/money"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithCompanyTx(ctx context.Context, companyID int64, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
}

// AuditPort records ledger events for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates posting and reversing ledger transactions.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	afterWrite func(context.Context)
	now        func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithAfterWrite registers a hook invoked after every committed posting or
// reversal. Used to drop stale report caches.
func (s *Service) WithAfterWrite(fn func(context.Context)) {
	s.afterWrite = fn
}

func (s *Service) notifyWrite(ctx context.Context) {
	if s.afterWrite != nil {
		s.afterWrite(ctx)
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates the input and appends a balanced transaction atomically.
// Either every entry persists or none do; the per-company advisory lock keeps
// postings serialized so readers never observe a partial transaction.
func (s *Service) Post(ctx context.Context, companyID int64, input PostingInput) (uuid.UUID, error) {
	if companyID == 0 {
		return uuid.Nil, fmt.Errorf("ledger: company required")
	}
	if input.Source.Zero() {
		return uuid.Nil, fmt.Errorf("ledger: source reference required")
	}
	if input.Settles != nil && input.Settles.Kind != SourceInvoice && input.Settles.Kind != SourceBill {
		return uuid.Nil, ErrInvalidSettlement
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}

	txID := uuid.New()
	err := s.repo.WithCompanyTx(ctx, companyID, func(ctx context.Context, tx TxRepository) error {
		if err := validateLines(ctx, tx, companyID, input.Lines); err != nil {
			return err
		}
		trans := Transaction{
			ID:          txID,
			CompanyID:   companyID,
			Date:        date,
			Description: input.Description,
			Source:      input.Source,
			Settles:     input.Settles,
		}
		if err := tx.InsertTransaction(ctx, trans); err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, buildEntries(trans, input.Lines)); err != nil {
			return err
		}
		if input.Settles != nil {
			if _, err := tx.SettleDocument(ctx, companyID, *input.Settles); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.record(ctx, companyID, "ledger.post", txID, map[string]any{
		"source_kind": string(input.Source.Kind),
		"source_id":   input.Source.ID,
		"lines":       len(input.Lines),
	})
	s.notifyWrite(ctx)
	return txID, nil
}

// Reverse posts a new transaction mirroring the original with debit and
// credit swapped, dated at reversal time and referencing the original.
func (s *Service) Reverse(ctx context.Context, companyID int64, original uuid.UUID) (uuid.UUID, error) {
	reversalID := uuid.New()
	err := s.repo.WithCompanyTx(ctx, companyID, func(ctx context.Context, tx TxRepository) error {
		orig, entries, err := tx.GetTransactionForUpdate(ctx, companyID, original)
		if err != nil {
			return err
		}
		if orig.ReversedBy != nil {
			return ErrAlreadyReversed
		}
		reversal := Transaction{
			ID:          reversalID,
			CompanyID:   companyID,
			Date:        s.now(),
			Description: fmt.Sprintf("Reversal of %s", orig.Description),
			Source:      SourceRef{Kind: SourceReversal},
			ReversalOf:  &orig.ID,
		}
		if err := tx.InsertTransaction(ctx, reversal); err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, buildEntries(reversal, mirrorLines(entries))); err != nil {
			return err
		}
		return tx.MarkReversed(ctx, companyID, orig.ID, reversalID)
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.record(ctx, companyID, "ledger.reverse", reversalID, map[string]any{
		"original": original.String(),
	})
	s.notifyWrite(ctx)
	return reversalID, nil
}

// GetTransaction fetches a transaction with its entries.
func (s *Service) GetTransaction(ctx context.Context, companyID int64, id uuid.UUID) (Transaction, error) {
	return s.repo.GetTransaction(ctx, companyID, id)
}

// ListEntries exposes the append-only entry log for reporting reads.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// validateLines applies the posting contract in order: account existence,
// line count, balance in integer cents, per-line amount validity.
func validateLines(ctx context.Context, tx TxRepository, companyID int64, lines []PostingLine) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	known, err := tx.AccountIDs(ctx, companyID, ids)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if !known[line.AccountID] {
			return fmt.Errorf("%w: account %d", ErrUnknownAccount, line.AccountID)
		}
	}
	if len(lines) < 2 {
		return ErrInsufficientLines
	}
	var debit, credit money.Cents
	for _, line := range lines {
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return fmt.Errorf("%w: debit %s vs credit %s", ErrUnbalanced, debit.String(), credit.String())
	}
	for idx, line := range lines {
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d is negative", ErrInvalidAmount, idx)
		}
		if (line.Debit == 0) == (line.Credit == 0) {
			return fmt.Errorf("%w: line %d must carry exactly one side", ErrInvalidAmount, idx)
		}
	}
	return nil
}

func buildEntries(trans Transaction, lines []PostingLine) []Entry {
	out := make([]Entry, 0, len(lines))
	for idx, line := range lines {
		out = append(out, Entry{
			CompanyID:     trans.CompanyID,
			AccountID:     line.AccountID,
			TransactionID: trans.ID,
			Date:          trans.Date,
			Debit:         line.Debit,
			Credit:        line.Credit,
			LineNo:        idx + 1,
			Description:   trans.Description,
			Source:        trans.Source,
		})
	}
	return out
}

func mirrorLines(entries []Entry) []PostingLine {
	out := make([]PostingLine, 0, len(entries))
	for _, e := range entries {
		out = append(out, PostingLine{AccountID: e.AccountID, Debit: e.Credit, Credit: e.Debit})
	}
	return out
}

func (s *Service) record(ctx context.Context, companyID int64, action string, txID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Action:    action,
		Entity:    "ledger_transaction",
		EntityID:  txID.String(),
		Meta:      meta,
		At:        s.now(),
	})
}
