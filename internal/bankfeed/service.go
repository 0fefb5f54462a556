package bankfeed

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// RepositoryPort defines persistence for staged bank rows.
type RepositoryPort interface {
	WithAccountTx(ctx context.Context, bankAccountID int64, fn func(ctx context.Context, tx TxRepository) error) error
	GetBankAccount(ctx context.Context, companyID, id int64) (*BankAccount, error)
	GetRow(ctx context.Context, companyID, id int64) (*Row, error)
	ListRows(ctx context.Context, companyID, bankAccountID int64) ([]Row, error)
	SetCategorization(ctx context.Context, companyID, id int64, in CategorizeInput, txID uuid.UUID) error
}

// Poster is the slice of the ledger service categorisation drives.
type Poster interface {
	Post(ctx context.Context, companyID int64, input ledger.PostingInput) (uuid.UUID, error)
}

type Service struct {
	repo   RepositoryPort
	poster Poster
	log    *slog.Logger
}

func NewService(repo RepositoryPort, poster Poster, log *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, log: log}
}

// Import parses the feed and persists surviving rows in feed order, then
// recomputes every running balance for the account. Imports against the same
// bank account are serialised; a concurrent import waits rather than
// interleaves.
func (s *Service) Import(ctx context.Context, companyID, bankAccountID int64, raw []byte) (*ImportResult, error) {
	if _, err := s.repo.GetBankAccount(ctx, companyID, bankAccountID); err != nil {
		return nil, err
	}
	parsed, skipped, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Parsed: len(parsed), Skipped: skipped}
	if len(parsed) == 0 {
		return result, nil
	}

	inserted := make(map[int64]bool, len(parsed))
	err = s.repo.WithAccountTx(ctx, bankAccountID, func(ctx context.Context, tx TxRepository) error {
		pos, err := tx.NextPosition(ctx, bankAccountID)
		if err != nil {
			return err
		}
		for _, p := range parsed {
			row := &Row{
				CompanyID:     companyID,
				BankAccountID: bankAccountID,
				Date:          p.Date,
				Description:   p.Description,
				Amount:        p.Amount,
				Position:      pos,
			}
			if err := tx.InsertRow(ctx, row); err != nil {
				return err
			}
			inserted[row.ID] = true
			pos++
		}
		if err := tx.RecomputeRunningBalance(ctx, bankAccountID); err != nil {
			return err
		}
		all, err := tx.RowsForAccount(ctx, bankAccountID)
		if err != nil {
			return err
		}
		for _, r := range all {
			if inserted[r.ID] {
				result.Rows = append(result.Rows, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bank feed imported",
		slog.Int64("bankAccountId", bankAccountID),
		slog.Int("parsed", result.Parsed),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// Categorize attaches accounting meaning to a staged row and posts it to the
// ledger. Outflows debit the offset account and credit the bank account;
// inflows mirror that. The row's amount and date never change.
func (s *Service) Categorize(ctx context.Context, companyID, rowID int64, in CategorizeInput) (*Row, error) {
	row, err := s.repo.GetRow(ctx, companyID, rowID)
	if err != nil {
		return nil, err
	}
	if row.TransactionID != nil {
		return nil, ErrRowAlreadyPosted
	}
	ba, err := s.repo.GetBankAccount(ctx, companyID, row.BankAccountID)
	if err != nil {
		return nil, err
	}

	amount := row.Amount.Abs()
	var lines []ledger.PostingLine
	if row.Amount < 0 {
		lines = []ledger.PostingLine{
			{AccountID: in.AccountID, Debit: amount},
			{AccountID: ba.LedgerAccountID, Credit: amount},
		}
	} else {
		lines = []ledger.PostingLine{
			{AccountID: ba.LedgerAccountID, Debit: amount},
			{AccountID: in.AccountID, Credit: amount},
		}
	}
	txID, err := s.poster.Post(ctx, companyID, ledger.PostingInput{
		Date:        row.Date,
		Description: row.Description,
		Source:      ledger.SourceRef{Kind: ledger.SourceBankRow, ID: row.ID},
		Lines:       lines,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCategorization(ctx, companyID, rowID, in, txID); err != nil {
		return nil, err
	}
	return s.repo.GetRow(ctx, companyID, rowID)
}

// ListRows returns the staged rows for one bank account in statement order.
func (s *Service) ListRows(ctx context.Context, companyID, bankAccountID int64) ([]Row, error) {
	if _, err := s.repo.GetBankAccount(ctx, companyID, bankAccountID); err != nil {
		return nil, err
	}
	return s.repo.ListRows(ctx, companyID, bankAccountID)
}

// Validate checks a feed without importing anything, reporting how many rows
// would survive.
func (s *Service) Validate(raw []byte) (parsed, skipped int, err error) {
	rows, skipped, err := Parse(raw)
	if err != nil {
		return 0, 0, err
	}
	return len(rows), skipped, nil
}
