// Package jobs runs background work: the nightly reminder dispatch and the
// ledger integrity scan.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/receivables"
	"github.com/ledgerline/ledgerline/internal/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRemindersDispatch evaluates every customer and fires due payment
	// reminders.
	TaskRemindersDispatch = "reminders:dispatch"
	// TaskLedgerIntegrity verifies every company's trial balance still
	// balances.
	TaskLedgerIntegrity = "ledger:integrity"
)

// RemindersDispatchPayload scopes a dispatch run. CompanyID zero means every
// company.
type RemindersDispatchPayload struct {
	CompanyID int64 `json:"companyId"`
}

// NewRemindersDispatchTask constructs the dispatch task.
func NewRemindersDispatchTask(payload RemindersDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRemindersDispatch, data), nil
}

// NewLedgerIntegrityTask constructs the integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// OverdueMarker flips documents past their due date before reminders run.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, companyID int64) (int64, error)
}

// ReminderSender runs one company's reminder batch.
type ReminderSender interface {
	SendReminders(ctx context.Context, companyID int64, customerIDs []int64) ([]receivables.SendOutcome, error)
}

// NewRemindersDispatchHandler builds the handler processing
// TaskRemindersDispatch. Each company is processed independently; one
// failing company does not abort the rest.
func NewRemindersDispatchHandler(rep *reports.Service, marker OverdueMarker, sender ReminderSender, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RemindersDispatchPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}

		companies, err := companyScope(ctx, rep, payload.CompanyID)
		if err != nil {
			return err
		}
		for _, companyID := range companies {
			flipped, err := marker.MarkOverdue(ctx, companyID)
			if err != nil {
				logger.Error("mark overdue", slog.Int64("companyId", companyID), slog.Any("error", err))
				continue
			}
			outcomes, err := sender.SendReminders(ctx, companyID, nil)
			if err != nil {
				logger.Error("reminder batch", slog.Int64("companyId", companyID), slog.Any("error", err))
				continue
			}
			var sent, skipped, failed int
			for _, o := range outcomes {
				switch o.Status {
				case receivables.StatusSent:
					sent++
				case receivables.StatusSkipped:
					skipped++
				case receivables.StatusFailed:
					failed++
				}
			}
			logger.Info("reminder batch done",
				slog.Int64("companyId", companyID),
				slog.Int64("markedOverdue", flipped),
				slog.Int("sent", sent),
				slog.Int("skipped", skipped),
				slog.Int("failed", failed))
		}
		return nil
	}
}

// NewLedgerIntegrityHandler builds the handler processing
// TaskLedgerIntegrity. An out-of-balance company is logged loudly but the
// scan continues.
func NewLedgerIntegrityHandler(rep *reports.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		companies, err := rep.CompanyIDs(ctx)
		if err != nil {
			return err
		}
		asOf := time.Now().UTC()
		for _, companyID := range companies {
			tb, err := rep.GetTrialBalance(ctx, companyID, &asOf)
			if err != nil {
				logger.Error("integrity scan", slog.Int64("companyId", companyID), slog.Any("error", err))
				continue
			}
			if !tb.Balanced {
				logger.Error("trial balance out of balance",
					slog.Int64("companyId", companyID),
					slog.String("totalDebit", tb.TotalDebit.String()),
					slog.String("totalCredit", tb.TotalCredit.String()))
				continue
			}
			logger.Info("trial balance verified", slog.Int64("companyId", companyID))
		}
		return nil
	}
}

func companyScope(ctx context.Context, rep *reports.Service, companyID int64) ([]int64, error) {
	if companyID != 0 {
		return []int64{companyID}, nil
	}
	return rep.CompanyIDs(ctx)
}
