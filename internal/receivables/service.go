package receivables

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RepositoryPort defines data access for aging and reminder state.
type RepositoryPort interface {
	CustomersWithBalance(ctx context.Context, companyID int64, now time.Time) ([]CustomerBalance, error)
	HasInvoiceDueOn(ctx context.Context, companyID, customerID int64, day time.Time) (bool, error)
	GetReminderRecord(ctx context.Context, companyID, customerID int64) (ReminderRecord, error)
	UpsertReminderRecord(ctx context.Context, rec ReminderRecord) error
	ResetReminderRecord(ctx context.Context, companyID, customerID int64) error
}

type Service struct {
	repo        RepositoryPort
	mailer      Mailer
	policy      Policy
	sendTimeout time.Duration
	log         *slog.Logger
	now         func() time.Time
}

func NewService(repo RepositoryPort, mailer Mailer, policy Policy, sendTimeout time.Duration, log *slog.Logger) *Service {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Service{
		repo:        repo,
		mailer:      mailer,
		policy:      policy,
		sendTimeout: sendTimeout,
		log:         log,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) { s.now = now }

// Aging returns per-customer balances with overdue buckets, recomputed from
// open invoices as of now. Customers with nothing outstanding are omitted.
func (s *Service) Aging(ctx context.Context, companyID int64) ([]CustomerBalance, error) {
	now := s.now()
	balances, err := s.repo.CustomersWithBalance(ctx, companyID, now)
	if err != nil {
		return nil, err
	}
	out := make([]CustomerBalance, 0, len(balances))
	for _, cb := range balances {
		if cb.Outstanding == 0 {
			continue
		}
		dueToday := false
		if cb.DaysOverdue == 0 {
			if dueToday, err = s.repo.HasInvoiceDueOn(ctx, companyID, cb.CustomerID, now); err != nil {
				return nil, err
			}
		}
		cb.State = StateFor(cb.DaysOverdue, dueToday)
		out = append(out, cb)
	}
	return out, nil
}

// SendReminders evaluates every customer (or only the given ids)
// independently and fires any reminder the policy says is due. One failing
// recipient never aborts the rest; zero-balance customers get their cycle
// reset instead of a send.
func (s *Service) SendReminders(ctx context.Context, companyID int64, customerIDs []int64) ([]SendOutcome, error) {
	now := s.now()
	balances, err := s.repo.CustomersWithBalance(ctx, companyID, now)
	if err != nil {
		return nil, err
	}
	var requested map[int64]bool
	if customerIDs != nil {
		requested = make(map[int64]bool, len(customerIDs))
		for _, id := range customerIDs {
			requested[id] = true
		}
	}

	var outcomes []SendOutcome
	for _, cb := range balances {
		if requested != nil && !requested[cb.CustomerID] {
			continue
		}
		outcome, include := s.evaluateCustomer(ctx, companyID, cb, now, requested != nil)
		if include {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, nil
}

func (s *Service) evaluateCustomer(ctx context.Context, companyID int64, cb CustomerBalance, now time.Time, explicit bool) (SendOutcome, bool) {
	if cb.Outstanding == 0 {
		if err := s.repo.ResetReminderRecord(ctx, companyID, cb.CustomerID); err != nil {
			s.log.Error("reset reminder cycle", slog.Int64("customerId", cb.CustomerID), slog.Any("error", err))
		}
		if explicit {
			return SendOutcome{CustomerID: cb.CustomerID, Status: StatusSkipped, Reason: "no outstanding balance"}, true
		}
		return SendOutcome{}, false
	}
	if cb.DaysOverdue == 0 {
		dueToday, err := s.repo.HasInvoiceDueOn(ctx, companyID, cb.CustomerID, now)
		if err != nil {
			return SendOutcome{CustomerID: cb.CustomerID, Status: StatusFailed, Reason: err.Error()}, true
		}
		if !dueToday {
			return SendOutcome{}, false
		}
	}

	rec, err := s.repo.GetReminderRecord(ctx, companyID, cb.CustomerID)
	if err != nil {
		return SendOutcome{CustomerID: cb.CustomerID, Status: StatusFailed, Reason: err.Error()}, true
	}
	offset, due := s.policy.NextOffset(cb.DaysOverdue, rec, now)
	if !due {
		if explicit {
			return SendOutcome{CustomerID: cb.CustomerID, Status: StatusSkipped, Reason: "no reminder due"}, true
		}
		return SendOutcome{}, false
	}
	if cb.Email == "" {
		return SendOutcome{CustomerID: cb.CustomerID, Status: StatusSkipped, Offset: offset, Reason: "customer has no email address"}, true
	}
	if !cb.RemindersEnabled {
		return SendOutcome{CustomerID: cb.CustomerID, Status: StatusSkipped, Offset: offset, Reason: "reminders disabled"}, true
	}

	subject, body := composeReminder(cb)
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err = s.mailer.Send(sendCtx, cb.Email, subject, body)
	cancel()
	if err != nil {
		s.log.Warn("reminder send failed",
			slog.Int64("customerId", cb.CustomerID), slog.Any("error", err))
		return SendOutcome{CustomerID: cb.CustomerID, Status: StatusFailed, Offset: offset, Reason: err.Error()}, true
	}

	rec.Fire(offset, now)
	if err := s.repo.UpsertReminderRecord(ctx, rec); err != nil {
		s.log.Error("persist reminder cycle",
			slog.Int64("customerId", cb.CustomerID), slog.Any("error", err))
		return SendOutcome{CustomerID: cb.CustomerID, Status: StatusFailed, Offset: offset, Reason: err.Error()}, true
	}
	return SendOutcome{CustomerID: cb.CustomerID, Status: StatusSent, Offset: offset}, true
}

func composeReminder(cb CustomerBalance) (subject, body string) {
	subject = fmt.Sprintf("Payment reminder: %s outstanding", cb.Outstanding)
	body = fmt.Sprintf(
		"Hello %s,\n\nYour account has an outstanding balance of %s across %d invoice(s). "+
			"The oldest item is %d day(s) past due. Please arrange payment at your earliest convenience.\n",
		cb.Name, cb.Outstanding, cb.InvoiceCount, cb.DaysOverdue)
	return subject, body
}
