package receivables

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/money"
)

type memoryRepo struct {
	balances []CustomerBalance
	dueToday map[int64]bool
	records  map[int64]ReminderRecord
	resets   []int64
}

func newAgingRepo() *memoryRepo {
	return &memoryRepo{
		dueToday: map[int64]bool{},
		records:  map[int64]ReminderRecord{},
	}
}

func (m *memoryRepo) CustomersWithBalance(_ context.Context, _ int64, _ time.Time) ([]CustomerBalance, error) {
	return m.balances, nil
}

func (m *memoryRepo) HasInvoiceDueOn(_ context.Context, _ int64, customerID int64, _ time.Time) (bool, error) {
	return m.dueToday[customerID], nil
}

func (m *memoryRepo) GetReminderRecord(_ context.Context, companyID, customerID int64) (ReminderRecord, error) {
	if rec, ok := m.records[customerID]; ok {
		return rec, nil
	}
	return ReminderRecord{CompanyID: companyID, CustomerID: customerID}, nil
}

func (m *memoryRepo) UpsertReminderRecord(_ context.Context, rec ReminderRecord) error {
	m.records[rec.CustomerID] = rec
	return nil
}

func (m *memoryRepo) ResetReminderRecord(_ context.Context, _ int64, customerID int64) error {
	m.resets = append(m.resets, customerID)
	delete(m.records, customerID)
	return nil
}

type memoryMailer struct {
	sent   []string
	bodies []string
	failTo map[string]error
}

func (m *memoryMailer) Send(_ context.Context, to, _, body string) error {
	if err := m.failTo[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, to)
	m.bodies = append(m.bodies, body)
	return nil
}

var testNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func newTestService(repo *memoryRepo, mailer *memoryMailer) *Service {
	svc := NewService(repo, mailer, Policy{
		Offsets:    []int{0, 7, 15, 30},
		Recurrence: 30 * 24 * time.Hour,
	}, time.Second, slog.Default())
	svc.WithNow(func() time.Time { return testNow })
	return svc
}

func TestStateFor(t *testing.T) {
	cases := []struct {
		days     int
		dueToday bool
		want     AgingState
	}{
		{0, false, StateCurrent},
		{0, true, StateDue},
		{1, false, StateOverdue1to7},
		{7, false, StateOverdue1to7},
		{8, false, StateOverdue8to30},
		{30, false, StateOverdue8to30},
		{31, false, StateOverdue31Plus},
		{400, false, StateOverdue31Plus},
	}
	for _, tc := range cases {
		if got := StateFor(tc.days, tc.dueToday); got != tc.want {
			t.Errorf("StateFor(%d, %v) = %s, want %s", tc.days, tc.dueToday, got, tc.want)
		}
	}
}

func TestNextOffsetFiresLargestCrossed(t *testing.T) {
	policy := Policy{Offsets: []int{0, 7, 15, 30}, Recurrence: 30 * 24 * time.Hour}

	// 10 days overdue with no history fires the 7 offset, not 15.
	offset, due := policy.NextOffset(10, ReminderRecord{}, testNow)
	require.True(t, due)
	require.Equal(t, 7, offset)

	// After firing, the same day does not re-fire.
	rec := ReminderRecord{}
	rec.Fire(7, testNow)
	_, due = policy.NextOffset(10, rec, testNow)
	require.False(t, due)

	// Crossing 15 fires again.
	offset, due = policy.NextOffset(16, rec, testNow)
	require.True(t, due)
	require.Equal(t, 15, offset)
}

func TestNextOffsetRecurrenceAfterLastOffset(t *testing.T) {
	policy := Policy{Offsets: []int{0, 7, 15, 30}, Recurrence: 30 * 24 * time.Hour}
	rec := ReminderRecord{FiredOffsets: []int{0, 7, 15, 30}}

	lastSent := testNow.Add(-10 * 24 * time.Hour)
	rec.LastSentAt = &lastSent
	_, due := policy.NextOffset(45, rec, testNow)
	require.False(t, due, "recurrence interval not yet elapsed")

	lastSent = testNow.Add(-31 * 24 * time.Hour)
	rec.LastSentAt = &lastSent
	offset, due := policy.NextOffset(45, rec, testNow)
	require.True(t, due)
	require.Equal(t, 30, offset)
}

func TestDaysOverdueNeverNegative(t *testing.T) {
	due := testNow.Add(48 * time.Hour)
	require.Equal(t, 0, DaysOverdue(due, testNow))
	require.Equal(t, 10, DaysOverdue(testNow.Add(-10*24*time.Hour), testNow))
}

func TestAgingBucketsAndDueToday(t *testing.T) {
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Name: "Acme", Outstanding: money.Cents(10000), DaysOverdue: 10},
		{CustomerID: 2, Name: "Globex", Outstanding: money.Cents(5000), DaysOverdue: 0},
		{CustomerID: 3, Name: "Initech", Outstanding: money.Cents(2000), DaysOverdue: 0},
		{CustomerID: 4, Name: "Settled", Outstanding: 0},
	}
	repo.dueToday[2] = true

	svc := newTestService(repo, &memoryMailer{})
	rows, err := svc.Aging(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 3, "zero-balance customers omitted")
	require.Equal(t, StateOverdue8to30, rows[0].State)
	require.Equal(t, StateDue, rows[1].State)
	require.Equal(t, StateCurrent, rows[2].State)
}

func TestSendRemindersSkipsMissingEmailWithoutAborting(t *testing.T) {
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Email: "a@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
		{CustomerID: 2, Email: "", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
		{CustomerID: 3, Email: "c@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
	}
	mailer := &memoryMailer{}

	svc := newTestService(repo, mailer)
	outcomes, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	var sent, skipped int
	for _, o := range outcomes {
		switch o.Status {
		case StatusSent:
			sent++
		case StatusSkipped:
			skipped++
			require.Equal(t, int64(2), o.CustomerID)
		}
	}
	require.Equal(t, 2, sent)
	require.Equal(t, 1, skipped)
	require.Equal(t, []string{"a@example.com", "c@example.com"}, mailer.sent)
}

func TestSendRemindersMailerFailureIsolated(t *testing.T) {
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Email: "a@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
		{CustomerID: 2, Email: "b@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
	}
	mailer := &memoryMailer{failTo: map[string]error{"a@example.com": errors.New("relay refused")}}

	svc := newTestService(repo, mailer)
	outcomes, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.Equal(t, StatusFailed, outcomes[0].Status)
	require.Equal(t, StatusSent, outcomes[1].Status)

	// The failed send leaves no fired offset, so it retries next run.
	_, retryDue := Policy{Offsets: []int{0, 7, 15, 30}, Recurrence: 30 * 24 * time.Hour}.
		NextOffset(10, repo.records[1], testNow)
	require.True(t, retryDue)
}

func TestSendRemindersDoesNotRefireSameDay(t *testing.T) {
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Email: "a@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
	}
	mailer := &memoryMailer{}

	svc := newTestService(repo, mailer)
	first, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, StatusSent, first[0].Status)
	require.Equal(t, 7, first[0].Offset)

	second, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Empty(t, second, "same-day re-evaluation fires nothing")
	require.Len(t, mailer.sent, 1)
}

func TestSendRemindersResetsZeroBalanceCycle(t *testing.T) {
	repo := newAgingRepo()
	sent := testNow.Add(-5 * 24 * time.Hour)
	repo.records[1] = ReminderRecord{CompanyID: 1, CustomerID: 1, LastSentAt: &sent, FiredOffsets: []int{0, 7}}
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Email: "a@example.com", RemindersEnabled: true, Outstanding: 0},
	}

	svc := newTestService(repo, &memoryMailer{})
	outcomes, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Empty(t, outcomes)
	require.Equal(t, []int64{1}, repo.resets)
	require.NotContains(t, repo.records, int64(1))
}

func TestOpenAmountAfterPartialPayment(t *testing.T) {
	require.Equal(t, money.Cents(6000), OpenAmount(money.Cents(10000), money.Cents(4000)))
	require.Equal(t, money.Cents(0), OpenAmount(money.Cents(10000), money.Cents(10000)))
	require.Equal(t, money.Cents(0), OpenAmount(money.Cents(10000), money.Cents(12000)))
	require.Equal(t, money.Cents(10000), OpenAmount(money.Cents(10000), 0))
}

func TestReminderQuotesNetOutstanding(t *testing.T) {
	// A half-collected invoice must be dunned for the remainder, not the
	// face value.
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Name: "Acme", Email: "a@example.com", RemindersEnabled: true,
			Outstanding: OpenAmount(money.Cents(10000), money.Cents(4000)), DaysOverdue: 10, InvoiceCount: 1},
	}
	mailer := &memoryMailer{}

	svc := newTestService(repo, mailer)
	outcomes, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, StatusSent, outcomes[0].Status)
	require.Len(t, mailer.bodies, 1)
	require.Contains(t, mailer.bodies[0], money.Cents(6000).String())
	require.NotContains(t, mailer.bodies[0], money.Cents(10000).String())
}

func TestSendRemindersRespectsDisabledFlag(t *testing.T) {
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Email: "a@example.com", RemindersEnabled: false, Outstanding: money.Cents(1000), DaysOverdue: 3},
	}
	mailer := &memoryMailer{}

	svc := newTestService(repo, mailer)
	outcomes, err := svc.SendReminders(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, StatusSkipped, outcomes[0].Status)
	require.Empty(t, mailer.sent)
}

func TestSendRemindersExplicitSubset(t *testing.T) {
	repo := newAgingRepo()
	repo.balances = []CustomerBalance{
		{CustomerID: 1, Email: "a@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
		{CustomerID: 2, Email: "b@example.com", RemindersEnabled: true, Outstanding: money.Cents(1000), DaysOverdue: 10},
	}
	mailer := &memoryMailer{}

	svc := newTestService(repo, mailer)
	outcomes, err := svc.SendReminders(context.Background(), 1, []int64{2})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, int64(2), outcomes[0].CustomerID)
	require.Equal(t, []string{"b@example.com"}, mailer.sent)
}
