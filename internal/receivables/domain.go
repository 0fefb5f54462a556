// Package receivables derives per-customer outstanding balances and overdue
// buckets from open invoices and drives the payment reminder scheduler.
package receivables

import (
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/internal/money"
)

// AgingState buckets a customer's worst overdue invoice.
type AgingState string

const (
	StateCurrent       AgingState = "CURRENT"
	StateDue           AgingState = "DUE"
	StateOverdue1to7   AgingState = "OVERDUE_1_7"
	StateOverdue8to30  AgingState = "OVERDUE_8_30"
	StateOverdue31Plus AgingState = "OVERDUE_31_PLUS"
)

// CustomerBalance is one aging report row, recomputed on demand.
type CustomerBalance struct {
	CustomerID       int64       `json:"customerId"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	RemindersEnabled bool        `json:"remindersEnabled"`
	Outstanding      money.Cents `json:"outstanding"`
	DaysOverdue      int         `json:"daysOverdue"`
	InvoiceCount     int         `json:"invoiceCount"`
	LastInvoiceDate  *time.Time  `json:"lastInvoiceDate,omitempty"`
	LastReminderSent *time.Time  `json:"lastReminderSent,omitempty"`
	State            AgingState  `json:"state"`
}

// ReminderRecord tracks send history for the customer's current overdue
// cycle. It is reset when the outstanding balance returns to zero.
type ReminderRecord struct {
	CompanyID    int64      `json:"companyId"`
	CustomerID   int64      `json:"customerId"`
	LastSentAt   *time.Time `json:"lastSentAt,omitempty"`
	FiredOffsets []int      `json:"firedOffsets"`
}

// SendStatus classifies one reminder attempt.
type SendStatus string

const (
	StatusSent    SendStatus = "SENT"
	StatusSkipped SendStatus = "SKIPPED"
	StatusFailed  SendStatus = "FAILED"
)

// SendOutcome is the per-customer result of a reminder batch.
type SendOutcome struct {
	CustomerID int64      `json:"customerId"`
	Status     SendStatus `json:"status"`
	Offset     int        `json:"offset,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Policy is the reminder firing schedule: fixed offsets in days past due,
// then a recurrence interval once the last offset is exhausted.
type Policy struct {
	Offsets    []int
	Recurrence time.Duration
}

// ErrCustomerNotFound indicates an unknown customer id for the company.
var ErrCustomerNotFound = errors.New("receivables: customer not found")

// StateFor maps days overdue to an aging bucket. dueToday distinguishes DUE
// (an invoice due today) from CURRENT.
func StateFor(daysOverdue int, dueToday bool) AgingState {
	switch {
	case daysOverdue >= 31:
		return StateOverdue31Plus
	case daysOverdue >= 8:
		return StateOverdue8to30
	case daysOverdue >= 1:
		return StateOverdue1to7
	case dueToday:
		return StateDue
	default:
		return StateCurrent
	}
}

// OpenAmount gives the uncollected remainder of an invoice after settling
// postings, never negative. The repository applies the same arithmetic per
// open invoice when aggregating customer balances.
func OpenAmount(total, settled money.Cents) money.Cents {
	if settled >= total {
		return 0
	}
	return total - settled
}

// DaysOverdue gives whole days past due, never negative.
func DaysOverdue(due, now time.Time) int {
	days := int(now.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// NextOffset decides whether a reminder should fire for the given overdue
// age and history. The candidate is the largest crossed offset; smaller
// offsets missed along the way are superseded, not fired late. It returns
// the offset to record and true when eligible. Past the last fixed offset,
// eligibility rolls over to the recurrence interval measured from the last
// send.
func (p Policy) NextOffset(daysOverdue int, rec ReminderRecord, now time.Time) (int, bool) {
	if len(p.Offsets) == 0 {
		return 0, false
	}
	candidate, found := -1, false
	for _, offset := range p.Offsets {
		if offset > daysOverdue {
			break
		}
		candidate, found = offset, true
	}
	if !found {
		return 0, false
	}
	maxFired := -1
	for _, o := range rec.FiredOffsets {
		if o > maxFired {
			maxFired = o
		}
	}
	if candidate > maxFired {
		return candidate, true
	}
	last := p.Offsets[len(p.Offsets)-1]
	if daysOverdue > last && candidate == last {
		if rec.LastSentAt == nil || now.Sub(*rec.LastSentAt) >= p.Recurrence {
			return last, true
		}
	}
	return 0, false
}

// Fire records an offset as sent, keeping the set free of duplicates.
func (r *ReminderRecord) Fire(offset int, at time.Time) {
	for _, o := range r.FiredOffsets {
		if o == offset {
			r.LastSentAt = &at
			return
		}
	}
	r.FiredOffsets = append(r.FiredOffsets, offset)
	r.LastSentAt = &at
}
