/*
store.go - Persistence contract for the engine

PURPOSE:
  Services never talk to a database directly. They receive a Store and run
  every state transition inside Store.WithTx, which commits only if the
  callback returns nil.

SERIALIZATION:
  Tx.LockEmployee(userID) serializes operations on the same employee until the
  transaction ends. Preconditions (no pending correction, balance available,
  no active entry) are re-read after taking the lock.
  - store/sqlstore: SELECT ... FOR UPDATE on PostgreSQL; SQLite runs
    BEGIN IMMEDIATE transactions on a single connection
  - store/memory: one store-wide mutex per transaction

UNIQUENESS:
  - InsertEarlyAttempt fails with generic.ErrDuplicateAttempt when a pending
    attempt exists for the same (user, scheduled start)
  - AppendAdjustment fails with ErrDuplicateIdempotencyKey
  - SaveHoliday fails with ErrDuplicateHoliday for a second (date, name)
  - UpsertPayroll keys rows by (pay_period_id, user_id)

NOT FOUND:
  Get* methods return a *generic.NotFoundError for missing rows.

IMPLEMENTATIONS:
  - store/memory/memory.go: in-memory, for tests
  - store/sqlstore/sqlstore.go: SQLite and PostgreSQL
*/
package workforce

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/timeclock-engine/generic"
)

var (
	ErrDuplicateIdempotencyKey = fmt.Errorf("%w: duplicate idempotency key", generic.ErrStateConflict)
	ErrDuplicateHoliday        = fmt.Errorf("%w: holiday already exists for that date", generic.ErrStateConflict)
)

// Store opens transactions and offers read-only access outside of them.
type Store interface {
	// WithTx runs fn in a transaction. fn's error rolls back and is returned.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Reader
}

// Reader is the read side shared by Store and Tx.
type Reader interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	ListShiftDays(ctx context.Context, employeeID string) ([]ShiftDay, error)
	GetShiftDay(ctx context.Context, employeeID string, day time.Weekday) (ShiftDay, error)

	GetEarlyAttempt(ctx context.Context, id string) (EarlyClockAttempt, error)
	ListEarlyAttempts(ctx context.Context, f AttemptFilter) ([]EarlyClockAttempt, error)

	GetTimeEntry(ctx context.Context, id string) (TimeEntry, error)
	// ActiveTimeEntry returns the user's active entry, or NotFoundError.
	ActiveTimeEntry(ctx context.Context, userID string) (TimeEntry, error)
	ListTimeEntries(ctx context.Context, f EntryFilter) ([]TimeEntry, error)

	GetCorrection(ctx context.Context, id string) (TimeCorrection, error)
	ListCorrections(ctx context.Context, f CorrectionFilter) ([]TimeCorrection, error)

	GetTimeOffRequest(ctx context.Context, id string) (TimeOffRequest, error)
	ListTimeOffRequests(ctx context.Context, f TimeOffFilter) ([]TimeOffRequest, error)

	ListAdjustments(ctx context.Context, userID string, t TimeOffType) ([]BalanceAdjustment, error)

	GetTimeOffRule(ctx context.Context, id string) (TimeOffRule, error)
	ListTimeOffRules(ctx context.Context) ([]TimeOffRule, error)

	// ListHolidays returns holidays with from <= date <= to, ordered by date.
	ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error)

	GetPayPeriod(ctx context.Context, id string) (PayPeriod, error)
	ListPayPeriods(ctx context.Context) ([]PayPeriod, error)

	GetPayroll(ctx context.Context, payPeriodID, userID string) (PayrollCalculation, error)
	ListPayroll(ctx context.Context, payPeriodID string) ([]PayrollCalculation, error)
}

// Tx is a unit of work. It is only valid inside the WithTx callback.
type Tx interface {
	Reader

	// LockEmployee serializes the rest of the transaction against other
	// transactions locking the same employee.
	LockEmployee(ctx context.Context, userID string) error

	SaveEmployee(ctx context.Context, e Employee) error

	// ReplaceShiftDays deletes every ShiftDay of the employee and inserts days.
	ReplaceShiftDays(ctx context.Context, employeeID string, days []ShiftDay) error

	InsertEarlyAttempt(ctx context.Context, a EarlyClockAttempt) error
	UpdateEarlyAttempt(ctx context.Context, a EarlyClockAttempt) error

	InsertTimeEntry(ctx context.Context, e TimeEntry) error
	UpdateTimeEntry(ctx context.Context, e TimeEntry) error

	InsertCorrection(ctx context.Context, c TimeCorrection) error
	UpdateCorrection(ctx context.Context, c TimeCorrection) error

	InsertTimeOffRequest(ctx context.Context, r TimeOffRequest) error
	UpdateTimeOffRequest(ctx context.Context, r TimeOffRequest) error

	AppendAdjustment(ctx context.Context, a BalanceAdjustment) error

	SaveTimeOffRule(ctx context.Context, r TimeOffRule) error

	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error

	SavePayPeriod(ctx context.Context, p PayPeriod) error

	// UpsertPayroll inserts or replaces the row for (PayPeriodID, UserID).
	UpsertPayroll(ctx context.Context, c PayrollCalculation) error
}

// =============================================================================
// FILTERS - zero values match everything
// =============================================================================

type AttemptFilter struct {
	UserID string
	Status string
}

type EntryFilter struct {
	UserID   string
	Statuses []EntryStatus
	// StartFrom <= start_time < StartTo
	StartFrom time.Time
	StartTo   time.Time
}

type CorrectionFilter struct {
	UserID      string
	TimeEntryID string
	Status      string
}

type TimeOffFilter struct {
	UserID string
	Type   TimeOffType
	Status string
	// Requests whose [start_date, end_date] intersects [From, To].
	From time.Time
	To   time.Time
}

// Matches reports whether e passes the filter.
func (f EntryFilter) Matches(e TimeEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if e.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.StartFrom.IsZero() && e.StartTime.Before(f.StartFrom) {
		return false
	}
	if !f.StartTo.IsZero() && !e.StartTime.Before(f.StartTo) {
		return false
	}
	return true
}

func (f TimeOffFilter) Matches(r TimeOffRequest) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && string(r.Status) != f.Status {
		return false
	}
	if !f.From.IsZero() && r.EndDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.StartDate.After(f.To) {
		return false
	}
	return true
}

func (f CorrectionFilter) Matches(c TimeCorrection) bool {
	return (f.UserID == "" || c.UserID == f.UserID) &&
		(f.TimeEntryID == "" || c.TimeEntryID == f.TimeEntryID) &&
		(f.Status == "" || string(c.Status) == f.Status)
}

func (f AttemptFilter) Matches(a EarlyClockAttempt) bool {
	return (f.UserID == "" || a.UserID == f.UserID) &&
		(f.Status == "" || string(a.Status) == f.Status)
}
