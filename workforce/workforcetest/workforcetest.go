// Package workforcetest provides fixtures shared by the service tests: a
// settable clock, employees with a standard split-shift week and a seeding
// helper that works with any workforce.Store.
package workforcetest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// Monday is the first day of the week most tests run in.
var Monday = generic.Date(2025, time.March, 3)

// HireDate is the default employee start date.
var HireDate = generic.Date(2024, time.January, 8)

// =============================================================================
// CLOCK
// =============================================================================

// Clock is a settable time source. Pass c.Now where a generic.Clock is expected.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// FIXTURES
// =============================================================================

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// At returns hour:minute on date in UTC.
func At(date time.Time, hour, minute int) time.Time {
	return generic.NewClockTime(hour, minute).On(date, time.UTC)
}

// Rate parses an hourly rate.
func Rate(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

// Employee returns an hourly employee paid 20/h, hired on HireDate.
func Employee(id string) workforce.Employee {
	return workforce.Employee{
		ID:         id,
		FirstName:  "Test",
		LastName:   id,
		Email:      id + "@example.com",
		Team:       "operations",
		HourlyRate: Rate("20"),
		StartDate:  HireDate,
		CreatedAt:  HireDate,
	}
}

// StandardWeek is Monday to Friday 09:00-13:00 and 14:00-18:00, weekends off.
func StandardWeek(employeeID string) []workforce.ShiftDay {
	days := make([]workforce.ShiftDay, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		day := workforce.ShiftDay{EmployeeID: employeeID, DayOfWeek: d}
		if d != time.Saturday && d != time.Sunday {
			day.IsWorkingDay = true
			day.Morning = &workforce.SubShift{Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(13, 0)}
			day.Afternoon = &workforce.SubShift{Start: generic.NewClockTime(14, 0), End: generic.NewClockTime(18, 0)}
		}
		days = append(days, day)
	}
	return days
}

// Seed stores the employees, each with the standard week.
func Seed(t testing.TB, store workforce.Store, employees ...workforce.Employee) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx workforce.Tx) error {
		for _, e := range employees {
			if err := tx.SaveEmployee(context.Background(), e); err != nil {
				return err
			}
			if err := tx.ReplaceShiftDays(context.Background(), e.ID, StandardWeek(e.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// Write runs fn in a transaction and fails the test on error.
func Write(t testing.TB, store workforce.Store, fn func(ctx context.Context, tx workforce.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx workforce.Tx) error { return fn(ctx, tx) }))
}
