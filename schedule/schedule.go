/*
schedule.go - Per-employee weekly shift schedule

PURPOSE:
  Each employee has up to seven ShiftDays, one per weekday, each with an
  optional morning and afternoon sub-shift. The schedule constrains clock-in
  (window selection), time-off (which days count) and payroll (scheduled
  hours of unworked holidays).

INVARIANTS (checked by Validate before anything is written):
  - day_of_week in 0..6, at most one row per weekday
  - a non-working day carries no times
  - a working day has at least one sub-shift
  - every sub-shift has end > start
  - afternoon start >= morning end

REPLACEMENT:
  Replace deletes all of an employee's rows and inserts the new set inside one
  store transaction, so readers never observe a half-written week.

SEE ALSO:
  - clock/clock.go: window selection on clock-in
  - timeoff/request.go: working-day count for requests
*/
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// WEEK
// =============================================================================

// Week is an employee's schedule indexed by time.Weekday.
type Week [7]workforce.ShiftDay

// NewWeek places days by weekday; missing weekdays become non-working.
func NewWeek(employeeID string, days []workforce.ShiftDay) Week {
	var w Week
	for i := range w {
		w[i] = workforce.ShiftDay{EmployeeID: employeeID, DayOfWeek: time.Weekday(i)}
	}
	for _, d := range days {
		if d.DayOfWeek >= time.Sunday && d.DayOfWeek <= time.Saturday {
			w[d.DayOfWeek] = d
		}
	}
	return w
}

// On returns the ShiftDay for date's weekday.
func (w Week) On(date time.Time) workforce.ShiftDay { return w[date.Weekday()] }

// WorkingDays returns the dates in p that are scheduled working days and not
// in holidays (keyed by date at 00:00 UTC).
func (w Week) WorkingDays(p generic.Period, holidays map[time.Time]bool) []time.Time {
	var out []time.Time
	for _, d := range p.Days() {
		if w.On(d).IsWorkingDay && !holidays[d] {
			out = append(out, d)
		}
	}
	return out
}

// =============================================================================
// WINDOWS
// =============================================================================

const (
	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
)

// Window is a named sub-shift.
type Window struct {
	Name string
	workforce.SubShift
}

// Windows returns the day's sub-shifts in order.
func Windows(d workforce.ShiftDay) []Window {
	if !d.IsWorkingDay {
		return nil
	}
	var out []Window
	if d.Morning != nil {
		out = append(out, Window{Name: WindowMorning, SubShift: *d.Morning})
	}
	if d.Afternoon != nil {
		out = append(out, Window{Name: WindowAfternoon, SubShift: *d.Afternoon})
	}
	return out
}

// SelectWindow returns the first window whose end is after tod.
func SelectWindow(d workforce.ShiftDay, tod generic.ClockTime) (Window, bool) {
	for _, w := range Windows(d) {
		if tod < w.End {
			return w, true
		}
	}
	return Window{}, false
}

// ScheduledHours sums the durations of the day's sub-shifts.
func ScheduledHours(d workforce.ShiftDay) decimal.Decimal {
	total := decimal.Zero
	for _, w := range Windows(d) {
		total = total.Add(generic.DurationHours(w.Duration()))
	}
	return generic.Round2(total)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks every ShiftDay invariant and reports all violations at once.
func Validate(days []workforce.ShiftDay) error {
	verr := &generic.ValidationError{}
	seen := make(map[time.Weekday]bool)

	for i, d := range days {
		field := fmt.Sprintf("days[%d]", i)
		if d.DayOfWeek < time.Sunday || d.DayOfWeek > time.Saturday {
			verr.Add(field+".day_of_week", "must be between 0 and 6")
			continue
		}
		if seen[d.DayOfWeek] {
			verr.Add(field+".day_of_week", fmt.Sprintf("duplicate day %d", d.DayOfWeek))
		}
		seen[d.DayOfWeek] = true

		if !d.IsWorkingDay {
			if d.Morning != nil || d.Afternoon != nil {
				verr.Add(field, "non-working day must not have shift times")
			}
			continue
		}
		if d.Morning == nil && d.Afternoon == nil {
			verr.Add(field, "working day needs at least one sub-shift")
			continue
		}
		if d.Morning != nil && d.Morning.End <= d.Morning.Start {
			verr.Add(field+".morning", "end must be after start")
		}
		if d.Afternoon != nil && d.Afternoon.End <= d.Afternoon.Start {
			verr.Add(field+".afternoon", "end must be after start")
		}
		if d.Morning != nil && d.Afternoon != nil && d.Afternoon.Start < d.Morning.End {
			verr.Add(field+".afternoon", "must start at or after morning end")
		}
	}
	return verr.Err()
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  workforce.Store
	logger *slog.Logger
}

func NewService(store workforce.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get returns all seven days ordered by weekday. Weekdays without a stored
// row are non-working.
func (s *Service) Get(ctx context.Context, employeeID string) (Week, error) {
	return generic.RetryValue(ctx, "schedule.get", func(ctx context.Context) (Week, error) {
		return Load(ctx, s.store, employeeID)
	})
}

// Load reads an employee's week through any store reader.
func Load(ctx context.Context, r workforce.Reader, employeeID string) (Week, error) {
	if _, err := r.GetEmployee(ctx, employeeID); err != nil {
		return Week{}, err
	}
	days, err := r.ListShiftDays(ctx, employeeID)
	if err != nil {
		return Week{}, err
	}
	return NewWeek(employeeID, days), nil
}

// Day returns the stored ShiftDay for one weekday.
func (s *Service) Day(ctx context.Context, employeeID string, day time.Weekday) (workforce.ShiftDay, error) {
	return generic.RetryValue(ctx, "schedule.day", func(ctx context.Context) (workforce.ShiftDay, error) {
		return s.store.GetShiftDay(ctx, employeeID, day)
	})
}

// Replace validates days and swaps them in for the employee's whole week.
func (s *Service) Replace(ctx context.Context, employeeID string, days []workforce.ShiftDay) error {
	logger := logging.Service(ctx, s.logger, "schedule", "replace", "employee_id", employeeID)

	if err := Validate(days); err != nil {
		logger.Info("schedule rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return err
	}
	rows := make([]workforce.ShiftDay, len(days))
	for i, d := range days {
		d.EmployeeID = employeeID
		if !d.IsWorkingDay {
			d.Morning, d.Afternoon = nil, nil
		}
		rows[i] = d
	}

	err := generic.Retry(ctx, "schedule.replace", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, employeeID); err != nil {
				return err
			}
			return tx.ReplaceShiftDays(ctx, employeeID, rows)
		})
	})
	if err != nil {
		logger.Warn("schedule replace failed", "error_kind", generic.ErrorKind(err), "error", err)
		return err
	}
	logger.Info("schedule replaced", "days", len(rows))
	return nil
}

// HolidayLister lists holidays with from <= date <= to. Reader.ListHolidays
// and payroll calendars both fit.
type HolidayLister func(ctx context.Context, from, to time.Time) ([]workforce.Holiday, error)

// HolidaySet loads the holidays in p keyed by date.
func HolidaySet(ctx context.Context, list HolidayLister, p generic.Period) (map[time.Time]bool, error) {
	holidays, err := list(ctx, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	set := make(map[time.Time]bool, len(holidays))
	for _, h := range holidays {
		set[generic.DateOf(h.Date, time.UTC)] = true
	}
	return set, nil
}
