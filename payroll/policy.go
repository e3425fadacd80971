package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// RATE POLICY
// =============================================================================

// RatePolicy isolates the pay rules from the aggregation.
type RatePolicy interface {
	// RegularRate returns the employee's base hourly rate, or an error
	// wrapping generic.ErrMissingRate.
	RegularRate(emp workforce.Employee) (decimal.Decimal, error)
	OvertimeMultiplier() decimal.Decimal
	WeeklyOvertimeThreshold() decimal.Decimal
	HolidayMultiplier() decimal.Decimal
	PTOHoursPerDay() decimal.Decimal
}

// Rates is the configurable RatePolicy. The regular rate comes from the
// employee record.
type Rates struct {
	Overtime        decimal.Decimal
	WeeklyThreshold decimal.Decimal
	Holiday         decimal.Decimal
	PTOHours        decimal.Decimal
}

var _ RatePolicy = Rates{}

// DefaultRates: 1.5x overtime past 40 weekly hours, 1.5x on holidays, 8 hour
// PTO days.
func DefaultRates() Rates {
	return Rates{
		Overtime:        decimal.NewFromFloat(1.5),
		WeeklyThreshold: decimal.NewFromInt(40),
		Holiday:         decimal.NewFromFloat(1.5),
		PTOHours:        decimal.NewFromInt(8),
	}
}

func (r Rates) RegularRate(emp workforce.Employee) (decimal.Decimal, error) {
	if emp.HourlyRate == nil || !emp.HourlyRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: employee %s", generic.ErrMissingRate, emp.ID)
	}
	return *emp.HourlyRate, nil
}

func (r Rates) OvertimeMultiplier() decimal.Decimal      { return r.Overtime }
func (r Rates) WeeklyOvertimeThreshold() decimal.Decimal { return r.WeeklyThreshold }
func (r Rates) HolidayMultiplier() decimal.Decimal       { return r.Holiday }
func (r Rates) PTOHoursPerDay() decimal.Decimal          { return r.PTOHours }

// Validate rejects multipliers below 1 and non-positive thresholds.
func (r Rates) Validate() error {
	verr := &generic.ValidationError{}
	one := decimal.NewFromInt(1)
	if r.Overtime.LessThan(one) {
		verr.Add("overtime_multiplier", "must be at least 1")
	}
	if !r.WeeklyThreshold.IsPositive() {
		verr.Add("weekly_overtime_threshold", "must be positive")
	}
	if r.Holiday.LessThan(one) {
		verr.Add("holiday_multiplier", "must be at least 1")
	}
	if !r.PTOHours.IsPositive() {
		verr.Add("pto_hours_per_day", "must be positive")
	}
	return verr.Err()
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar lists holidays with from <= date <= to.
type HolidayCalendar interface {
	Holidays(ctx context.Context, from, to time.Time) ([]workforce.Holiday, error)
}

// StoreCalendar reads holidays from the store.
type StoreCalendar struct {
	Reader workforce.Reader
}

func (c StoreCalendar) Holidays(ctx context.Context, from, to time.Time) ([]workforce.Holiday, error) {
	return c.Reader.ListHolidays(ctx, from, to)
}

// within returns the calendar to consult from inside a transaction. A store
// calendar is rebound to the transaction's reader; the store itself must not
// be read while the transaction holds the connection.
func within(cal HolidayCalendar, r workforce.Reader) HolidayCalendar {
	if _, ok := cal.(StoreCalendar); ok {
		return StoreCalendar{Reader: r}
	}
	return cal
}
