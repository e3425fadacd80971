/*
amount.go - Decimal quantities for hours, days and money

PURPOSE:
  Every quantity the engine stores or compares is a decimal, never a float.
  Hours worked, days of leave and pay amounts all round the same way, so
  recomputing a figure from unchanged inputs yields the identical value.

ROUNDING:
  Hours and money are rounded to two places, half away from zero
  (decimal.Round semantics). Pay components are rounded individually and
  totals are the sum of the rounded components.

SEE ALSO:
  - errors.go: InsufficientBalanceError carries Amounts
  - payroll/payroll.go: consumer of the rounding helpers
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Unit string

const (
	UnitHours Unit = "hours"
	UnitDays  Unit = "days"
)

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func Days(d decimal.Decimal) Amount  { return Amount{Value: d, Unit: UnitDays} }
func Hours(d decimal.Decimal) Amount { return Amount{Value: d, Unit: UnitHours} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) String() string            { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// ROUNDING
// =============================================================================

// Places is the number of decimal places kept for hours and money.
const Places = 2

var hourNanos = decimal.NewFromInt(int64(time.Hour))

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(Places) }

// HoursBetween returns end-start in hours rounded to two places.
// The caller validates ordering.
func HoursBetween(start, end time.Time) decimal.Decimal {
	return Round2(decimal.NewFromInt(int64(end.Sub(start))).Div(hourNanos))
}

// DurationHours converts a duration to unrounded decimal hours.
func DurationHours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(hourNanos)
}

// Pay multiplies hours by a rate (and optional multiplier) and rounds to cents.
func Pay(hours, rate decimal.Decimal, multiplier ...decimal.Decimal) decimal.Decimal {
	p := hours.Mul(rate)
	for _, m := range multiplier {
		p = p.Mul(m)
	}
	return Round2(p)
}
