package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive range of calendar dates
// =============================================================================

// Period is [Start, End], both calendar dates at 00:00 UTC.
type Period struct {
	Start time.Time
	End   time.Time
}

func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: DateOf(start, time.UTC), End: DateOf(end, time.UTC)}
	if p.End.Before(p.Start) {
		return Period{}, ErrInvalidInterval
	}
	return p, nil
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(date time.Time) bool {
	d := DateOf(date, time.UTC)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns every date in the period.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Len returns the number of days in the period.
func (p Period) Len() int { return DaysBetween(p.Start, p.End) + 1 }

// Intersect returns the overlap of two periods.
func (p Period) Intersect(o Period) (Period, bool) {
	start, end := p.Start, p.End
	if o.Start.After(start) {
		start = o.Start
	}
	if o.End.Before(end) {
		end = o.End
	}
	if end.Before(start) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Bounds returns the half-open instant range [Start 00:00, End+1 00:00) in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	return StartOfDayIn(p.Start, loc), StartOfDayIn(p.End.AddDate(0, 0, 1), loc)
}

func (p Period) String() string {
	return "[" + p.Start.Format(DateLayout) + ", " + p.End.Format(DateLayout) + "]"
}

// =============================================================================
// INTERVALS - Rolling windows anchored on a date
// =============================================================================

type IntervalUnit string

const (
	UnitDay   IntervalUnit = "days"
	UnitMonth IntervalUnit = "months"
	UnitYear  IntervalUnit = "years"
)

func (u IntervalUnit) Valid() bool { return u == UnitDay || u == UnitMonth || u == UnitYear }

// AddInterval adds n units to t.
func AddInterval(t time.Time, n int, unit IntervalUnit) time.Time {
	switch unit {
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitMonth:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(n, 0, 0)
	}
}

// WindowContaining returns the window of length n×unit, stepping from anchor,
// that contains date. Dates before the anchor map to windows stepping backwards.
func WindowContaining(anchor time.Time, n int, unit IntervalUnit, date time.Time) Period {
	if n <= 0 {
		n = 1
	}
	anchor, date = DateOf(anchor, time.UTC), DateOf(date, time.UTC)
	start := anchor
	for k := 1; start.After(date); k++ {
		start = AddInterval(anchor, -n*k, unit)
	}
	for k := 1; ; k++ {
		next := AddInterval(anchor, n*k, unit)
		if next.After(date) {
			return Period{Start: start, End: next.AddDate(0, 0, -1)}
		}
		start = next
	}
}

// =============================================================================
// PAY PERIOD GENERATION
// =============================================================================

type PeriodType string

const (
	PeriodWeekly      PeriodType = "weekly"
	PeriodBiweekly    PeriodType = "biweekly"
	PeriodSemimonthly PeriodType = "semimonthly"
	PeriodMonthly     PeriodType = "monthly"
)

func (t PeriodType) Valid() bool {
	switch t {
	case PeriodWeekly, PeriodBiweekly, PeriodSemimonthly, PeriodMonthly:
		return true
	}
	return false
}

// GeneratePeriods returns the periods of the given type whose start date falls
// in year. Weekly and biweekly periods step from anchor (a period start date);
// semimonthly and monthly periods follow the calendar.
func GeneratePeriods(year int, typ PeriodType, anchor time.Time) ([]Period, error) {
	first, last := Date(year, time.January, 1), Date(year, time.December, 31)
	var periods []Period

	switch typ {
	case PeriodWeekly, PeriodBiweekly:
		days := 7
		if typ == PeriodBiweekly {
			days = 14
		}
		if anchor.IsZero() {
			anchor = ISOWeekStart(first)
		}
		w := WindowContaining(anchor, days, UnitDay, first)
		if w.Start.Before(first) {
			w = Period{Start: w.Start.AddDate(0, 0, days), End: w.End.AddDate(0, 0, days)}
		}
		for ; !w.Start.After(last); w = (Period{Start: w.Start.AddDate(0, 0, days), End: w.End.AddDate(0, 0, days)}) {
			periods = append(periods, w)
		}
	case PeriodSemimonthly:
		for m := time.January; m <= time.December; m++ {
			mid := Date(year, m, 15)
			periods = append(periods,
				Period{Start: Date(year, m, 1), End: mid},
				Period{Start: mid.AddDate(0, 0, 1), End: Date(year, m+1, 1).AddDate(0, 0, -1)})
		}
	case PeriodMonthly:
		for m := time.January; m <= time.December; m++ {
			periods = append(periods, Period{Start: Date(year, m, 1), End: Date(year, m+1, 1).AddDate(0, 0, -1)})
		}
	default:
		return nil, NewValidationError("period_type", fmt.Sprintf("unknown period type %q", typ))
	}
	return periods, nil
}
