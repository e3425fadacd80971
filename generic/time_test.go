package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/generic"
)

// =============================================================================
// CLOCK TIME TESTS
// =============================================================================

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    generic.ClockTime
		wantErr bool
	}{
		{in: "09:00", want: generic.NewClockTime(9, 0)},
		{in: "17:30:59", want: generic.NewClockTime(17, 30)},
		{in: " 00:05 ", want: generic.NewClockTime(0, 5)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseClockTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTime_OnUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	date := generic.Date(2025, time.March, 3)

	at := generic.NewClockTime(9, 0).On(date, loc)

	assert.Equal(t, time.Date(2025, time.March, 3, 14, 0, 0, 0, time.UTC), at.UTC())
}

func TestClockTime_JSON(t *testing.T) {
	var v struct {
		Start generic.ClockTime `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"08:45"}`), &v))
	assert.Equal(t, generic.NewClockTime(8, 45), v.Start)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"08:45"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"start":"8h45"}`), &v))
}

// =============================================================================
// DATE TESTS
// =============================================================================

func TestDateOf_LocalCalendarDay(t *testing.T) {
	// 23:30 at UTC-5 on March 3 is already March 4 in UTC.
	loc := time.FixedZone("EST", -5*3600)
	instant := time.Date(2025, time.March, 4, 4, 30, 0, 0, time.UTC)

	assert.Equal(t, generic.Date(2025, time.March, 3), generic.DateOf(instant, loc))
	assert.Equal(t, generic.Date(2025, time.March, 4), generic.DateOf(instant, time.UTC))
}

func TestISOWeek(t *testing.T) {
	sunday := generic.Date(2025, time.March, 9)

	assert.Equal(t, generic.Date(2025, time.March, 3), generic.ISOWeekStart(sunday))
	assert.Equal(t, generic.Date(2024, time.December, 30), generic.ISOWeekStart(generic.Date(2025, time.January, 1)))
	assert.Equal(t, "2025-W10", generic.ISOWeekLabel(sunday))
	assert.Equal(t, "2025-W01", generic.ISOWeekLabel(generic.Date(2024, time.December, 30)))
}

func TestYearsBetween(t *testing.T) {
	hired := generic.Date(2024, time.January, 8)

	assert.Equal(t, 0, generic.YearsBetween(hired, generic.Date(2025, time.January, 7)))
	assert.Equal(t, 1, generic.YearsBetween(hired, generic.Date(2025, time.January, 8)))
	assert.Equal(t, 3, generic.YearsBetween(hired, generic.Date(2027, time.June, 1)))
	assert.Equal(t, 0, generic.YearsBetween(hired, generic.Date(2023, time.June, 1)))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 4, generic.DaysBetween(generic.Date(2025, time.March, 3), generic.Date(2025, time.March, 7)))
	assert.Equal(t, 0, generic.DaysBetween(generic.Date(2025, time.March, 3), generic.Date(2025, time.March, 3)))
}

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestPeriod(t *testing.T) {
	p, err := generic.NewPeriod(generic.Date(2025, time.March, 3), generic.Date(2025, time.March, 9))
	require.NoError(t, err)

	assert.Equal(t, 7, p.Len())
	assert.Len(t, p.Days(), 7)
	assert.True(t, p.Contains(generic.Date(2025, time.March, 9)))
	assert.False(t, p.Contains(generic.Date(2025, time.March, 10)))
	assert.Equal(t, "[2025-03-03, 2025-03-09]", p.String())

	other := generic.Period{Start: generic.Date(2025, time.March, 8), End: generic.Date(2025, time.March, 20)}
	overlap, ok := p.Intersect(other)
	require.True(t, ok)
	assert.Equal(t, 2, overlap.Len())

	_, ok = p.Intersect(generic.Period{Start: generic.Date(2025, time.April, 1), End: generic.Date(2025, time.April, 2)})
	assert.False(t, ok)

	from, to := p.Bounds(time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), to)

	_, err = generic.NewPeriod(generic.Date(2025, time.March, 9), generic.Date(2025, time.March, 3))
	assert.ErrorIs(t, err, generic.ErrInvalidInterval)
}

func TestWindowContaining(t *testing.T) {
	anchor := generic.Date(2025, time.January, 1)

	w := generic.WindowContaining(anchor, 3, generic.UnitMonth, generic.Date(2025, time.May, 10))
	assert.Equal(t, generic.Date(2025, time.April, 1), w.Start)
	assert.Equal(t, generic.Date(2025, time.June, 30), w.End)

	// Dates before the anchor step backwards.
	w = generic.WindowContaining(anchor, 3, generic.UnitMonth, generic.Date(2024, time.November, 15))
	assert.Equal(t, generic.Date(2024, time.October, 1), w.Start)
	assert.Equal(t, generic.Date(2024, time.December, 31), w.End)
}

func TestGeneratePeriods(t *testing.T) {
	t.Run("monthly", func(t *testing.T) {
		periods, err := generic.GeneratePeriods(2025, generic.PeriodMonthly, time.Time{})
		require.NoError(t, err)
		require.Len(t, periods, 12)
		assert.Equal(t, generic.Date(2025, time.February, 28), periods[1].End)
	})

	t.Run("semimonthly", func(t *testing.T) {
		periods, err := generic.GeneratePeriods(2024, generic.PeriodSemimonthly, time.Time{})
		require.NoError(t, err)
		require.Len(t, periods, 24)
		assert.Equal(t, generic.Date(2024, time.February, 15), periods[2].End)
		assert.Equal(t, generic.Date(2024, time.February, 16), periods[3].Start)
		assert.Equal(t, generic.Date(2024, time.February, 29), periods[3].End)
	})

	t.Run("weekly starts on the first Monday of the year", func(t *testing.T) {
		periods, err := generic.GeneratePeriods(2025, generic.PeriodWeekly, time.Time{})
		require.NoError(t, err)
		require.Len(t, periods, 52)
		assert.Equal(t, generic.Date(2025, time.January, 6), periods[0].Start)
		assert.Equal(t, generic.Date(2025, time.January, 12), periods[0].End)
		assert.Equal(t, generic.Date(2025, time.December, 29), periods[51].Start)
	})

	t.Run("biweekly follows the anchor", func(t *testing.T) {
		periods, err := generic.GeneratePeriods(2025, generic.PeriodBiweekly, generic.Date(2025, time.January, 1))
		require.NoError(t, err)
		require.Len(t, periods, 27)
		assert.Equal(t, generic.Date(2025, time.January, 14), periods[0].End)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := generic.GeneratePeriods(2025, generic.PeriodType("daily"), time.Time{})
		assert.ErrorIs(t, err, generic.ErrValidation)
	})
}

// =============================================================================
// ROUNDING TESTS
// =============================================================================

func TestHoursAndPay(t *testing.T) {
	// GIVEN: A shift from 09:05 to 17:30 at 20/h
	// WHEN: Hours and pay are computed
	// THEN: 8h25m rounds to 8.42 and pays 168.40

	day := generic.Date(2025, time.March, 3)
	start := generic.NewClockTime(9, 5).On(day, time.UTC)
	end := generic.NewClockTime(17, 30).On(day, time.UTC)

	hours := generic.HoursBetween(start, end)
	assert.Equal(t, "8.42", hours.StringFixed(2))

	pay := generic.Pay(hours, decimal.NewFromInt(20))
	assert.Equal(t, "168.40", pay.StringFixed(2))

	ot := generic.Pay(decimal.NewFromInt(5), decimal.NewFromInt(20), decimal.RequireFromString("1.5"))
	assert.Equal(t, "150.00", ot.StringFixed(2))
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", generic.Round2(decimal.RequireFromString("0.125")).StringFixed(2))
	assert.Equal(t, "-0.13", generic.Round2(decimal.RequireFromString("-0.125")).StringFixed(2))
}
