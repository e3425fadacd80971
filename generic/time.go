package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// Now calls c, falling back to the wall clock for a nil Clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// =============================================================================
// CLOCK TIME - Time of day without a date ("09:30")
// =============================================================================

// ClockTime is a time of day in minutes since midnight.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime { return ClockTime(hour*60 + minute) }

// ParseClockTime parses "HH:MM" or "HH:MM:SS" (seconds are ignored).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return NewClockTime(h, m), nil
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// On returns the instant at this time of day in loc, on the calendar day
// date carries in its own location. Convert instants with In(loc) first.
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// =============================================================================
// DATE UTILITIES
// =============================================================================
// Calendar dates are carried as time.Time at 00:00 UTC.

const DateLayout = "2006-01-02"

// Date returns the calendar date at 00:00 UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns t's calendar day as observed in loc, as a UTC date.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return Date(l.Year(), l.Month(), l.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// StartOfDayIn returns local midnight of date's calendar day in loc.
func StartOfDayIn(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from a to b (b exclusive).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b, time.UTC).Sub(DateOf(a, time.UTC)).Hours() / 24)
}

// ISOWeekStart returns the Monday starting the ISO week that contains date.
func ISOWeekStart(date time.Time) time.Time {
	wd := int(date.Weekday())
	if wd == 0 {
		wd = 7
	}
	return Date(date.Year(), date.Month(), date.Day()).AddDate(0, 0, -(wd - 1))
}

// ISOWeekLabel returns a label like "2025-W09".
func ISOWeekLabel(date time.Time) string {
	year, week := date.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// YearsBetween returns whole years elapsed from a to b.
func YearsBetween(a, b time.Time) int {
	years := b.Year() - a.Year()
	if b.Month() < a.Month() || (b.Month() == a.Month() && b.Day() < a.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
