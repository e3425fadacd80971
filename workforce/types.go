/*
Package workforce defines the entities of the time tracking engine and the
persistence contract every store implements.

PURPOSE:
  Schedules, clock events, corrections, time-off and payroll rows are shared
  by several services. Keeping them in one package lets a single store
  transaction touch all of them (approving a correction updates both the
  correction and its time entry atomically).

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:           who works, their team, rate and hire date
  - ShiftDay:           one weekday of an employee's schedule (two sub-shifts)
  - EarlyClockAttempt:  a clock-in too early for its window, awaiting approval
  - TimeEntry:          one span of worked time
  - TimeCorrection:     a requested change to a TimeEntry's bounds
  - TimeOffRequest:     PTO or UTO for a range of dates
  - PayPeriod / PayrollCalculation: the payroll side

QUANTITIES:
  Hours, days and money are decimal.Decimal, rounded to two places.
  Calendar dates are time.Time at 00:00 UTC (generic.Date).

SEE ALSO:
  - store.go: Store and Tx interfaces
  - generic/approval.go: lifecycle shared by the three request types
*/
package workforce

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
)

// NewID returns a random UUIDv4 string.
func NewID() string { return uuid.NewString() }

// SystemUser decides requests on behalf of background jobs.
const SystemUser = "system"

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Team       string
	HourlyRate *decimal.Decimal // nil means no rate configured
	StartDate  time.Time        // hire date
	PTORuleID  string
	UTORuleID  string
	CreatedAt  time.Time
}

func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// RuleID returns the time-off rule assigned for the given type.
func (e Employee) RuleID(t TimeOffType) string {
	if t == TimeOffUTO {
		return e.UTORuleID
	}
	return e.PTORuleID
}

// =============================================================================
// SHIFT SCHEDULE
// =============================================================================

// SubShift is the half-open window [Start, End) within a day.
type SubShift struct {
	Start generic.ClockTime
	End   generic.ClockTime
}

func (s SubShift) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Minute
}

// ShiftDay is one weekday of an employee's schedule. DayOfWeek follows
// time.Weekday (0 = Sunday).
type ShiftDay struct {
	EmployeeID   string
	DayOfWeek    time.Weekday
	Morning      *SubShift
	Afternoon    *SubShift
	IsWorkingDay bool
}

// =============================================================================
// CLOCK EVENTS
// =============================================================================

type EntryStatus string

const (
	EntryActive    EntryStatus = "active"
	EntryClosed    EntryStatus = "closed"
	EntryAutoEnded EntryStatus = "auto_ended"
)

// IsClosed is true for both closed and auto_ended entries.
func (s EntryStatus) IsClosed() bool { return s == EntryClosed || s == EntryAutoEnded }

type EntrySource string

const (
	SourceClock        EntrySource = "clock"
	SourceEarlyAttempt EntrySource = "early_attempt"
	SourceManual       EntrySource = "manual"
)

type TimeEntry struct {
	ID         string
	UserID     string
	Team       string
	ShiftType  string
	StartTime  time.Time
	EndTime    *time.Time
	TotalHours *decimal.Decimal
	Status     EntryStatus
	Source     EntrySource
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Close sets the end bound, recomputes total hours and moves the entry to status.
func (e *TimeEntry) Close(end time.Time, status EntryStatus) {
	total := generic.HoursBetween(e.StartTime, end)
	e.EndTime = &end
	e.TotalHours = &total
	e.Status = status
}

// Overlaps reports whether the entry's span intersects [start, end).
// An active entry extends indefinitely.
func (e TimeEntry) Overlaps(start, end time.Time) bool {
	if !e.StartTime.Before(end) {
		return false
	}
	return e.EndTime == nil || e.EndTime.After(start)
}

type EarlyClockAttempt struct {
	ID             string
	UserID         string
	Team           string
	ShiftType      string
	ScheduledStart time.Time
	AttemptedTime  time.Time
	ActualClockIn  *time.Time
	Status         generic.Status
	DecidedBy      string
	DecidedAt      *time.Time
	TimeEntryID    string
	CreatedAt      time.Time
}

func (a *EarlyClockAttempt) ApprovalKind() string               { return "early_clock_attempt" }
func (a *EarlyClockAttempt) ApprovalID() string                 { return a.ID }
func (a *EarlyClockAttempt) ApprovalStatus() generic.Status     { return a.Status }
func (a *EarlyClockAttempt) SetApprovalStatus(s generic.Status) { a.Status = s }

// =============================================================================
// CORRECTIONS
// =============================================================================

type TimeCorrection struct {
	ID                 string
	UserID             string
	TimeEntryID        string
	RequestedStartTime *time.Time
	RequestedEndTime   *time.Time
	OriginalStartTime  time.Time
	OriginalEndTime    *time.Time
	Reason             string
	Team               string
	ShiftType          string
	Status             generic.Status
	AutoApprovable     bool
	DecidedBy          string
	DecidedAt          *time.Time
	CreatedAt          time.Time
}

func (c *TimeCorrection) ApprovalKind() string               { return "time_correction" }
func (c *TimeCorrection) ApprovalID() string                 { return c.ID }
func (c *TimeCorrection) ApprovalStatus() generic.Status     { return c.Status }
func (c *TimeCorrection) SetApprovalStatus(s generic.Status) { c.Status = s }

// =============================================================================
// TIME OFF
// =============================================================================

type TimeOffType string

const (
	TimeOffPTO TimeOffType = "PTO"
	TimeOffUTO TimeOffType = "UTO"
)

func (t TimeOffType) Valid() bool { return t == TimeOffPTO || t == TimeOffUTO }

type TimeOffRequest struct {
	ID            string
	UserID        string
	Type          TimeOffType
	StartDate     time.Time
	EndDate       time.Time
	DaysRequested decimal.Decimal
	Reason        string
	Status        generic.Status
	ApprovedAt    *time.Time
	ApprovedBy    string
	DecidedBy     string
	DecidedAt     *time.Time
	ApprovalNotes string
	CreatedAt     time.Time
}

func (r *TimeOffRequest) ApprovalKind() string               { return "time_off_request" }
func (r *TimeOffRequest) ApprovalID() string                 { return r.ID }
func (r *TimeOffRequest) ApprovalStatus() generic.Status     { return r.Status }
func (r *TimeOffRequest) SetApprovalStatus(s generic.Status) { r.Status = s }

// Period returns the request's date range.
func (r TimeOffRequest) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

type RuleAnchor string

const (
	AnchorHireDate RuleAnchor = "hire_date"
	AnchorCalendar RuleAnchor = "calendar"
)

// Tier raises the allowance once an employee has completed AfterYears of service.
type Tier struct {
	AfterYears int             `json:"after_years"`
	Days       decimal.Decimal `json:"days"`
}

// TimeOffRule defines entitlement windows for one request type.
type TimeOffRule struct {
	ID            string
	Name          string
	Type          TimeOffType
	Days          decimal.Decimal // allowance per window before tiers
	ResetPeriod   int
	ResetUnit     generic.IntervalUnit
	Anchor        RuleAnchor
	NotBefore     int
	NotBeforeUnit generic.IntervalUnit
	Tiers         []Tier
}

// BalanceAdjustment is an append-only manual grant (positive) or deduction.
type BalanceAdjustment struct {
	ID             string
	UserID         string
	Type           TimeOffType
	EffectiveDate  time.Time
	DeltaDays      decimal.Decimal
	Reason         string
	CreatedBy      string
	IdempotencyKey string
	CreatedAt      time.Time
}

type Holiday struct {
	ID        string
	Date      time.Time
	Name      string
	CreatedAt time.Time
}

// =============================================================================
// PAYROLL
// =============================================================================

type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

type PayPeriod struct {
	ID         string
	StartDate  time.Time
	EndDate    time.Time
	PeriodType generic.PeriodType
	Status     PeriodStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p PayPeriod) Range() generic.Period {
	return generic.Period{Start: p.StartDate, End: p.EndDate}
}

type PayrollCalculation struct {
	ID            string
	PayPeriodID   string
	UserID        string
	RegularHours  decimal.Decimal
	RegularPay    decimal.Decimal
	OvertimeHours decimal.Decimal
	OvertimePay   decimal.Decimal
	HolidayHours  decimal.Decimal
	HolidayPay    decimal.Decimal
	PTOHours      decimal.Decimal
	PTOPay        decimal.Decimal
	UTOHours      decimal.Decimal
	TotalGrossPay decimal.Decimal
	HourlyRate    decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SameFigures reports whether every computed figure matches o.
func (c PayrollCalculation) SameFigures(o PayrollCalculation) bool {
	pairs := [][2]decimal.Decimal{
		{c.RegularHours, o.RegularHours}, {c.RegularPay, o.RegularPay},
		{c.OvertimeHours, o.OvertimeHours}, {c.OvertimePay, o.OvertimePay},
		{c.HolidayHours, o.HolidayHours}, {c.HolidayPay, o.HolidayPay},
		{c.PTOHours, o.PTOHours}, {c.PTOPay, o.PTOPay},
		{c.UTOHours, o.UTOHours}, {c.TotalGrossPay, o.TotalGrossPay},
		{c.HourlyRate, o.HourlyRate},
	}
	for _, p := range pairs {
		if !p[0].Equal(p[1]) {
			return false
		}
	}
	return true
}
