/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in package workforce from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  - Instants: RFC 3339
  - Dates:    YYYY-MM-DD
  - Clock times of day: HH:MM
  - Hours, days and money: decimal strings ("8.42")

VALIDATION:
  Decoding errors are reported as validation errors by the handlers. Field
  rules live in the services.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// EMPLOYEES & SCHEDULES
// =============================================================================

type EmployeeDTO struct {
	ID         string           `json:"id"`
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name,omitempty"`
	Email      string           `json:"email,omitempty"`
	Team       string           `json:"team,omitempty"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	StartDate  string           `json:"start_date"`
	PTORuleID  string           `json:"pto_rule_id,omitempty"`
	UTORuleID  string           `json:"uto_rule_id,omitempty"`
	CreatedAt  string           `json:"created_at,omitempty"`
}

type SaveEmployeeRequest struct {
	ID         string           `json:"id"`
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name"`
	Email      string           `json:"email"`
	Team       string           `json:"team"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	StartDate  string           `json:"start_date"`
	PTORuleID  string           `json:"pto_rule_id"`
	UTORuleID  string           `json:"uto_rule_id"`
}

type SubShiftDTO struct {
	Start generic.ClockTime `json:"start"`
	End   generic.ClockTime `json:"end"`
}

type ShiftDayDTO struct {
	DayOfWeek    int          `json:"day_of_week"` // 0 = Sunday
	IsWorkingDay bool         `json:"is_working_day"`
	Morning      *SubShiftDTO `json:"morning,omitempty"`
	Afternoon    *SubShiftDTO `json:"afternoon,omitempty"`
}

type ReplaceScheduleRequest struct {
	Days []ShiftDayDTO `json:"days"`
}

// =============================================================================
// CLOCK
// =============================================================================

type ClockInRequest struct {
	UserID    string     `json:"user_id"`
	Team      string     `json:"team"`
	ShiftType string     `json:"shift_type"`
	At        *time.Time `json:"at"`
}

type ClockOutRequest struct {
	UserID string     `json:"user_id"`
	At     *time.Time `json:"at"`
}

// ClockInResponse carries the entry or, for an early clock-in, the pending
// attempt.
type ClockInResponse struct {
	Outcome string           `json:"outcome"` // "clocked_in" | "pending_approval"
	Entry   *TimeEntryDTO    `json:"time_entry,omitempty"`
	Attempt *EarlyAttemptDTO `json:"early_attempt,omitempty"`
}

type ManualEntryRequest struct {
	UserID    string    `json:"user_id"`
	Team      string    `json:"team"`
	ShiftType string    `json:"shift_type"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
}

type TimeEntryDTO struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Team       string           `json:"team,omitempty"`
	ShiftType  string           `json:"shift_type,omitempty"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    *time.Time       `json:"end_time"`
	TotalHours *decimal.Decimal `json:"total_hours"`
	Status     string           `json:"status"`
	Source     string           `json:"source"`
}

type EarlyAttemptDTO struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Team           string     `json:"team,omitempty"`
	ShiftType      string     `json:"shift_type,omitempty"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	AttemptedTime  time.Time  `json:"attempted_time"`
	ActualClockIn  *time.Time `json:"actual_clock_in"`
	Status         string     `json:"status"`
	DecidedBy      string     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	TimeEntryID    string     `json:"time_entry_id,omitempty"`
}

// DecisionRequest is shared by every approval endpoint.
type DecisionRequest struct {
	Decision   string     `json:"decision"` // approve | deny
	ApproverID string     `json:"approver_id"`
	Notes      string     `json:"notes"`
	Override   bool       `json:"override"`        // time-off only
	ClockInAt  *time.Time `json:"actual_clock_in"` // early attempts only
}

// =============================================================================
// CORRECTIONS
// =============================================================================

type ProposeCorrectionRequest struct {
	UserID         string     `json:"user_id"`
	TimeEntryID    string     `json:"time_entry_id"`
	RequestedStart *time.Time `json:"requested_start_time"`
	RequestedEnd   *time.Time `json:"requested_end_time"`
	Reason         string     `json:"reason"`
	Team           string     `json:"team"`
	ShiftType      string     `json:"shift_type"`
}

type CorrectionDTO struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	TimeEntryID    string     `json:"time_entry_id"`
	RequestedStart *time.Time `json:"requested_start_time"`
	RequestedEnd   *time.Time `json:"requested_end_time"`
	OriginalStart  time.Time  `json:"original_start_time"`
	OriginalEnd    *time.Time `json:"original_end_time"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	AutoApprovable bool       `json:"auto_approvable"`
	DecidedBy      string     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// =============================================================================
// TIME OFF
// =============================================================================

type SubmitTimeOffRequest struct {
	UserID        string          `json:"user_id"`
	Type          string          `json:"request_type"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	DaysRequested decimal.Decimal `json:"days_requested"`
	Reason        string          `json:"reason"`
}

type TimeOffRequestDTO struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Type          string          `json:"request_type"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	DaysRequested decimal.Decimal `json:"days_requested"`
	Reason        string          `json:"reason,omitempty"`
	Status        string          `json:"status"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy    string          `json:"approved_by,omitempty"`
	ApprovalNotes string          `json:"approval_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type BalanceDTO struct {
	Type        string          `json:"request_type"`
	RuleID      string          `json:"rule_id"`
	AsOf        string          `json:"as_of"`
	WindowStart string          `json:"window_start"`
	WindowEnd   string          `json:"window_end"`
	Entitlement decimal.Decimal `json:"entitlement"`
	Adjustments decimal.Decimal `json:"adjustments"`
	Used        decimal.Decimal `json:"used"`
	Pending     decimal.Decimal `json:"pending"`
	Available   decimal.Decimal `json:"available"`
}

type AdjustmentRequest struct {
	UserID         string          `json:"user_id"`
	Type           string          `json:"request_type"`
	EffectiveDate  string          `json:"effective_date"`
	DeltaDays      decimal.Decimal `json:"delta_days"`
	Reason         string          `json:"reason"`
	CreatedBy      string          `json:"created_by"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type AdjustmentDTO struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"request_type"`
	EffectiveDate  string          `json:"effective_date"`
	DeltaDays      decimal.Decimal `json:"delta_days"`
	Reason         string          `json:"reason"`
	CreatedBy      string          `json:"created_by"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// RuleDTO doubles as the request body for saving a rule.
type RuleDTO struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Type          string           `json:"request_type"`
	Days          decimal.Decimal  `json:"days"`
	ResetPeriod   int              `json:"reset_period"`
	ResetUnit     string           `json:"reset_unit"`
	Anchor        string           `json:"anchor"`
	NotBefore     int              `json:"not_before"`
	NotBeforeUnit string           `json:"not_before_unit"`
	Tiers         []workforce.Tier `json:"tiers,omitempty"`
}

// =============================================================================
// HOLIDAYS & PAYROLL
// =============================================================================

type HolidayDTO struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

type GeneratePeriodsRequest struct {
	Year       int    `json:"year"`
	PeriodType string `json:"period_type"`
	Anchor     string `json:"anchor"` // first period start, biweekly only
}

type PayPeriodDTO struct {
	ID         string `json:"id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	PeriodType string `json:"period_type"`
	Status     string `json:"status"`
}

type PayrollDTO struct {
	PayPeriodID   string          `json:"pay_period_id"`
	UserID        string          `json:"user_id"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	RegularHours  decimal.Decimal `json:"regular_hours"`
	RegularPay    decimal.Decimal `json:"regular_pay"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	OvertimePay   decimal.Decimal `json:"overtime_pay"`
	HolidayHours  decimal.Decimal `json:"holiday_hours"`
	HolidayPay    decimal.Decimal `json:"holiday_pay"`
	PTOHours      decimal.Decimal `json:"pto_hours"`
	PTOPay        decimal.Decimal `json:"pto_pay"`
	UTOHours      decimal.Decimal `json:"uto_hours"`
	TotalGrossPay decimal.Decimal `json:"total_gross_pay"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ComputeAllResponse lists the rows computed and the failures, if any.
type ComputeAllResponse struct {
	Payroll []PayrollDTO `json:"payroll"`
	Errors  []string     `json:"errors,omitempty"`
}

// JobRunDTO reports one background job pass.
type JobRunDTO struct {
	Job   string `json:"job"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(generic.DateLayout)
}

func toEmployeeDTO(e workforce.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         e.ID,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Email:      e.Email,
		Team:       e.Team,
		HourlyRate: e.HourlyRate,
		StartDate:  formatDate(e.StartDate),
		PTORuleID:  e.PTORuleID,
		UTORuleID:  e.UTORuleID,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func toSubShiftDTO(s *workforce.SubShift) *SubShiftDTO {
	if s == nil {
		return nil
	}
	return &SubShiftDTO{Start: s.Start, End: s.End}
}

func fromSubShiftDTO(s *SubShiftDTO) *workforce.SubShift {
	if s == nil {
		return nil
	}
	return &workforce.SubShift{Start: s.Start, End: s.End}
}

func toShiftDayDTO(d workforce.ShiftDay) ShiftDayDTO {
	return ShiftDayDTO{
		DayOfWeek:    int(d.DayOfWeek),
		IsWorkingDay: d.IsWorkingDay,
		Morning:      toSubShiftDTO(d.Morning),
		Afternoon:    toSubShiftDTO(d.Afternoon),
	}
}

func toTimeEntryDTO(e workforce.TimeEntry) TimeEntryDTO {
	return TimeEntryDTO{
		ID:         e.ID,
		UserID:     e.UserID,
		Team:       e.Team,
		ShiftType:  e.ShiftType,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		TotalHours: e.TotalHours,
		Status:     string(e.Status),
		Source:     string(e.Source),
	}
}

func toEarlyAttemptDTO(a workforce.EarlyClockAttempt) EarlyAttemptDTO {
	return EarlyAttemptDTO{
		ID:             a.ID,
		UserID:         a.UserID,
		Team:           a.Team,
		ShiftType:      a.ShiftType,
		ScheduledStart: a.ScheduledStart,
		AttemptedTime:  a.AttemptedTime,
		ActualClockIn:  a.ActualClockIn,
		Status:         string(a.Status),
		DecidedBy:      a.DecidedBy,
		DecidedAt:      a.DecidedAt,
		TimeEntryID:    a.TimeEntryID,
	}
}

func toCorrectionDTO(c workforce.TimeCorrection) CorrectionDTO {
	return CorrectionDTO{
		ID:             c.ID,
		UserID:         c.UserID,
		TimeEntryID:    c.TimeEntryID,
		RequestedStart: c.RequestedStartTime,
		RequestedEnd:   c.RequestedEndTime,
		OriginalStart:  c.OriginalStartTime,
		OriginalEnd:    c.OriginalEndTime,
		Reason:         c.Reason,
		Status:         string(c.Status),
		AutoApprovable: c.AutoApprovable,
		DecidedBy:      c.DecidedBy,
		DecidedAt:      c.DecidedAt,
		CreatedAt:      c.CreatedAt,
	}
}

func toTimeOffRequestDTO(r workforce.TimeOffRequest) TimeOffRequestDTO {
	return TimeOffRequestDTO{
		ID:            r.ID,
		UserID:        r.UserID,
		Type:          string(r.Type),
		StartDate:     formatDate(r.StartDate),
		EndDate:       formatDate(r.EndDate),
		DaysRequested: r.DaysRequested,
		Reason:        r.Reason,
		Status:        string(r.Status),
		ApprovedAt:    r.ApprovedAt,
		ApprovedBy:    r.ApprovedBy,
		ApprovalNotes: r.ApprovalNotes,
		CreatedAt:     r.CreatedAt,
	}
}

func toBalanceDTO(b timeoff.Balance) BalanceDTO {
	return BalanceDTO{
		Type:        string(b.Type),
		RuleID:      b.RuleID,
		AsOf:        formatDate(b.AsOf),
		WindowStart: formatDate(b.Window.Start),
		WindowEnd:   formatDate(b.Window.End),
		Entitlement: b.Entitlement,
		Adjustments: b.Adjustments,
		Used:        b.Used,
		Pending:     b.Pending,
		Available:   b.Available,
	}
}

func toAdjustmentDTO(a workforce.BalanceAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:             a.ID,
		UserID:         a.UserID,
		Type:           string(a.Type),
		EffectiveDate:  formatDate(a.EffectiveDate),
		DeltaDays:      a.DeltaDays,
		Reason:         a.Reason,
		CreatedBy:      a.CreatedBy,
		IdempotencyKey: a.IdempotencyKey,
	}
}

func toRuleDTO(r workforce.TimeOffRule) RuleDTO {
	return RuleDTO{
		ID:            r.ID,
		Name:          r.Name,
		Type:          string(r.Type),
		Days:          r.Days,
		ResetPeriod:   r.ResetPeriod,
		ResetUnit:     string(r.ResetUnit),
		Anchor:        string(r.Anchor),
		NotBefore:     r.NotBefore,
		NotBeforeUnit: string(r.NotBeforeUnit),
		Tiers:         r.Tiers,
	}
}

func (d RuleDTO) toRule() workforce.TimeOffRule {
	return workforce.TimeOffRule{
		ID:            d.ID,
		Name:          d.Name,
		Type:          workforce.TimeOffType(d.Type),
		Days:          d.Days,
		ResetPeriod:   d.ResetPeriod,
		ResetUnit:     generic.IntervalUnit(d.ResetUnit),
		Anchor:        workforce.RuleAnchor(d.Anchor),
		NotBefore:     d.NotBefore,
		NotBeforeUnit: generic.IntervalUnit(d.NotBeforeUnit),
		Tiers:         d.Tiers,
	}
}

func toHolidayDTO(h workforce.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: formatDate(h.Date), Name: h.Name}
}

func toPayPeriodDTO(p workforce.PayPeriod) PayPeriodDTO {
	return PayPeriodDTO{
		ID:         p.ID,
		StartDate:  formatDate(p.StartDate),
		EndDate:    formatDate(p.EndDate),
		PeriodType: string(p.PeriodType),
		Status:     string(p.Status),
	}
}

func toPayrollDTO(c workforce.PayrollCalculation) PayrollDTO {
	fixed := func(d decimal.Decimal) decimal.Decimal { return d.Round(generic.Places) }
	return PayrollDTO{
		PayPeriodID:   c.PayPeriodID,
		UserID:        c.UserID,
		HourlyRate:    fixed(c.HourlyRate),
		RegularHours:  fixed(c.RegularHours),
		RegularPay:    fixed(c.RegularPay),
		OvertimeHours: fixed(c.OvertimeHours),
		OvertimePay:   fixed(c.OvertimePay),
		HolidayHours:  fixed(c.HolidayHours),
		HolidayPay:    fixed(c.HolidayPay),
		PTOHours:      fixed(c.PTOHours),
		PTOPay:        fixed(c.PTOPay),
		UTOHours:      fixed(c.UTOHours),
		TotalGrossPay: fixed(c.TotalGrossPay),
		UpdatedAt:     c.UpdatedAt,
	}
}
