/*
handlers.go - HTTP API handlers for the time tracking and payroll engine

PURPOSE:
  Exposes the services via a JSON REST API. Handlers parse the request,
  delegate to exactly one service operation and serialize the result. No
  state transition happens in this package.

ENDPOINTS:
  Employees & schedules:
    GET    /api/employees                     List employees
    POST   /api/employees                     Create employee
    GET    /api/employees/{id}                Get employee
    PUT    /api/employees/{id}                Update employee
    GET    /api/employees/{id}/schedule       Seven-day schedule
    PUT    /api/employees/{id}/schedule       Replace schedule
    GET    /api/employees/{id}/balances       PTO / UTO balances (?as_of=)
    GET    /api/employees/{id}/time-entries   Entries (?from=&to=)
    GET    /api/employees/{id}/time-off       Time-off requests
    GET    /api/employees/{id}/corrections    Corrections

  Clock:
    POST   /api/clock/in                      Clock in (entry or pending attempt)
    POST   /api/clock/out                     Clock out
    GET    /api/clock/active/{userID}         Active entry
    GET    /api/early-attempts                Pending early attempts
    POST   /api/early-attempts/{id}/decision  Approve / deny
    POST   /api/time-entries                  Manual entry
    GET    /api/time-entries/{id}             Get entry

  Corrections & time off: see workflow.go
  Pay periods, holidays, payroll, export: see payroll.go

ERROR HANDLING:
  Errors are returned as ErrorResponse with a status derived from the error
  category:
  - 400: validation
  - 404: not found
  - 409: state conflict, pay period not ready
  - 422: insufficient balance, missing hourly rate
  - 503: storage failure after retry
  - 500: anything else

SECURITY NOTE:
  No authentication. Approver identity is taken from the request body.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/timeclock-engine/clock"
	"github.com/warp/timeclock-engine/correction"
	"github.com/warp/timeclock-engine/employee"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/payroll"
	"github.com/warp/timeclock-engine/schedule"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services are the operations the API exposes.
type Services struct {
	Store       workforce.Store
	Employees   *employee.Service
	Schedules   *schedule.Service
	Clock       *clock.Service
	Corrections *correction.Service
	TimeOff     *timeoff.Service
	Payroll     *payroll.Service
}

// NewServices builds every service over one store.
func NewServices(store workforce.Store, cfg ServiceConfig, now generic.Clock, logger *slog.Logger) Services {
	return Services{
		Store:       store,
		Employees:   employee.NewService(store, now, logger),
		Schedules:   schedule.NewService(store, logger),
		Clock:       clock.NewService(store, cfg.Clock, now, logger),
		Corrections: correction.NewService(store, cfg.Correction, now, logger),
		TimeOff:     timeoff.NewService(store, cfg.TimeOff, now, logger),
		Payroll:     payroll.NewService(store, cfg.Rates, nil, cfg.Payroll, now, logger),
	}
}

// ServiceConfig groups the per-service settings.
type ServiceConfig struct {
	Clock      clock.Config
	Correction correction.Config
	TimeOff    timeoff.Config
	Payroll    payroll.Config
	Rates      payroll.RatePolicy
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services
	Jobs     *Jobs
	Location *time.Location
	Now      generic.Clock
	Logger   *slog.Logger
}

func NewHandler(svc Services, loc *time.Location, now generic.Clock, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Services: svc, Location: loc, Now: now, Logger: logging.Default(logger)}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Employees.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

// CreateEmployee creates an employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	h.saveEmployee(w, r, "", http.StatusCreated)
}

// UpdateEmployee replaces an employee record.
// PUT /api/employees/{id}
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Employees.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.saveEmployee(w, r, id, http.StatusOK)
}

func (h *Handler) saveEmployee(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req SaveEmployeeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if id == "" {
		id = req.ID
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Employees.Save(r.Context(), workforce.Employee{
		ID:         id,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Team:       req.Team,
		HourlyRate: req.HourlyRate,
		StartDate:  start,
		PTORuleID:  req.PTORuleID,
		UTORuleID:  req.UTORuleID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, toEmployeeDTO(e))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns all seven days, Sunday first.
// GET /api/employees/{id}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	week, err := h.Schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	days := make([]ShiftDayDTO, len(week))
	for i, d := range week {
		days[i] = toShiftDayDTO(d)
	}
	writeJSON(w, http.StatusOK, days)
}

// ReplaceSchedule swaps in a whole week.
// PUT /api/employees/{id}/schedule
func (h *Handler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	var req ReplaceScheduleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	days := make([]workforce.ShiftDay, len(req.Days))
	for i, d := range req.Days {
		days[i] = workforce.ShiftDay{
			EmployeeID:   id,
			DayOfWeek:    time.Weekday(d.DayOfWeek),
			IsWorkingDay: d.IsWorkingDay,
			Morning:      fromSubShiftDTO(d.Morning),
			Afternoon:    fromSubShiftDTO(d.Afternoon),
		}
	}
	if err := h.Schedules.Replace(r.Context(), id, days); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetSchedule(w, r)
}

// =============================================================================
// CLOCK HANDLERS
// =============================================================================

// ClockIn clocks a user in, or records an early attempt awaiting approval.
// POST /api/clock/in
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req ClockInRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := clock.ClockInRequest{UserID: req.UserID, Team: req.Team, ShiftType: req.ShiftType}
	if req.At != nil {
		in.At = *req.At
	}
	res, err := h.Clock.ClockIn(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Attempt != nil {
		a := toEarlyAttemptDTO(*res.Attempt)
		writeJSON(w, http.StatusAccepted, ClockInResponse{Outcome: "pending_approval", Attempt: &a})
		return
	}
	e := toTimeEntryDTO(*res.Entry)
	writeJSON(w, http.StatusCreated, ClockInResponse{Outcome: "clocked_in", Entry: &e})
}

// ClockOut closes the user's active entry.
// POST /api/clock/out
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req ClockOutRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	at := h.Now.Now()
	if req.At != nil {
		at = *req.At
	}
	e, err := h.Clock.ClockOut(r.Context(), req.UserID, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(e))
}

func (h *Handler) GetActiveEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Clock.Active(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(e))
}

// RecordManualEntry stores a closed entry entered by an administrator.
// POST /api/time-entries
func (h *Handler) RecordManualEntry(w http.ResponseWriter, r *http.Request) {
	var req ManualEntryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Clock.RecordManual(r.Context(), clock.ManualEntry{
		UserID:    req.UserID,
		Team:      req.Team,
		ShiftType: req.ShiftType,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeEntryDTO(e))
}

func (h *Handler) GetTimeEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Clock.Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(e))
}

// ListEmployeeEntries lists a user's entries, optionally bounded by date.
// GET /api/employees/{id}/time-entries?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListEmployeeEntries(w http.ResponseWriter, r *http.Request) {
	f := workforce.EntryFilter{UserID: chi.URLParam(r, "id")}
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := parseDate("from", v)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.StartFrom = generic.StartOfDayIn(d, h.Location)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := parseDate("to", v)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.StartTo = generic.StartOfDayIn(d.AddDate(0, 0, 1), h.Location)
	}
	entries, err := h.Clock.Entries(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]TimeEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTimeEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPendingAttempts returns early clock-in attempts awaiting a decision.
// GET /api/early-attempts
func (h *Handler) ListPendingAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.Clock.PendingAttempts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]EarlyAttemptDTO, len(attempts))
	for i, a := range attempts {
		dtos[i] = toEarlyAttemptDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideAttempt approves or denies an early clock-in attempt.
// POST /api/early-attempts/{id}/decision
func (h *Handler) DecideAttempt(w http.ResponseWriter, r *http.Request) {
	req, decision, err := decodeDecision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Clock.DecideAttempt(r.Context(), clock.AttemptDecision{
		AttemptID:     chi.URLParam(r, "id"),
		Decision:      decision,
		ApproverID:    req.ApproverID,
		ActualClockIn: req.ClockInAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEarlyAttemptDTO(a))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrInsufficientBalance), errors.Is(err, generic.ErrMissingRate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generic.ErrStateConflict), errors.Is(err, generic.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, generic.ErrInfrastructure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Kind: generic.ErrorKind(err)}
	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.FieldErrors
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method, "path", r.URL.Path,
			"error_kind", resp.Kind, "error", err)
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return generic.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func decodeDecision(r *http.Request) (DecisionRequest, generic.Decision, error) {
	var req DecisionRequest
	if err := decode(r, &req); err != nil {
		return req, "", err
	}
	d, err := generic.ParseDecision(req.Decision)
	return req, d, err
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return time.Time{}, generic.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return d, nil
}
