package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/timeclock-engine/export"
	"github.com/warp/timeclock-engine/generic"
)

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays in a year (default: current year).
// GET /api/holidays?year=2026
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Now.Now().In(h.Location).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, r, generic.NewValidationError("year", "must be a number"))
			return
		}
		year = y
	}
	holidays, err := h.Payroll.Holidays(r.Context(),
		generic.Date(year, time.January, 1), generic.Date(year, time.December, 31))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hol, err := h.Payroll.AddHoliday(r.Context(), date, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

// DeleteHoliday removes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Payroll.RemoveHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PAY PERIOD HANDLERS
// =============================================================================

func (h *Handler) ListPayPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Payroll.Periods(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]PayPeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPayPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GeneratePayPeriods creates a year's periods.
// POST /api/pay-periods/generate
func (h *Handler) GeneratePayPeriods(w http.ResponseWriter, r *http.Request) {
	var req GeneratePeriodsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	anchor, err := parseDate("anchor", req.Anchor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.Payroll.GeneratePeriods(r.Context(), req.Year, generic.PeriodType(req.PeriodType), anchor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]PayPeriodDTO, len(created))
	for i, p := range created {
		dtos[i] = toPayPeriodDTO(p)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// ClosePayPeriod closes a period so payroll can be computed.
// POST /api/pay-periods/{id}/close
func (h *Handler) ClosePayPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payroll.ClosePeriod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayPeriodDTO(p))
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// ComputePayroll computes every employee with a rate.
// POST /api/pay-periods/{id}/payroll
func (h *Handler) ComputePayroll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Payroll.ComputeAll(r.Context(), chi.URLParam(r, "id"))
	if err != nil && len(rows) == 0 {
		h.writeError(w, r, err)
		return
	}
	resp := ComputeAllResponse{Payroll: make([]PayrollDTO, len(rows))}
	for i, c := range rows {
		resp.Payroll[i] = toPayrollDTO(c)
	}
	if err != nil {
		resp.Errors = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ComputeEmployeePayroll computes one employee.
// POST /api/pay-periods/{id}/payroll/{userID}
func (h *Handler) ComputeEmployeePayroll(w http.ResponseWriter, r *http.Request) {
	c, err := h.Payroll.Compute(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(c))
}

func (h *Handler) ListPayroll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Payroll.Payroll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]PayrollDTO, len(rows))
	for i, c := range rows {
		dtos[i] = toPayrollDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportPayroll downloads a period's payroll as CSV or XLSX.
// GET /api/pay-periods/{id}/export?format=csv|xlsx
func (h *Handler) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	period, rows, err := export.Load(r.Context(), h.Store, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, period, rows); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(period, format)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
