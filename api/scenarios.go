/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Populates the store with realistic data through the regular service
	operations. Every load adds a fresh employee, so scenarios can be
	loaded repeatedly without clashing.

AVAILABLE SCENARIOS:

	standard-week:     Employee with a Mon-Fri split shift and default rules
	overtime-week:     45 worked hours in a closed weekly period, payroll computed
	pending-approvals: An early clock-in, a correction and a PTO request
	                   waiting for a manager

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overtime-week"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: Handler
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/clock"
	"github.com/warp/timeclock-engine/correction"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse names what was created.
type LoadScenarioResponse struct {
	ScenarioID  string `json:"scenario_id"`
	EmployeeID  string `json:"employee_id"`
	PayPeriodID string `json:"pay_period_id,omitempty"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-week",
		Name:        "Standard Week",
		Description: "Hourly employee on a Mon-Fri 09:00-13:00 / 14:00-18:00 schedule",
	},
	{
		ID:          "overtime-week",
		Name:        "Overtime Week",
		Description: "45 hours worked last week; closed weekly period with payroll computed",
	},
	{
		ID:          "pending-approvals",
		Name:        "Pending Approvals",
		Description: "Early clock-in attempt, time correction and PTO request awaiting decisions",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds one scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var (
		resp LoadScenarioResponse
		err  error
	)
	switch req.ScenarioID {
	case "standard-week":
		resp, err = h.loadStandardWeekScenario(ctx)
	case "overtime-week":
		resp, err = h.loadOvertimeWeekScenario(ctx)
	case "pending-approvals":
		resp, err = h.loadPendingApprovalsScenario(ctx)
	default:
		err = generic.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", req.ScenarioID))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp.ScenarioID = req.ScenarioID
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// LOADERS
// =============================================================================

func splitShiftWeek() []workforce.ShiftDay {
	days := make([]workforce.ShiftDay, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		day := workforce.ShiftDay{DayOfWeek: d}
		if d != time.Saturday && d != time.Sunday {
			day.IsWorkingDay = true
			day.Morning = &workforce.SubShift{Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(13, 0)}
			day.Afternoon = &workforce.SubShift{Start: generic.NewClockTime(14, 0), End: generic.NewClockTime(18, 0)}
		}
		days = append(days, day)
	}
	return days
}

func (h *Handler) loadStandardWeekScenario(ctx context.Context) (LoadScenarioResponse, error) {
	if err := h.TimeOff.EnsureDefaultRules(ctx); err != nil {
		return LoadScenarioResponse{}, err
	}
	rate := decimal.NewFromInt(20)
	today := generic.DateOf(h.Now.Now(), h.Location)
	emp, err := h.Employees.Save(ctx, workforce.Employee{
		FirstName:  "Alex",
		LastName:   "Demo",
		Email:      "alex.demo@example.com",
		Team:       "operations",
		HourlyRate: &rate,
		StartDate:  today.AddDate(-2, 0, 0),
		PTORuleID:  timeoff.DefaultPTORuleID,
		UTORuleID:  timeoff.DefaultUTORuleID,
	})
	if err != nil {
		return LoadScenarioResponse{}, err
	}
	if err := h.Schedules.Replace(ctx, emp.ID, splitShiftWeek()); err != nil {
		return LoadScenarioResponse{}, err
	}
	return LoadScenarioResponse{EmployeeID: emp.ID}, nil
}

// loadOvertimeWeekScenario records Monday to Friday of last week at nine
// hours a day.
func (h *Handler) loadOvertimeWeekScenario(ctx context.Context) (LoadScenarioResponse, error) {
	resp, err := h.loadStandardWeekScenario(ctx)
	if err != nil {
		return resp, err
	}
	monday := generic.ISOWeekStart(generic.DateOf(h.Now.Now(), h.Location)).AddDate(0, 0, -7)
	for i := 0; i < 5; i++ {
		day := monday.AddDate(0, 0, i)
		_, err := h.Clock.RecordManual(ctx, clock.ManualEntry{
			UserID: resp.EmployeeID,
			Start:  generic.NewClockTime(8, 30).On(day, h.Location),
			End:    generic.NewClockTime(17, 30).On(day, h.Location),
		})
		if err != nil {
			return resp, err
		}
	}

	if _, err := h.Payroll.GeneratePeriods(ctx, monday.Year(), generic.PeriodWeekly, time.Time{}); err != nil {
		return resp, err
	}
	periods, err := h.Payroll.Periods(ctx)
	if err != nil {
		return resp, err
	}
	for _, p := range periods {
		if !p.Range().Contains(monday) || p.PeriodType != generic.PeriodWeekly {
			continue
		}
		if p.Status != workforce.PeriodClosed {
			if _, err := h.Payroll.ClosePeriod(ctx, p.ID); err != nil {
				return resp, err
			}
		}
		if _, err := h.Payroll.Compute(ctx, p.ID, resp.EmployeeID); err != nil {
			return resp, err
		}
		resp.PayPeriodID = p.ID
		break
	}
	return resp, nil
}

func (h *Handler) loadPendingApprovalsScenario(ctx context.Context) (LoadScenarioResponse, error) {
	resp, err := h.loadStandardWeekScenario(ctx)
	if err != nil {
		return resp, err
	}
	today := generic.DateOf(h.Now.Now(), h.Location)
	next := generic.ISOWeekStart(today).AddDate(0, 0, 7)

	// Early by fifteen minutes for next Monday's morning shift.
	if _, err := h.Clock.ClockIn(ctx, clock.ClockInRequest{
		UserID: resp.EmployeeID,
		At:     generic.NewClockTime(8, 45).On(next, h.Location),
	}); err != nil {
		return resp, err
	}

	lastMonday := generic.ISOWeekStart(today).AddDate(0, 0, -7)
	entry, err := h.Clock.RecordManual(ctx, clock.ManualEntry{
		UserID: resp.EmployeeID,
		Start:  generic.NewClockTime(9, 20).On(lastMonday, h.Location),
		End:    generic.NewClockTime(13, 0).On(lastMonday, h.Location),
	})
	if err != nil {
		return resp, err
	}
	start := generic.NewClockTime(9, 0).On(lastMonday, h.Location)
	if _, err := h.Corrections.Propose(ctx, correction.Proposal{
		UserID:         resp.EmployeeID,
		TimeEntryID:    entry.ID,
		RequestedStart: &start,
		Reason:         "Badge reader was down",
	}); err != nil {
		return resp, err
	}

	if _, err := h.TimeOff.Submit(ctx, timeoff.Submission{
		UserID:        resp.EmployeeID,
		Type:          workforce.TimeOffPTO,
		StartDate:     next.AddDate(0, 0, 7),
		EndDate:       next.AddDate(0, 0, 8),
		DaysRequested: decimal.NewFromInt(2),
		Reason:        "Family visit",
	}); err != nil {
		return resp, err
	}
	return resp, nil
}
