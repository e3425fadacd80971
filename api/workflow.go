package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/timeclock-engine/correction"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// CORRECTION HANDLERS
// =============================================================================

// ProposeCorrection records a pending correction.
// POST /api/corrections
func (h *Handler) ProposeCorrection(w http.ResponseWriter, r *http.Request) {
	var req ProposeCorrectionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Corrections.Propose(r.Context(), correction.Proposal{
		UserID:         req.UserID,
		TimeEntryID:    req.TimeEntryID,
		RequestedStart: req.RequestedStart,
		RequestedEnd:   req.RequestedEnd,
		Reason:         req.Reason,
		Team:           req.Team,
		ShiftType:      req.ShiftType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCorrectionDTO(c))
}

func (h *Handler) GetCorrection(w http.ResponseWriter, r *http.Request) {
	c, err := h.Corrections.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCorrectionDTO(c))
}

// ListPendingCorrections returns corrections awaiting a decision.
// GET /api/corrections/pending
func (h *Handler) ListPendingCorrections(w http.ResponseWriter, r *http.Request) {
	list, err := h.Corrections.Pending(r.Context())
	h.writeCorrections(w, r, list, err)
}

func (h *Handler) ListEmployeeCorrections(w http.ResponseWriter, r *http.Request) {
	list, err := h.Corrections.ForUser(r.Context(), chi.URLParam(r, "id"))
	h.writeCorrections(w, r, list, err)
}

func (h *Handler) writeCorrections(w http.ResponseWriter, r *http.Request, list []workforce.TimeCorrection, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]CorrectionDTO, len(list))
	for i, c := range list {
		dtos[i] = toCorrectionDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideCorrection approves or denies a correction.
// POST /api/corrections/{id}/decision
func (h *Handler) DecideCorrection(w http.ResponseWriter, r *http.Request) {
	req, decision, err := decodeDecision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Corrections.Decide(r.Context(), correction.Decision{
		CorrectionID: chi.URLParam(r, "id"),
		Decision:     decision,
		ApproverID:   req.ApproverID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCorrectionDTO(c))
}

// =============================================================================
// TIME-OFF HANDLERS
// =============================================================================

// SubmitTimeOff records a pending PTO / UTO request.
// POST /api/time-off
func (h *Handler) SubmitTimeOff(w http.ResponseWriter, r *http.Request) {
	var req SubmitTimeOffRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tr, err := h.TimeOff.Submit(r.Context(), timeoff.Submission{
		UserID:        req.UserID,
		Type:          workforce.TimeOffType(req.Type),
		StartDate:     start,
		EndDate:       end,
		DaysRequested: req.DaysRequested,
		Reason:        req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeOffRequestDTO(tr))
}

func (h *Handler) GetTimeOff(w http.ResponseWriter, r *http.Request) {
	tr, err := h.TimeOff.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeOffRequestDTO(tr))
}

// ListPendingTimeOff returns requests awaiting a decision.
// GET /api/time-off/pending
func (h *Handler) ListPendingTimeOff(w http.ResponseWriter, r *http.Request) {
	list, err := h.TimeOff.Pending(r.Context())
	h.writeTimeOff(w, r, list, err)
}

func (h *Handler) ListEmployeeTimeOff(w http.ResponseWriter, r *http.Request) {
	list, err := h.TimeOff.ForUser(r.Context(), chi.URLParam(r, "id"))
	h.writeTimeOff(w, r, list, err)
}

func (h *Handler) writeTimeOff(w http.ResponseWriter, r *http.Request, list []workforce.TimeOffRequest, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]TimeOffRequestDTO, len(list))
	for i, tr := range list {
		dtos[i] = toTimeOffRequestDTO(tr)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideTimeOff approves or denies a request. Approval re-checks the balance
// unless override is set.
// POST /api/time-off/{id}/decision
func (h *Handler) DecideTimeOff(w http.ResponseWriter, r *http.Request) {
	req, decision, err := decodeDecision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tr, err := h.TimeOff.Decide(r.Context(), timeoff.Decision{
		RequestID:  chi.URLParam(r, "id"),
		Decision:   decision,
		ApproverID: req.ApproverID,
		Notes:      req.Notes,
		Override:   req.Override,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeOffRequestDTO(tr))
}

// GetBalances returns the PTO and UTO balances.
// GET /api/employees/{id}/balances?as_of=YYYY-MM-DD
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	asOf := generic.DateOf(h.Now.Now(), h.Location)
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := parseDate("as_of", v)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		asOf = d
	}
	balances, err := h.TimeOff.Balances(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment records a manual balance change. Replaying an
// idempotency key returns the original adjustment.
// POST /api/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	effective, err := parseDate("effective_date", req.EffectiveDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	adj, err := h.TimeOff.Adjust(r.Context(), workforce.BalanceAdjustment{
		UserID:         req.UserID,
		Type:           workforce.TimeOffType(req.Type),
		EffectiveDate:  effective,
		DeltaDays:      req.DeltaDays,
		Reason:         req.Reason,
		CreatedBy:      req.CreatedBy,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.TimeOff.Rules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveRule creates or replaces a time-off rule.
// POST /api/time-off-rules
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var req RuleDTO
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rule := req.toRule()
	if err := h.TimeOff.SaveRule(r.Context(), rule); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}
