package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// TIME CORRECTIONS
// =============================================================================

const correctionColumns = `id, user_id, time_entry_id, requested_start_time, requested_end_time, original_start_time, original_end_time, reason, team, shift_type, status, auto_approvable, decided_by, decided_at, created_at`

func (c *conn) InsertCorrection(ctx context.Context, tc workforce.TimeCorrection) error {
	_, err := c.exec(ctx, `INSERT INTO time_corrections (`+correctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.ID, tc.UserID, tc.TimeEntryID, nullTS(tc.RequestedStartTime), nullTS(tc.RequestedEndTime),
		ts(tc.OriginalStartTime), nullTS(tc.OriginalEndTime), tc.Reason, tc.Team, tc.ShiftType,
		string(tc.Status), tc.AutoApprovable, tc.DecidedBy, nullTS(tc.DecidedAt), ts(tc.CreatedAt),
	)
	return mapUnique(err, generic.ErrPendingCorrectionExists, "insert time correction")
}

func (c *conn) UpdateCorrection(ctx context.Context, tc workforce.TimeCorrection) error {
	res, err := c.exec(ctx, `UPDATE time_corrections SET status = ?, decided_by = ?, decided_at = ? WHERE id = ?`,
		string(tc.Status), tc.DecidedBy, nullTS(tc.DecidedAt), tc.ID)
	if err != nil {
		return mapUnique(err, generic.ErrPendingCorrectionExists, "update time correction")
	}
	return requireRow(res, "time_correction", tc.ID)
}

func (c *conn) GetCorrection(ctx context.Context, id string) (workforce.TimeCorrection, error) {
	return queryOne(ctx, c, "time_correction", id, scanCorrection,
		`SELECT `+correctionColumns+` FROM time_corrections WHERE id = ?`, id)
}

func (c *conn) ListCorrections(ctx context.Context, f workforce.CorrectionFilter) ([]workforce.TimeCorrection, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where, args = append(where, "user_id = ?"), append(args, f.UserID)
	}
	if f.TimeEntryID != "" {
		where, args = append(where, "time_entry_id = ?"), append(args, f.TimeEntryID)
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, f.Status)
	}
	out, err := queryAll(ctx, c, scanCorrection,
		`SELECT `+correctionColumns+` FROM time_corrections`+whereClause(where)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time corrections: %w", err)
	}
	return out, nil
}

func scanCorrection(row rowScanner) (workforce.TimeCorrection, error) {
	var (
		tc                        workforce.TimeCorrection
		reqStart, reqEnd, origEnd sql.NullString
		decided                   sql.NullString
		origStart, created, stat  string
	)
	if err := row.Scan(&tc.ID, &tc.UserID, &tc.TimeEntryID, &reqStart, &reqEnd, &origStart, &origEnd,
		&tc.Reason, &tc.Team, &tc.ShiftType, &stat, &tc.AutoApprovable, &tc.DecidedBy, &decided, &created); err != nil {
		return tc, err
	}
	tc.Status = generic.Status(stat)
	var err error
	if tc.RequestedStartTime, err = parseNullTS(reqStart); err != nil {
		return tc, err
	}
	if tc.RequestedEndTime, err = parseNullTS(reqEnd); err != nil {
		return tc, err
	}
	if tc.OriginalStartTime, err = parseTS(origStart); err != nil {
		return tc, err
	}
	if tc.OriginalEndTime, err = parseNullTS(origEnd); err != nil {
		return tc, err
	}
	if tc.DecidedAt, err = parseNullTS(decided); err != nil {
		return tc, err
	}
	if tc.CreatedAt, err = parseTS(created); err != nil {
		return tc, err
	}
	return tc, nil
}

// =============================================================================
// TIME-OFF REQUESTS
// =============================================================================

const requestColumns = `id, user_id, request_type, start_date, end_date, days_requested, reason, status, approved_at, approved_by, decided_by, decided_at, approval_notes, created_at`

func (c *conn) InsertTimeOffRequest(ctx context.Context, r workforce.TimeOffRequest) error {
	_, err := c.exec(ctx, `INSERT INTO time_off_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, string(r.Type), date(r.StartDate), date(r.EndDate), r.DaysRequested, r.Reason,
		string(r.Status), nullTS(r.ApprovedAt), r.ApprovedBy, r.DecidedBy, nullTS(r.DecidedAt),
		r.ApprovalNotes, ts(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert time-off request: %w", err)
	}
	return nil
}

func (c *conn) UpdateTimeOffRequest(ctx context.Context, r workforce.TimeOffRequest) error {
	res, err := c.exec(ctx, `UPDATE time_off_requests SET
			status = ?, approved_at = ?, approved_by = ?, decided_by = ?, decided_at = ?, approval_notes = ?
		WHERE id = ?`,
		string(r.Status), nullTS(r.ApprovedAt), r.ApprovedBy, r.DecidedBy, nullTS(r.DecidedAt), r.ApprovalNotes, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update time-off request: %w", err)
	}
	return requireRow(res, "time_off_request", r.ID)
}

func (c *conn) GetTimeOffRequest(ctx context.Context, id string) (workforce.TimeOffRequest, error) {
	return queryOne(ctx, c, "time_off_request", id, scanRequest,
		`SELECT `+requestColumns+` FROM time_off_requests WHERE id = ?`, id)
}

func (c *conn) ListTimeOffRequests(ctx context.Context, f workforce.TimeOffFilter) ([]workforce.TimeOffRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where, args = append(where, "user_id = ?"), append(args, f.UserID)
	}
	if f.Type != "" {
		where, args = append(where, "request_type = ?"), append(args, string(f.Type))
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, f.Status)
	}
	if !f.From.IsZero() {
		where, args = append(where, "end_date >= ?"), append(args, date(f.From))
	}
	if !f.To.IsZero() {
		where, args = append(where, "start_date <= ?"), append(args, date(f.To))
	}
	out, err := queryAll(ctx, c, scanRequest,
		`SELECT `+requestColumns+` FROM time_off_requests`+whereClause(where)+` ORDER BY start_date, created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time-off requests: %w", err)
	}
	return out, nil
}

func scanRequest(row rowScanner) (workforce.TimeOffRequest, error) {
	var (
		r                              workforce.TimeOffRequest
		typ, start, end, stat, created string
		approved, decided              sql.NullString
	)
	if err := row.Scan(&r.ID, &r.UserID, &typ, &start, &end, &r.DaysRequested, &r.Reason, &stat,
		&approved, &r.ApprovedBy, &r.DecidedBy, &decided, &r.ApprovalNotes, &created); err != nil {
		return r, err
	}
	r.Type = workforce.TimeOffType(typ)
	r.Status = generic.Status(stat)
	var err error
	if r.StartDate, err = parseDate(start); err != nil {
		return r, err
	}
	if r.EndDate, err = parseDate(end); err != nil {
		return r, err
	}
	if r.ApprovedAt, err = parseNullTS(approved); err != nil {
		return r, err
	}
	if r.DecidedAt, err = parseNullTS(decided); err != nil {
		return r, err
	}
	if r.CreatedAt, err = parseTS(created); err != nil {
		return r, err
	}
	return r, nil
}

// =============================================================================
// BALANCE ADJUSTMENTS (append-only)
// =============================================================================

const adjustmentColumns = `id, user_id, request_type, effective_date, delta_days, reason, created_by, idempotency_key, created_at`

func (c *conn) AppendAdjustment(ctx context.Context, a workforce.BalanceAdjustment) error {
	_, err := c.exec(ctx, `INSERT INTO balance_adjustments (`+adjustmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Type), date(a.EffectiveDate), a.DeltaDays, a.Reason, a.CreatedBy,
		nullString(a.IdempotencyKey), ts(a.CreatedAt),
	)
	return mapUnique(err, workforce.ErrDuplicateIdempotencyKey, "append balance adjustment")
}

func (c *conn) ListAdjustments(ctx context.Context, userID string, t workforce.TimeOffType) ([]workforce.BalanceAdjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM balance_adjustments WHERE user_id = ?`
	args := []any{userID}
	if t != "" {
		query += ` AND request_type = ?`
		args = append(args, string(t))
	}
	out, err := queryAll(ctx, c, scanAdjustment, query+` ORDER BY effective_date, created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list balance adjustments: %w", err)
	}
	return out, nil
}

func scanAdjustment(row rowScanner) (workforce.BalanceAdjustment, error) {
	var (
		a                       workforce.BalanceAdjustment
		typ, effective, created string
		key                     sql.NullString
	)
	if err := row.Scan(&a.ID, &a.UserID, &typ, &effective, &a.DeltaDays, &a.Reason, &a.CreatedBy, &key, &created); err != nil {
		return a, err
	}
	a.Type = workforce.TimeOffType(typ)
	a.IdempotencyKey = key.String
	var err error
	if a.EffectiveDate, err = parseDate(effective); err != nil {
		return a, err
	}
	if a.CreatedAt, err = parseTS(created); err != nil {
		return a, err
	}
	return a, nil
}

// =============================================================================
// TIME-OFF RULES
// =============================================================================

const ruleColumns = `id, name, request_type, days, reset_period, reset_unit, anchor, not_before, not_before_unit, tiers_json`

func (c *conn) SaveTimeOffRule(ctx context.Context, r workforce.TimeOffRule) error {
	tiers := r.Tiers
	if tiers == nil {
		tiers = []workforce.Tier{}
	}
	tiersJSON, err := json.Marshal(tiers)
	if err != nil {
		return fmt.Errorf("failed to encode tiers: %w", err)
	}
	_, err = c.exec(ctx, `INSERT INTO time_off_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			request_type = excluded.request_type,
			days = excluded.days,
			reset_period = excluded.reset_period,
			reset_unit = excluded.reset_unit,
			anchor = excluded.anchor,
			not_before = excluded.not_before,
			not_before_unit = excluded.not_before_unit,
			tiers_json = excluded.tiers_json`,
		r.ID, r.Name, string(r.Type), r.Days, r.ResetPeriod, string(r.ResetUnit), string(r.Anchor),
		r.NotBefore, string(r.NotBeforeUnit), string(tiersJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save time-off rule: %w", err)
	}
	return nil
}

func (c *conn) GetTimeOffRule(ctx context.Context, id string) (workforce.TimeOffRule, error) {
	return queryOne(ctx, c, "time_off_rule", id, scanRule,
		`SELECT `+ruleColumns+` FROM time_off_rules WHERE id = ?`, id)
}

func (c *conn) ListTimeOffRules(ctx context.Context) ([]workforce.TimeOffRule, error) {
	out, err := queryAll(ctx, c, scanRule, `SELECT `+ruleColumns+` FROM time_off_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list time-off rules: %w", err)
	}
	return out, nil
}

func scanRule(row rowScanner) (workforce.TimeOffRule, error) {
	var (
		r                                workforce.TimeOffRule
		typ, unit, anchor, nbUnit, tiers string
		days                             decimal.Decimal
	)
	if err := row.Scan(&r.ID, &r.Name, &typ, &days, &r.ResetPeriod, &unit, &anchor,
		&r.NotBefore, &nbUnit, &tiers); err != nil {
		return r, err
	}
	r.Type = workforce.TimeOffType(typ)
	r.Days = days
	r.ResetUnit = generic.IntervalUnit(unit)
	r.Anchor = workforce.RuleAnchor(anchor)
	r.NotBeforeUnit = generic.IntervalUnit(nbUnit)
	if err := json.Unmarshal([]byte(tiers), &r.Tiers); err != nil {
		return r, fmt.Errorf("invalid tiers for rule %s: %w", r.ID, err)
	}
	return r, nil
}
