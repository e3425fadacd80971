package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// EARLY CLOCK ATTEMPTS
// =============================================================================

const attemptColumns = `id, user_id, team, shift_type, scheduled_start, attempted_time, actual_clock_in, status, decided_by, decided_at, time_entry_id, created_at`

func (c *conn) InsertEarlyAttempt(ctx context.Context, a workforce.EarlyClockAttempt) error {
	_, err := c.exec(ctx, `INSERT INTO early_clock_attempts (`+attemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Team, a.ShiftType, ts(a.ScheduledStart), ts(a.AttemptedTime),
		nullTS(a.ActualClockIn), string(a.Status), a.DecidedBy, nullTS(a.DecidedAt),
		a.TimeEntryID, ts(a.CreatedAt),
	)
	return mapUnique(err, generic.ErrDuplicateAttempt, "insert early clock attempt")
}

func (c *conn) UpdateEarlyAttempt(ctx context.Context, a workforce.EarlyClockAttempt) error {
	res, err := c.exec(ctx, `UPDATE early_clock_attempts SET
			actual_clock_in = ?, status = ?, decided_by = ?, decided_at = ?, time_entry_id = ?
		WHERE id = ?`,
		nullTS(a.ActualClockIn), string(a.Status), a.DecidedBy, nullTS(a.DecidedAt), a.TimeEntryID, a.ID,
	)
	if err != nil {
		return mapUnique(err, generic.ErrDuplicateAttempt, "update early clock attempt")
	}
	return requireRow(res, "early_clock_attempt", a.ID)
}

func (c *conn) GetEarlyAttempt(ctx context.Context, id string) (workforce.EarlyClockAttempt, error) {
	return queryOne(ctx, c, "early_clock_attempt", id, scanAttempt,
		`SELECT `+attemptColumns+` FROM early_clock_attempts WHERE id = ?`, id)
}

func (c *conn) ListEarlyAttempts(ctx context.Context, f workforce.AttemptFilter) ([]workforce.EarlyClockAttempt, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where, args = append(where, "user_id = ?"), append(args, f.UserID)
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, f.Status)
	}
	out, err := queryAll(ctx, c, scanAttempt,
		`SELECT `+attemptColumns+` FROM early_clock_attempts`+whereClause(where)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list early clock attempts: %w", err)
	}
	return out, nil
}

func scanAttempt(row rowScanner) (workforce.EarlyClockAttempt, error) {
	var (
		a                                   workforce.EarlyClockAttempt
		scheduled, attempted, created, stat string
		actual, decided                     sql.NullString
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Team, &a.ShiftType, &scheduled, &attempted,
		&actual, &stat, &a.DecidedBy, &decided, &a.TimeEntryID, &created); err != nil {
		return a, err
	}
	a.Status = generic.Status(stat)
	var err error
	if a.ScheduledStart, err = parseTS(scheduled); err != nil {
		return a, err
	}
	if a.AttemptedTime, err = parseTS(attempted); err != nil {
		return a, err
	}
	if a.ActualClockIn, err = parseNullTS(actual); err != nil {
		return a, err
	}
	if a.DecidedAt, err = parseNullTS(decided); err != nil {
		return a, err
	}
	if a.CreatedAt, err = parseTS(created); err != nil {
		return a, err
	}
	return a, nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

const entryColumns = `id, user_id, team, shift_type, start_time, end_time, total_hours, status, source, created_at, updated_at`

func (c *conn) InsertTimeEntry(ctx context.Context, e workforce.TimeEntry) error {
	_, err := c.exec(ctx, `INSERT INTO time_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Team, e.ShiftType, ts(e.StartTime), nullTS(e.EndTime),
		nullDecimal(e.TotalHours), string(e.Status), string(e.Source), ts(e.CreatedAt), ts(e.UpdatedAt),
	)
	return mapUnique(err, generic.ErrAlreadyClockedIn, "insert time entry")
}

func (c *conn) UpdateTimeEntry(ctx context.Context, e workforce.TimeEntry) error {
	res, err := c.exec(ctx, `UPDATE time_entries SET
			team = ?, shift_type = ?, start_time = ?, end_time = ?, total_hours = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		e.Team, e.ShiftType, ts(e.StartTime), nullTS(e.EndTime), nullDecimal(e.TotalHours),
		string(e.Status), ts(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return mapUnique(err, generic.ErrAlreadyClockedIn, "update time entry")
	}
	return requireRow(res, "time_entry", e.ID)
}

func (c *conn) GetTimeEntry(ctx context.Context, id string) (workforce.TimeEntry, error) {
	return queryOne(ctx, c, "time_entry", id, scanEntry,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
}

func (c *conn) ActiveTimeEntry(ctx context.Context, userID string) (workforce.TimeEntry, error) {
	return queryOne(ctx, c, "active_time_entry", userID, scanEntry,
		`SELECT `+entryColumns+` FROM time_entries WHERE user_id = ? AND status = ?`,
		userID, string(workforce.EntryActive))
}

func (c *conn) ListTimeEntries(ctx context.Context, f workforce.EntryFilter) ([]workforce.TimeEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where, args = append(where, "user_id = ?"), append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if !f.StartFrom.IsZero() {
		where, args = append(where, "start_time >= ?"), append(args, ts(f.StartFrom))
	}
	if !f.StartTo.IsZero() {
		where, args = append(where, "start_time < ?"), append(args, ts(f.StartTo))
	}
	out, err := queryAll(ctx, c, scanEntry,
		`SELECT `+entryColumns+` FROM time_entries`+whereClause(where)+` ORDER BY start_time, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	return out, nil
}

func scanEntry(row rowScanner) (workforce.TimeEntry, error) {
	var (
		e                                  workforce.TimeEntry
		start, created, updated, stat, src string
		end                                sql.NullString
		total                              decimal.NullDecimal
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Team, &e.ShiftType, &start, &end, &total,
		&stat, &src, &created, &updated); err != nil {
		return e, err
	}
	e.Status = workforce.EntryStatus(stat)
	e.Source = workforce.EntrySource(src)
	if total.Valid {
		t := total.Decimal
		e.TotalHours = &t
	}
	var err error
	if e.StartTime, err = parseTS(start); err != nil {
		return e, err
	}
	if e.EndTime, err = parseNullTS(end); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTS(created); err != nil {
		return e, err
	}
	if e.UpdatedAt, err = parseTS(updated); err != nil {
		return e, err
	}
	return e, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
