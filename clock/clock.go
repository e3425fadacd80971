/*
Package clock implements the clock gate and the time entry ledger.

PURPOSE:
  Clock-in events are validated against the employee's shift schedule. An
  on-time (or slightly early) clock-in opens an active TimeEntry; a clock-in
  earlier than the tolerance allows becomes a pending EarlyClockAttempt that
  a manager approves or denies.

WINDOW SELECTION:
  Given the weekday's ShiftDay and the local time of day t:
    morning   if t < morning_end
    afternoon if t < afternoon_end
    otherwise ErrOutOfSchedule
  A non-working or missing day is ErrOutOfSchedule too.

EARLY GATE (tolerance Δ, default 5 minutes):
    t >= window_start - Δ  ->  TimeEntry{status: active}
    t <  window_start - Δ  ->  EarlyClockAttempt{status: pending}

ENTRY LIFECYCLE:
  active ──ClockOut──▶ closed
     └────AutoEnd────▶ auto_ended (at the window end)

SEE ALSO:
  - attempt.go: early attempt decisions
  - schedule/schedule.go: Windows, SelectWindow
*/
package clock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/schedule"
	"github.com/warp/timeclock-engine/workforce"
)

// DefaultEarlyTolerance is how early a clock-in may be before it needs approval.
const DefaultEarlyTolerance = 5 * time.Minute

type Config struct {
	// Location interprets shift times of day. Defaults to UTC.
	Location       *time.Location
	EarlyTolerance time.Duration
}

type Service struct {
	store  workforce.Store
	cfg    Config
	clock  generic.Clock
	logger *slog.Logger
}

func NewService(store workforce.Store, cfg Config, clock generic.Clock, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.EarlyTolerance <= 0 {
		cfg.EarlyTolerance = DefaultEarlyTolerance
	}
	return &Service{store: store, cfg: cfg, clock: clock, logger: logger}
}

// =============================================================================
// CLOCK IN
// =============================================================================

type ClockInRequest struct {
	UserID    string
	Team      string // defaults to the employee's team
	ShiftType string // defaults to the window name
	At        time.Time
}

// ClockInResult holds exactly one of Entry or Attempt.
type ClockInResult struct {
	Entry   *workforce.TimeEntry
	Attempt *workforce.EarlyClockAttempt
}

func (s *Service) ClockIn(ctx context.Context, req ClockInRequest) (ClockInResult, error) {
	logger := logging.Service(ctx, s.logger, "clock", "clock_in", "user_id", req.UserID)
	if req.UserID == "" {
		return ClockInResult{}, generic.NewValidationError("user_id", "required")
	}
	now := s.clock.Now()
	if req.At.IsZero() {
		req.At = now
	}

	var result ClockInResult
	err := generic.Retry(ctx, "clock.clock_in", func(ctx context.Context) error {
		result = ClockInResult{}
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, req.UserID); err != nil {
				return err
			}
			emp, err := tx.GetEmployee(ctx, req.UserID)
			if err != nil {
				return err
			}
			if err := ensureNotClockedIn(ctx, tx, req.UserID); err != nil {
				return err
			}
			if err := CheckOverlap(ctx, tx, req.UserID, req.At, openEnded, ""); err != nil {
				return err
			}

			window, err := s.window(ctx, tx, req.UserID, req.At)
			if err != nil {
				return err
			}
			team := generic.FirstNonEmpty(req.Team, emp.Team)
			shiftType := generic.FirstNonEmpty(req.ShiftType, window.Name)
			windowStart := window.Start.On(req.At.In(s.cfg.Location), s.cfg.Location)

			if req.At.Before(windowStart.Add(-s.cfg.EarlyTolerance)) {
				attempt := workforce.EarlyClockAttempt{
					ID:             workforce.NewID(),
					UserID:         req.UserID,
					Team:           team,
					ShiftType:      shiftType,
					ScheduledStart: windowStart,
					AttemptedTime:  req.At,
					Status:         generic.StatusPending,
					CreatedAt:      now,
				}
				if err := ensureNoPendingAttempt(ctx, tx, attempt); err != nil {
					return err
				}
				if err := tx.InsertEarlyAttempt(ctx, attempt); err != nil {
					return err
				}
				result.Attempt = &attempt
				return nil
			}

			entry := workforce.TimeEntry{
				ID:        workforce.NewID(),
				UserID:    req.UserID,
				Team:      team,
				ShiftType: shiftType,
				StartTime: req.At,
				Status:    workforce.EntryActive,
				Source:    workforce.SourceClock,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertTimeEntry(ctx, entry); err != nil {
				return err
			}
			if err := supersedeAttempts(ctx, tx, req.UserID, windowStart, now); err != nil {
				return err
			}
			result.Entry = &entry
			return nil
		})
	})
	if err != nil {
		logger.Info("clock-in rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return ClockInResult{}, err
	}
	if result.Attempt != nil {
		logger.Info("early clock-in held for approval",
			"attempt_id", result.Attempt.ID, "scheduled_start", result.Attempt.ScheduledStart)
	} else {
		logger.Info("clocked in", "time_entry_id", result.Entry.ID, "shift_type", result.Entry.ShiftType)
	}
	return result, nil
}

// window selects the sub-shift for a clock-in at instant at.
func (s *Service) window(ctx context.Context, r workforce.Reader, userID string, at time.Time) (schedule.Window, error) {
	local := at.In(s.cfg.Location)
	day, err := r.GetShiftDay(ctx, userID, local.Weekday())
	if generic.IsNotFound(err) {
		return schedule.Window{}, generic.ErrOutOfSchedule
	}
	if err != nil {
		return schedule.Window{}, err
	}
	w, ok := schedule.SelectWindow(day, generic.NewClockTime(local.Hour(), local.Minute()))
	if !ok {
		return schedule.Window{}, generic.ErrOutOfSchedule
	}
	return w, nil
}

func ensureNotClockedIn(ctx context.Context, r workforce.Reader, userID string) error {
	active, err := r.ActiveTimeEntry(ctx, userID)
	if err == nil {
		return &generic.StateConflictError{
			Kind: "time_entry", ID: active.ID, Status: string(active.Status),
			Action: "clock_in", Err: generic.ErrAlreadyClockedIn,
		}
	}
	if generic.IsNotFound(err) {
		return nil
	}
	return err
}

func ensureNoPendingAttempt(ctx context.Context, r workforce.Reader, a workforce.EarlyClockAttempt) error {
	pending, err := r.ListEarlyAttempts(ctx, workforce.AttemptFilter{UserID: a.UserID, Status: string(generic.StatusPending)})
	if err != nil {
		return err
	}
	for _, p := range pending {
		if p.ScheduledStart.Equal(a.ScheduledStart) {
			return &generic.StateConflictError{
				Kind: "early_clock_attempt", ID: p.ID, Status: string(p.Status),
				Action: "clock_in", Err: generic.ErrDuplicateAttempt,
			}
		}
	}
	return nil
}

// supersedeAttempts denies the user's pending attempts for scheduledStart once
// an entry has been opened for that window.
func supersedeAttempts(ctx context.Context, tx workforce.Tx, userID string, scheduledStart, now time.Time) error {
	pending, err := tx.ListEarlyAttempts(ctx, workforce.AttemptFilter{UserID: userID, Status: string(generic.StatusPending)})
	if err != nil {
		return err
	}
	for _, a := range pending {
		if !a.ScheduledStart.Equal(scheduledStart) {
			continue
		}
		a.Status = generic.StatusDenied
		a.DecidedBy = workforce.SystemUser
		a.DecidedAt = &now
		if err := tx.UpdateEarlyAttempt(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// CLOCK OUT
// =============================================================================

// ClockOut closes the user's active entry at at (now when zero).
func (s *Service) ClockOut(ctx context.Context, userID string, at time.Time) (workforce.TimeEntry, error) {
	logger := logging.Service(ctx, s.logger, "clock", "clock_out", "user_id", userID)
	now := s.clock.Now()
	if at.IsZero() {
		at = now
	}

	var entry workforce.TimeEntry
	err := generic.Retry(ctx, "clock.clock_out", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, userID); err != nil {
				return err
			}
			var err error
			entry, err = tx.ActiveTimeEntry(ctx, userID)
			if err != nil {
				return err
			}
			if !at.After(entry.StartTime) {
				return generic.ErrInvalidInterval
			}
			entry.Close(at, workforce.EntryClosed)
			entry.UpdatedAt = now
			return tx.UpdateTimeEntry(ctx, entry)
		})
	})
	if err != nil {
		logger.Info("clock-out rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeEntry{}, err
	}
	logger.Info("clocked out", "time_entry_id", entry.ID, "total_hours", entry.TotalHours.String())
	return entry, nil
}

// =============================================================================
// MANUAL ENTRIES
// =============================================================================

type ManualEntry struct {
	UserID    string
	Team      string
	ShiftType string
	Start     time.Time
	End       time.Time
}

// RecordManual stores an administrator-entered closed entry.
func (s *Service) RecordManual(ctx context.Context, m ManualEntry) (workforce.TimeEntry, error) {
	logger := logging.Service(ctx, s.logger, "clock", "record_manual", "user_id", m.UserID)

	verr := &generic.ValidationError{}
	if m.UserID == "" {
		verr.Add("user_id", "required")
	}
	if m.Start.IsZero() {
		verr.Add("start_time", "required")
	}
	if m.End.IsZero() {
		verr.Add("end_time", "required")
	}
	if err := verr.Err(); err != nil {
		return workforce.TimeEntry{}, err
	}
	if !m.End.After(m.Start) {
		return workforce.TimeEntry{}, generic.ErrInvalidInterval
	}

	now := s.clock.Now()
	var entry workforce.TimeEntry
	err := generic.Retry(ctx, "clock.record_manual", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, m.UserID); err != nil {
				return err
			}
			emp, err := tx.GetEmployee(ctx, m.UserID)
			if err != nil {
				return err
			}
			if err := CheckOverlap(ctx, tx, m.UserID, m.Start, m.End, ""); err != nil {
				return err
			}
			entry = workforce.TimeEntry{
				ID:        workforce.NewID(),
				UserID:    m.UserID,
				Team:      generic.FirstNonEmpty(m.Team, emp.Team),
				ShiftType: m.ShiftType,
				StartTime: m.Start,
				Source:    workforce.SourceManual,
				CreatedAt: now,
				UpdatedAt: now,
			}
			entry.Close(m.End, workforce.EntryClosed)
			return tx.InsertTimeEntry(ctx, entry)
		})
	})
	if err != nil {
		logger.Info("manual entry rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeEntry{}, err
	}
	logger.Info("manual entry recorded", "time_entry_id", entry.ID)
	return entry, nil
}

// openEnded bounds the interval of an entry that has not ended yet.
var openEnded = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// CheckOverlap returns ErrOverlappingEntry if any entry of the user other
// than excludeID intersects [start, end).
func CheckOverlap(ctx context.Context, r workforce.Reader, userID string, start, end time.Time, excludeID string) error {
	entries, err := r.ListTimeEntries(ctx, workforce.EntryFilter{UserID: userID, StartTo: end})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID != excludeID && e.Overlaps(start, end) {
			return &generic.StateConflictError{
				Kind: "time_entry", ID: e.ID, Status: string(e.Status),
				Action: "overlap", Err: generic.ErrOverlappingEntry,
			}
		}
	}
	return nil
}

// =============================================================================
// AUTO END
// =============================================================================

// AutoEnd closes active entries whose scheduled window has ended, stamping the
// window end as their end time. It returns the number of entries closed.
func (s *Service) AutoEnd(ctx context.Context, now time.Time) (int, error) {
	logger := logging.Service(ctx, s.logger, "clock", "auto_end")

	active, err := generic.RetryValue(ctx, "clock.auto_end.list", func(ctx context.Context) ([]workforce.TimeEntry, error) {
		return s.store.ListTimeEntries(ctx, workforce.EntryFilter{Statuses: []workforce.EntryStatus{workforce.EntryActive}})
	})
	if err != nil {
		return 0, err
	}

	var (
		closed int
		errs   []error
	)
	for _, e := range active {
		end, ok, err := s.windowEnd(ctx, e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok || now.Before(end) {
			continue
		}
		err = generic.Retry(ctx, "clock.auto_end", func(ctx context.Context) error {
			return s.store.WithTx(ctx, func(tx workforce.Tx) error {
				if err := tx.LockEmployee(ctx, e.UserID); err != nil {
					return err
				}
				current, err := tx.GetTimeEntry(ctx, e.ID)
				if err != nil {
					return err
				}
				if current.Status != workforce.EntryActive {
					return nil
				}
				current.Close(end, workforce.EntryAutoEnded)
				current.UpdatedAt = now
				return tx.UpdateTimeEntry(ctx, current)
			})
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
		logger.Info("entry auto-ended", "time_entry_id", e.ID, "user_id", e.UserID, "end_time", end)
	}
	return closed, errors.Join(errs...)
}

// windowEnd finds the end of the scheduled window an entry started in.
func (s *Service) windowEnd(ctx context.Context, e workforce.TimeEntry) (time.Time, bool, error) {
	local := e.StartTime.In(s.cfg.Location)
	day, err := s.store.GetShiftDay(ctx, e.UserID, local.Weekday())
	if generic.IsNotFound(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	tod := generic.NewClockTime(local.Hour(), local.Minute())
	for _, w := range schedule.Windows(day) {
		if w.Name == e.ShiftType && tod < w.End {
			return w.End.On(local, s.cfg.Location), true, nil
		}
	}
	w, ok := schedule.SelectWindow(day, tod)
	if !ok {
		return time.Time{}, false, nil
	}
	end := w.End.On(local, s.cfg.Location)
	return end, end.After(e.StartTime), nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Active returns the user's open entry.
func (s *Service) Active(ctx context.Context, userID string) (workforce.TimeEntry, error) {
	return generic.RetryValue(ctx, "clock.active", func(ctx context.Context) (workforce.TimeEntry, error) {
		return s.store.ActiveTimeEntry(ctx, userID)
	})
}

func (s *Service) Entries(ctx context.Context, f workforce.EntryFilter) ([]workforce.TimeEntry, error) {
	return generic.RetryValue(ctx, "clock.entries", func(ctx context.Context) ([]workforce.TimeEntry, error) {
		return s.store.ListTimeEntries(ctx, f)
	})
}

func (s *Service) Entry(ctx context.Context, id string) (workforce.TimeEntry, error) {
	return generic.RetryValue(ctx, "clock.entry", func(ctx context.Context) (workforce.TimeEntry, error) {
		return s.store.GetTimeEntry(ctx, id)
	})
}
