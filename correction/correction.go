/*
Package correction implements retroactive time corrections.

PURPOSE:
  An employee proposes new bounds for one of their time entries. Nothing
  changes on the entry until a manager approves. Approval overwrites the
  bounds and recomputes total hours from the corrected interval.

RULES:
  - at least one of requested start / end, and a reason
  - the corrected interval (requested bounds merged with current ones) must
    have end > start
  - at most one pending correction per entry (ErrPendingCorrectionExists)
  - approval must not make the entry overlap another entry of the user
    (ErrOverlappingEntry; the correction stays pending)

AUTO-APPROVAL:
  A correction whose start and end each move by no more than the configured
  window (default 10 minutes) is flagged auto_approvable at proposal time.
  AutoApprove approves such corrections once the day they were created in
  has passed.

SEE ALSO:
  - generic/approval.go: Workflow
  - clock/clock.go: CheckOverlap
*/
package correction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/warp/timeclock-engine/clock"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/workforce"
)

const DefaultAutoApproveWindow = 10 * time.Minute

type Config struct {
	// AutoApproveWindow bounds how far each bound may move for a correction
	// to be auto-approvable. Negative disables auto-approval.
	AutoApproveWindow time.Duration
	Location          *time.Location
}

type Service struct {
	store  workforce.Store
	cfg    Config
	clock  generic.Clock
	logger *slog.Logger
}

func NewService(store workforce.Store, cfg Config, clock generic.Clock, logger *slog.Logger) *Service {
	if cfg.AutoApproveWindow == 0 {
		cfg.AutoApproveWindow = DefaultAutoApproveWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, cfg: cfg, clock: clock, logger: logger}
}

// =============================================================================
// PROPOSE
// =============================================================================

type Proposal struct {
	UserID         string
	TimeEntryID    string
	RequestedStart *time.Time
	RequestedEnd   *time.Time
	Reason         string
	Team           string
	ShiftType      string
}

func (p Proposal) validate() error {
	verr := &generic.ValidationError{}
	if p.UserID == "" {
		verr.Add("user_id", "required")
	}
	if p.TimeEntryID == "" {
		verr.Add("time_entry_id", "required")
	}
	if p.RequestedStart == nil && p.RequestedEnd == nil {
		verr.Add("requested_time", "at least one of requested start or end is required")
	}
	if p.Reason == "" {
		verr.Add("reason", "required")
	}
	if err := verr.Err(); err != nil {
		return err
	}
	if p.RequestedStart != nil && p.RequestedEnd != nil && !p.RequestedEnd.After(*p.RequestedStart) {
		return generic.ErrInvalidInterval
	}
	return nil
}

// Propose records a pending correction for one of the user's entries.
func (s *Service) Propose(ctx context.Context, p Proposal) (workforce.TimeCorrection, error) {
	logger := logging.Service(ctx, s.logger, "correction", "propose",
		"user_id", p.UserID, "time_entry_id", p.TimeEntryID)

	if err := p.validate(); err != nil {
		logger.Info("correction rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeCorrection{}, err
	}

	now := s.clock.Now()
	var c workforce.TimeCorrection
	err := generic.Retry(ctx, "correction.propose", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, p.UserID); err != nil {
				return err
			}
			entry, err := tx.GetTimeEntry(ctx, p.TimeEntryID)
			if err != nil {
				return err
			}
			if entry.UserID != p.UserID {
				return generic.NewValidationError("time_entry_id", "entry belongs to another user")
			}
			if _, _, err := corrected(entry, p.RequestedStart, p.RequestedEnd); err != nil {
				return err
			}
			if err := ensureNoPending(ctx, tx, entry.ID); err != nil {
				return err
			}

			c = workforce.TimeCorrection{
				ID:                 workforce.NewID(),
				UserID:             p.UserID,
				TimeEntryID:        entry.ID,
				RequestedStartTime: p.RequestedStart,
				RequestedEndTime:   p.RequestedEnd,
				OriginalStartTime:  entry.StartTime,
				OriginalEndTime:    entry.EndTime,
				Reason:             p.Reason,
				Team:               generic.FirstNonEmpty(p.Team, entry.Team),
				ShiftType:          generic.FirstNonEmpty(p.ShiftType, entry.ShiftType),
				Status:             generic.StatusPending,
				CreatedAt:          now,
			}
			c.AutoApprovable = s.autoApprovable(c)
			return tx.InsertCorrection(ctx, c)
		})
	})
	if err != nil {
		logger.Info("correction rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeCorrection{}, err
	}
	logger.Info("correction proposed", "correction_id", c.ID, "auto_approvable", c.AutoApprovable)
	return c, nil
}

func ensureNoPending(ctx context.Context, r workforce.Reader, entryID string) error {
	pending, err := r.ListCorrections(ctx, workforce.CorrectionFilter{
		TimeEntryID: entryID,
		Status:      string(generic.StatusPending),
	})
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return &generic.StateConflictError{
			Kind: "time_correction", ID: pending[0].ID, Status: string(pending[0].Status),
			Action: "propose", Err: generic.ErrPendingCorrectionExists,
		}
	}
	return nil
}

// corrected merges requested bounds into the entry's current bounds. The end
// is nil only when the entry is still active and no end was requested.
func corrected(entry workforce.TimeEntry, reqStart, reqEnd *time.Time) (time.Time, *time.Time, error) {
	start := entry.StartTime
	if reqStart != nil {
		start = *reqStart
	}
	end := entry.EndTime
	if reqEnd != nil {
		end = reqEnd
	}
	if end != nil && !end.After(start) {
		return time.Time{}, nil, generic.ErrInvalidInterval
	}
	return start, end, nil
}

func (s *Service) autoApprovable(c workforce.TimeCorrection) bool {
	if s.cfg.AutoApproveWindow < 0 {
		return false
	}
	within := func(requested *time.Time, original *time.Time) bool {
		if requested == nil {
			return true
		}
		if original == nil {
			return false
		}
		d := requested.Sub(*original)
		if d < 0 {
			d = -d
		}
		return d <= s.cfg.AutoApproveWindow
	}
	return within(c.RequestedStartTime, &c.OriginalStartTime) && within(c.RequestedEndTime, c.OriginalEndTime)
}

// =============================================================================
// DECIDE
// =============================================================================

type Decision struct {
	CorrectionID string
	Decision     generic.Decision
	ApproverID   string
}

// Decide approves or denies a pending correction. Approval rewrites the
// entry's bounds and total hours in the same transaction.
func (s *Service) Decide(ctx context.Context, d Decision) (workforce.TimeCorrection, error) {
	logger := logging.Service(ctx, s.logger, "correction", "decide",
		"correction_id", d.CorrectionID, "decision", string(d.Decision))

	verr := &generic.ValidationError{}
	if d.CorrectionID == "" {
		verr.Add("correction_id", "required")
	}
	if d.ApproverID == "" {
		verr.Add("approver_id", "required")
	}
	if !d.Decision.Valid() {
		verr.Add("decision", "must be approve or deny")
	}
	if err := verr.Err(); err != nil {
		return workforce.TimeCorrection{}, err
	}

	now := s.clock.Now()
	var c workforce.TimeCorrection
	err := generic.Retry(ctx, "correction.decide", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			current, err := tx.GetCorrection(ctx, d.CorrectionID)
			if err != nil {
				return err
			}
			if err := tx.LockEmployee(ctx, current.UserID); err != nil {
				return err
			}
			if current, err = tx.GetCorrection(ctx, d.CorrectionID); err != nil {
				return err
			}

			wf := generic.Workflow[*workforce.TimeCorrection]{
				OnApprove: func(ctx context.Context, c *workforce.TimeCorrection) error {
					return applyToEntry(ctx, tx, c, now)
				},
			}
			if err := wf.Decide(ctx, &current, d.Decision); err != nil {
				return err
			}
			current.DecidedBy = d.ApproverID
			current.DecidedAt = &now
			if err := tx.UpdateCorrection(ctx, current); err != nil {
				return err
			}
			c = current
			return nil
		})
	})
	if err != nil {
		logger.Info("correction decision rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeCorrection{}, err
	}
	logger.Info("correction decided", "status", string(c.Status), "time_entry_id", c.TimeEntryID)
	return c, nil
}

func applyToEntry(ctx context.Context, tx workforce.Tx, c *workforce.TimeCorrection, now time.Time) error {
	entry, err := tx.GetTimeEntry(ctx, c.TimeEntryID)
	if err != nil {
		return err
	}
	start, end, err := corrected(entry, c.RequestedStartTime, c.RequestedEndTime)
	if err != nil {
		return err
	}

	overlapEnd := end
	if overlapEnd == nil {
		far := start.AddDate(100, 0, 0)
		overlapEnd = &far
	}
	if err := clock.CheckOverlap(ctx, tx, entry.UserID, start, *overlapEnd, entry.ID); err != nil {
		return err
	}

	entry.StartTime = start
	if end != nil {
		status := entry.Status
		if status == workforce.EntryActive {
			status = workforce.EntryClosed
		}
		entry.Close(*end, status)
	}
	entry.UpdatedAt = now
	return tx.UpdateTimeEntry(ctx, entry)
}

// =============================================================================
// AUTO APPROVE
// =============================================================================

// AutoApprove approves pending auto-approvable corrections created before the
// start of now's day.
func (s *Service) AutoApprove(ctx context.Context, now time.Time) (int, error) {
	logger := logging.Service(ctx, s.logger, "correction", "auto_approve")

	pending, err := s.Pending(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := generic.StartOfDayIn(now.In(s.cfg.Location), s.cfg.Location)

	var (
		approved int
		errs     []error
	)
	for _, c := range pending {
		if !c.AutoApprovable || !c.CreatedAt.Before(cutoff) {
			continue
		}
		_, err := s.Decide(ctx, Decision{CorrectionID: c.ID, Decision: generic.Approve, ApproverID: workforce.SystemUser})
		switch {
		case err == nil:
			approved++
		case errors.Is(err, generic.ErrAlreadyDecided):
		case generic.IsDomainError(err):
			logger.Info("auto-approval skipped", "correction_id", c.ID, "error_kind", generic.ErrorKind(err), "error", err)
		default:
			errs = append(errs, err)
		}
	}
	if approved > 0 {
		logger.Info("auto-approved corrections", "count", approved)
	}
	return approved, errors.Join(errs...)
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (workforce.TimeCorrection, error) {
	return generic.RetryValue(ctx, "correction.get", func(ctx context.Context) (workforce.TimeCorrection, error) {
		return s.store.GetCorrection(ctx, id)
	})
}

// Pending lists corrections awaiting a decision, oldest first.
func (s *Service) Pending(ctx context.Context) ([]workforce.TimeCorrection, error) {
	return s.List(ctx, workforce.CorrectionFilter{Status: string(generic.StatusPending)})
}

func (s *Service) ForUser(ctx context.Context, userID string) ([]workforce.TimeCorrection, error) {
	return s.List(ctx, workforce.CorrectionFilter{UserID: userID})
}

func (s *Service) List(ctx context.Context, f workforce.CorrectionFilter) ([]workforce.TimeCorrection, error) {
	return generic.RetryValue(ctx, "correction.list", func(ctx context.Context) ([]workforce.TimeCorrection, error) {
		return s.store.ListCorrections(ctx, f)
	})
}
