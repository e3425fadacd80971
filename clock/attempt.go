package clock

import (
	"context"
	"errors"
	"time"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// EARLY ATTEMPT DECISIONS
// =============================================================================

type AttemptDecision struct {
	AttemptID  string
	Decision   generic.Decision
	ApproverID string
	// ActualClockIn is the entry start on approval. Defaults to the
	// attempt's scheduled start.
	ActualClockIn *time.Time
}

// DecideAttempt approves or denies a pending early clock-in attempt. Approval
// opens an active TimeEntry (source early_attempt) linked to the attempt;
// denial creates nothing. A second decision fails with ErrAlreadyDecided.
func (s *Service) DecideAttempt(ctx context.Context, d AttemptDecision) (workforce.EarlyClockAttempt, error) {
	logger := logging.Service(ctx, s.logger, "clock", "decide_attempt",
		"attempt_id", d.AttemptID, "decision", string(d.Decision))

	verr := &generic.ValidationError{}
	if d.AttemptID == "" {
		verr.Add("attempt_id", "required")
	}
	if d.ApproverID == "" {
		verr.Add("approver_id", "required")
	}
	if !d.Decision.Valid() {
		verr.Add("decision", "must be approve or deny")
	}
	if err := verr.Err(); err != nil {
		return workforce.EarlyClockAttempt{}, err
	}

	now := s.clock.Now()
	var attempt workforce.EarlyClockAttempt
	err := generic.Retry(ctx, "clock.decide_attempt", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			a, err := tx.GetEarlyAttempt(ctx, d.AttemptID)
			if err != nil {
				return err
			}
			if err := tx.LockEmployee(ctx, a.UserID); err != nil {
				return err
			}
			// Re-read under the employee lock.
			if a, err = tx.GetEarlyAttempt(ctx, d.AttemptID); err != nil {
				return err
			}

			wf := generic.Workflow[*workforce.EarlyClockAttempt]{
				OnApprove: func(ctx context.Context, a *workforce.EarlyClockAttempt) error {
					return s.openFromAttempt(ctx, tx, a, d.ActualClockIn, now)
				},
			}
			if err := wf.Decide(ctx, &a, d.Decision); err != nil {
				return err
			}
			a.DecidedBy = d.ApproverID
			a.DecidedAt = &now
			if err := tx.UpdateEarlyAttempt(ctx, a); err != nil {
				return err
			}
			attempt = a
			return nil
		})
	})
	if err != nil {
		logger.Info("attempt decision rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.EarlyClockAttempt{}, err
	}
	logger.Info("attempt decided", "status", string(attempt.Status), "time_entry_id", attempt.TimeEntryID)
	return attempt, nil
}

func (s *Service) openFromAttempt(ctx context.Context, tx workforce.Tx, a *workforce.EarlyClockAttempt, actual *time.Time, now time.Time) error {
	start := a.ScheduledStart
	if actual != nil {
		start = *actual
	}
	if err := ensureNotClockedIn(ctx, tx, a.UserID); err != nil {
		return err
	}
	if err := CheckOverlap(ctx, tx, a.UserID, start, openEnded, ""); err != nil {
		return err
	}
	entry := workforce.TimeEntry{
		ID:        workforce.NewID(),
		UserID:    a.UserID,
		Team:      a.Team,
		ShiftType: a.ShiftType,
		StartTime: start,
		Status:    workforce.EntryActive,
		Source:    workforce.SourceEarlyAttempt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertTimeEntry(ctx, entry); err != nil {
		return err
	}
	a.ActualClockIn = &start
	a.TimeEntryID = entry.ID
	return nil
}

// =============================================================================
// RELEASE
// =============================================================================

// ReleaseDueAttempts approves pending attempts whose scheduled start minus
// the tolerance has been reached, clocking the user in at that instant.
func (s *Service) ReleaseDueAttempts(ctx context.Context, now time.Time) (int, error) {
	logger := logging.Service(ctx, s.logger, "clock", "release_due_attempts")

	pending, err := s.PendingAttempts(ctx)
	if err != nil {
		return 0, err
	}

	var (
		released int
		errs     []error
	)
	for _, a := range pending {
		at := a.ScheduledStart.Add(-s.cfg.EarlyTolerance)
		if now.Before(at) {
			continue
		}
		_, err := s.DecideAttempt(ctx, AttemptDecision{
			AttemptID:     a.ID,
			Decision:      generic.Approve,
			ApproverID:    workforce.SystemUser,
			ActualClockIn: &at,
		})
		if errors.Is(err, generic.ErrAlreadyDecided) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		released++
	}
	if released > 0 {
		logger.Info("released early attempts", "count", released)
	}
	return released, errors.Join(errs...)
}

// PendingAttempts lists attempts awaiting a decision, oldest first.
func (s *Service) PendingAttempts(ctx context.Context) ([]workforce.EarlyClockAttempt, error) {
	return s.Attempts(ctx, workforce.AttemptFilter{Status: string(generic.StatusPending)})
}

func (s *Service) Attempts(ctx context.Context, f workforce.AttemptFilter) ([]workforce.EarlyClockAttempt, error) {
	return generic.RetryValue(ctx, "clock.attempts", func(ctx context.Context) ([]workforce.EarlyClockAttempt, error) {
		return s.store.ListEarlyAttempts(ctx, f)
	})
}
