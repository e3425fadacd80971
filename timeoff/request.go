/*
Package timeoff implements PTO / UTO requests and their balances.

LIFECYCLE:
  Submit -> pending -> Decide -> approved | denied

  Approval is the debit: balances are derived from approved requests, so
  there is no counter to keep in sync.

SUBMISSION RULES:
  - end_date >= start_date, days_requested > 0
  - days_requested equals the scheduled working days in the range, holidays
    excluded; a single-day request may also be 0.5
  - UTO requests are capped at MaxUTODaysPerRequest consecutive days
  - no overlap with another pending or approved request of the user
  - advisory balance check at start_date

APPROVAL:
  Decide holds the employee lock, recomputes the balance and rejects an
  approval that would overdraw it, unless Override is set. The request then
  stays pending.

SEE ALSO:
  - balance.go: balance derivation
  - accrual.go: entitlement windows and tiers
  - policies.go: default rules
*/
package timeoff

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/schedule"
	"github.com/warp/timeclock-engine/workforce"
)

// ErrOverlappingRequest is returned when a new request shares a date with a
// pending or approved request of the same user.
var ErrOverlappingRequest = fmt.Errorf("%w: overlaps another time-off request", generic.ErrStateConflict)

const DefaultMaxUTODaysPerRequest = 3

var halfDay = decimal.NewFromFloat(0.5)

type Config struct {
	// MaxUTODaysPerRequest caps a single UTO request. Negative disables.
	MaxUTODaysPerRequest int
	// Location decides "today" for adjustments without an effective date.
	Location *time.Location
}

type Service struct {
	store  workforce.Store
	cfg    Config
	clock  generic.Clock
	logger *slog.Logger
}

func NewService(store workforce.Store, cfg Config, clock generic.Clock, logger *slog.Logger) *Service {
	if cfg.MaxUTODaysPerRequest == 0 {
		cfg.MaxUTODaysPerRequest = DefaultMaxUTODaysPerRequest
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, cfg: cfg, clock: clock, logger: logger}
}

// =============================================================================
// SUBMIT
// =============================================================================

type Submission struct {
	UserID        string
	Type          workforce.TimeOffType
	StartDate     time.Time
	EndDate       time.Time
	DaysRequested decimal.Decimal
	Reason        string
}

func (sub Submission) validate() error {
	verr := &generic.ValidationError{}
	if sub.UserID == "" {
		verr.Add("user_id", "required")
	}
	if !sub.Type.Valid() {
		verr.Add("request_type", "must be PTO or UTO")
	}
	if sub.StartDate.IsZero() {
		verr.Add("start_date", "required")
	}
	if sub.EndDate.IsZero() {
		verr.Add("end_date", "required")
	}
	if !sub.StartDate.IsZero() && sub.EndDate.Before(sub.StartDate) {
		verr.Add("end_date", "must not be before start_date")
	}
	if !sub.DaysRequested.IsPositive() {
		verr.Add("days_requested", "must be positive")
	}
	return verr.Err()
}

// Submit records a pending request after checking it against the user's
// schedule and balance.
func (s *Service) Submit(ctx context.Context, sub Submission) (workforce.TimeOffRequest, error) {
	logger := logging.Service(ctx, s.logger, "timeoff", "submit",
		"user_id", sub.UserID, "request_type", string(sub.Type))

	sub.StartDate = generic.DateOf(sub.StartDate, time.UTC)
	sub.EndDate = generic.DateOf(sub.EndDate, time.UTC)
	if err := sub.validate(); err != nil {
		logger.Info("time-off request rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeOffRequest{}, err
	}

	now := s.clock.Now()
	var req workforce.TimeOffRequest
	err := generic.Retry(ctx, "timeoff.submit", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, sub.UserID); err != nil {
				return err
			}
			if err := s.checkPolicy(ctx, tx, sub); err != nil {
				return err
			}
			if err := ensureNoOverlap(ctx, tx, sub); err != nil {
				return err
			}
			bal, err := computeBalance(ctx, tx, sub.UserID, sub.Type, sub.StartDate)
			if err != nil {
				return err
			}
			if !bal.Covers(sub.DaysRequested) {
				return bal.Shortfall(sub.DaysRequested)
			}

			req = workforce.TimeOffRequest{
				ID:            workforce.NewID(),
				UserID:        sub.UserID,
				Type:          sub.Type,
				StartDate:     sub.StartDate,
				EndDate:       sub.EndDate,
				DaysRequested: sub.DaysRequested,
				Reason:        sub.Reason,
				Status:        generic.StatusPending,
				CreatedAt:     now,
			}
			return tx.InsertTimeOffRequest(ctx, req)
		})
	})
	if err != nil {
		logger.Info("time-off request rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeOffRequest{}, err
	}
	logger.Info("time-off requested", "request_id", req.ID, "days", req.DaysRequested.String())
	return req, nil
}

// checkPolicy compares days_requested with the scheduled working days of the
// range.
func (s *Service) checkPolicy(ctx context.Context, r workforce.Reader, sub Submission) error {
	period := generic.Period{Start: sub.StartDate, End: sub.EndDate}
	week, err := schedule.Load(ctx, r, sub.UserID)
	if err != nil {
		return err
	}
	holidays, err := schedule.HolidaySet(ctx, r.ListHolidays, period)
	if err != nil {
		return err
	}
	working := len(week.WorkingDays(period, holidays))
	if working == 0 {
		return generic.NewValidationError("start_date", "no scheduled working days in range")
	}

	half := period.Len() == 1 && sub.DaysRequested.Equal(halfDay)
	if !half && !sub.DaysRequested.Equal(decimal.NewFromInt(int64(working))) {
		return generic.NewValidationError("days_requested",
			fmt.Sprintf("must equal the %d scheduled working day(s) in range", working))
	}
	if sub.Type == workforce.TimeOffUTO && s.cfg.MaxUTODaysPerRequest > 0 &&
		sub.DaysRequested.GreaterThan(decimal.NewFromInt(int64(s.cfg.MaxUTODaysPerRequest))) {
		return generic.NewValidationError("days_requested",
			fmt.Sprintf("UTO requests are limited to %d consecutive days", s.cfg.MaxUTODaysPerRequest))
	}
	return nil
}

func ensureNoOverlap(ctx context.Context, r workforce.Reader, sub Submission) error {
	existing, err := r.ListTimeOffRequests(ctx, workforce.TimeOffFilter{
		UserID: sub.UserID,
		From:   sub.StartDate,
		To:     sub.EndDate,
	})
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Status == generic.StatusDenied {
			continue
		}
		return &generic.StateConflictError{
			Kind: "time_off_request", ID: e.ID, Status: string(e.Status),
			Action: "submit", Err: ErrOverlappingRequest,
		}
	}
	return nil
}

// =============================================================================
// DECIDE
// =============================================================================

type Decision struct {
	RequestID  string
	Decision   generic.Decision
	ApproverID string
	Notes      string
	// Override approves even when the balance does not cover the request.
	Override bool
}

// Decide approves or denies a pending request. Concurrent approvals for the
// same employee are serialized, so at most one of two requests competing for
// the last days of a balance is approved.
func (s *Service) Decide(ctx context.Context, d Decision) (workforce.TimeOffRequest, error) {
	logger := logging.Service(ctx, s.logger, "timeoff", "decide",
		"request_id", d.RequestID, "decision", string(d.Decision))

	verr := &generic.ValidationError{}
	if d.RequestID == "" {
		verr.Add("request_id", "required")
	}
	if d.ApproverID == "" {
		verr.Add("approver_id", "required")
	}
	if !d.Decision.Valid() {
		verr.Add("decision", "must be approve or deny")
	}
	if err := verr.Err(); err != nil {
		return workforce.TimeOffRequest{}, err
	}

	now := s.clock.Now()
	var req workforce.TimeOffRequest
	err := generic.Retry(ctx, "timeoff.decide", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			current, err := tx.GetTimeOffRequest(ctx, d.RequestID)
			if err != nil {
				return err
			}
			if err := tx.LockEmployee(ctx, current.UserID); err != nil {
				return err
			}
			if current, err = tx.GetTimeOffRequest(ctx, d.RequestID); err != nil {
				return err
			}

			wf := generic.Workflow[*workforce.TimeOffRequest]{
				OnApprove: func(ctx context.Context, r *workforce.TimeOffRequest) error {
					if !d.Override {
						bal, err := computeBalance(ctx, tx, r.UserID, r.Type, r.StartDate)
						if err != nil {
							return err
						}
						if !bal.Covers(r.DaysRequested) {
							return bal.Shortfall(r.DaysRequested)
						}
					}
					r.ApprovedAt = &now
					r.ApprovedBy = d.ApproverID
					return nil
				},
			}
			if err := wf.Decide(ctx, &current, d.Decision); err != nil {
				return err
			}
			current.DecidedBy = d.ApproverID
			current.DecidedAt = &now
			current.ApprovalNotes = d.Notes
			if err := tx.UpdateTimeOffRequest(ctx, current); err != nil {
				return err
			}
			req = current
			return nil
		})
	})
	if err != nil {
		logger.Info("time-off decision rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.TimeOffRequest{}, err
	}
	logger.Info("time-off decided", "status", string(req.Status), "override", d.Override)
	return req, nil
}

// =============================================================================
// BALANCES & ADJUSTMENTS
// =============================================================================

// Balance derives the user's balance for t in the window containing asOf.
func (s *Service) Balance(ctx context.Context, userID string, t workforce.TimeOffType, asOf time.Time) (Balance, error) {
	if !t.Valid() {
		return Balance{}, generic.NewValidationError("request_type", "must be PTO or UTO")
	}
	return generic.RetryValue(ctx, "timeoff.balance", func(ctx context.Context) (Balance, error) {
		return computeBalance(ctx, s.store, userID, t, asOf)
	})
}

// Balances returns the PTO and UTO balances at asOf.
func (s *Service) Balances(ctx context.Context, userID string, asOf time.Time) ([]Balance, error) {
	out := make([]Balance, 0, 2)
	for _, t := range []workforce.TimeOffType{workforce.TimeOffPTO, workforce.TimeOffUTO} {
		b, err := s.Balance(ctx, userID, t, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Adjust records a manual balance change. Replaying an idempotency key
// returns the adjustment stored under it.
func (s *Service) Adjust(ctx context.Context, adj workforce.BalanceAdjustment) (workforce.BalanceAdjustment, error) {
	logger := logging.Service(ctx, s.logger, "timeoff", "adjust",
		"user_id", adj.UserID, "request_type", string(adj.Type))

	verr := &generic.ValidationError{}
	if adj.UserID == "" {
		verr.Add("user_id", "required")
	}
	if !adj.Type.Valid() {
		verr.Add("request_type", "must be PTO or UTO")
	}
	if adj.DeltaDays.IsZero() {
		verr.Add("delta_days", "must not be zero")
	}
	if adj.Reason == "" {
		verr.Add("reason", "required")
	}
	if adj.CreatedBy == "" {
		verr.Add("created_by", "required")
	}
	if err := verr.Err(); err != nil {
		return workforce.BalanceAdjustment{}, err
	}

	now := s.clock.Now()
	if adj.ID == "" {
		adj.ID = workforce.NewID()
	}
	if adj.IdempotencyKey == "" {
		adj.IdempotencyKey = adj.ID
	}
	if adj.EffectiveDate.IsZero() {
		adj.EffectiveDate = generic.DateOf(now, s.cfg.Location)
	}
	adj.EffectiveDate = generic.DateOf(adj.EffectiveDate, time.UTC)
	adj.CreatedAt = now

	result := adj
	err := generic.Retry(ctx, "timeoff.adjust", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, adj.UserID); err != nil {
				return err
			}
			existing, err := tx.ListAdjustments(ctx, adj.UserID, adj.Type)
			if err != nil {
				return err
			}
			for _, e := range existing {
				if e.IdempotencyKey == adj.IdempotencyKey {
					result = e
					return nil
				}
			}
			result = adj
			return tx.AppendAdjustment(ctx, adj)
		})
	})
	if err != nil {
		logger.Info("adjustment rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.BalanceAdjustment{}, err
	}
	logger.Info("balance adjusted", "adjustment_id", result.ID, "delta_days", result.DeltaDays.String())
	return result, nil
}

func (s *Service) Adjustments(ctx context.Context, userID string, t workforce.TimeOffType) ([]workforce.BalanceAdjustment, error) {
	return generic.RetryValue(ctx, "timeoff.adjustments", func(ctx context.Context) ([]workforce.BalanceAdjustment, error) {
		return s.store.ListAdjustments(ctx, userID, t)
	})
}

// =============================================================================
// RULES
// =============================================================================

// SaveRule validates and stores a rule, replacing one with the same ID.
func (s *Service) SaveRule(ctx context.Context, rule workforce.TimeOffRule) error {
	logger := logging.Service(ctx, s.logger, "timeoff", "save_rule", "rule_id", rule.ID)
	if err := ValidateRule(rule); err != nil {
		logger.Info("rule rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return err
	}
	err := generic.Retry(ctx, "timeoff.save_rule", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			return tx.SaveTimeOffRule(ctx, rule)
		})
	})
	if err != nil {
		logger.Warn("rule save failed", "error_kind", generic.ErrorKind(err), "error", err)
		return err
	}
	logger.Info("rule saved", "request_type", string(rule.Type))
	return nil
}

// EnsureDefaultRules stores the built-in rules when they are missing.
func (s *Service) EnsureDefaultRules(ctx context.Context) error {
	for _, rule := range []workforce.TimeOffRule{DefaultPTORule(), DefaultUTORule()} {
		_, err := s.Rule(ctx, rule.ID)
		if err == nil {
			continue
		}
		if !generic.IsNotFound(err) {
			return err
		}
		if err := s.SaveRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Rule(ctx context.Context, id string) (workforce.TimeOffRule, error) {
	return generic.RetryValue(ctx, "timeoff.rule", func(ctx context.Context) (workforce.TimeOffRule, error) {
		return s.store.GetTimeOffRule(ctx, id)
	})
}

func (s *Service) Rules(ctx context.Context) ([]workforce.TimeOffRule, error) {
	return generic.RetryValue(ctx, "timeoff.rules", func(ctx context.Context) ([]workforce.TimeOffRule, error) {
		return s.store.ListTimeOffRules(ctx)
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (workforce.TimeOffRequest, error) {
	return generic.RetryValue(ctx, "timeoff.get", func(ctx context.Context) (workforce.TimeOffRequest, error) {
		return s.store.GetTimeOffRequest(ctx, id)
	})
}

// Pending lists requests awaiting a decision, oldest first.
func (s *Service) Pending(ctx context.Context) ([]workforce.TimeOffRequest, error) {
	return s.List(ctx, workforce.TimeOffFilter{Status: string(generic.StatusPending)})
}

func (s *Service) ForUser(ctx context.Context, userID string) ([]workforce.TimeOffRequest, error) {
	return s.List(ctx, workforce.TimeOffFilter{UserID: userID})
}

func (s *Service) List(ctx context.Context, f workforce.TimeOffFilter) ([]workforce.TimeOffRequest, error) {
	return generic.RetryValue(ctx, "timeoff.list", func(ctx context.Context) ([]workforce.TimeOffRequest, error) {
		return s.store.ListTimeOffRequests(ctx, f)
	})
}
