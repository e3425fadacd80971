package timeoff

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// BALANCE - Derived, never stored
// =============================================================================

// Balance is an employee's position for one request type in the rule window
// containing AsOf.
//
//	Available = Entitlement + Adjustments - Used
//
// Used sums approved requests whose start date lies in the window. Pending
// is informational and does not reduce Available.
type Balance struct {
	UserID      string
	Type        workforce.TimeOffType
	RuleID      string
	AsOf        time.Time
	Window      generic.Period
	Entitlement decimal.Decimal
	Adjustments decimal.Decimal
	Used        decimal.Decimal
	Pending     decimal.Decimal
	Available   decimal.Decimal
}

// Covers reports whether days can be taken from the balance.
func (b Balance) Covers(days decimal.Decimal) bool {
	return !days.GreaterThan(b.Available)
}

// Shortfall builds the error returned when days exceed the balance.
func (b Balance) Shortfall(days decimal.Decimal) *generic.InsufficientBalanceError {
	return &generic.InsufficientBalanceError{
		UserID:    b.UserID,
		Type:      string(b.Type),
		Available: generic.Days(b.Available),
		Requested: generic.Days(days),
		Shortfall: generic.Days(days.Sub(b.Available)),
	}
}

// ruleFor resolves the employee's rule for t, falling back to the default.
func ruleFor(ctx context.Context, r workforce.Reader, emp workforce.Employee, t workforce.TimeOffType) (workforce.TimeOffRule, error) {
	id := emp.RuleID(t)
	if id == "" {
		return DefaultRule(t), nil
	}
	rule, err := r.GetTimeOffRule(ctx, id)
	if generic.IsNotFound(err) && (id == DefaultPTORuleID || id == DefaultUTORuleID) {
		return DefaultRule(t), nil
	}
	return rule, err
}

// computeBalance derives the balance from rules, adjustments and requests
// visible through r. Inside a transaction r is the Tx, so the figures see
// the transaction's own writes.
func computeBalance(ctx context.Context, r workforce.Reader, userID string, t workforce.TimeOffType, asOf time.Time) (Balance, error) {
	emp, err := r.GetEmployee(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	rule, err := ruleFor(ctx, r, emp, t)
	if err != nil {
		return Balance{}, err
	}
	ent := EntitlementAt(rule, emp, asOf)

	b := Balance{
		UserID:      userID,
		Type:        t,
		RuleID:      rule.ID,
		AsOf:        generic.DateOf(asOf, time.UTC),
		Window:      ent.Window,
		Entitlement: ent.Days,
		Adjustments: decimal.Zero,
		Used:        decimal.Zero,
		Pending:     decimal.Zero,
	}

	adjustments, err := r.ListAdjustments(ctx, userID, t)
	if err != nil {
		return Balance{}, err
	}
	for _, a := range adjustments {
		if ent.Window.Contains(a.EffectiveDate) {
			b.Adjustments = b.Adjustments.Add(a.DeltaDays)
		}
	}

	requests, err := r.ListTimeOffRequests(ctx, workforce.TimeOffFilter{UserID: userID, Type: t})
	if err != nil {
		return Balance{}, err
	}
	for _, req := range requests {
		if !ent.Window.Contains(req.StartDate) {
			continue
		}
		switch req.Status {
		case generic.StatusApproved:
			b.Used = b.Used.Add(req.DaysRequested)
		case generic.StatusPending:
			b.Pending = b.Pending.Add(req.DaysRequested)
		}
	}

	b.Available = b.Entitlement.Add(b.Adjustments).Sub(b.Used)
	return b, nil
}
