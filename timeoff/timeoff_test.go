/*
timeoff_test.go - Tests for time-off requests and derived balances

Tests for:
- Entitlement windows, waiting periods and tenure tiers
- Submission rules (working days, UTO cap, overlaps, balance)
- Approval under the employee lock, including concurrent approvals
- Idempotent balance adjustments
*/
package timeoff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/store/memory"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
	"github.com/warp/timeclock-engine/workforce/workforcetest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const tightRuleID = "pto-two-days"

// tightRule grants 2 PTO days per calendar year with no waiting period.
func tightRule() workforce.TimeOffRule {
	return workforce.TimeOffRule{
		ID:          tightRuleID,
		Name:        "Two days",
		Type:        workforce.TimeOffPTO,
		Days:        decimal.NewFromInt(2),
		ResetPeriod: 1,
		ResetUnit:   generic.UnitYear,
		Anchor:      workforce.AnchorCalendar,
	}
}

func newTestTimeOff(t *testing.T) *timeoff.Service {
	t.Helper()
	store := memory.New()
	tight := workforcetest.Employee("tight")
	tight.PTORuleID = tightRuleID
	workforcetest.Seed(t, store, workforcetest.Employee("u1"), tight)

	clk := workforcetest.NewClock(workforcetest.At(workforcetest.Monday, 9, 0))
	svc := timeoff.NewService(store, timeoff.Config{}, clk.Now, workforcetest.Logger())
	require.NoError(t, svc.SaveRule(context.Background(), tightRule()))
	return svc
}

// day returns the date n days after the test Monday.
func day(n int) time.Time { return workforcetest.Monday.AddDate(0, 0, n) }

func days(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func submit(t *testing.T, svc *timeoff.Service, userID string, from, to int, n string) workforce.TimeOffRequest {
	t.Helper()
	req, err := svc.Submit(context.Background(), timeoff.Submission{
		UserID: userID, Type: workforce.TimeOffPTO, StartDate: day(from), EndDate: day(to), DaysRequested: days(n),
	})
	require.NoError(t, err)
	return req
}

func approve(svc *timeoff.Service, id string) (workforce.TimeOffRequest, error) {
	return svc.Decide(context.Background(), timeoff.Decision{RequestID: id, Decision: generic.Approve, ApproverID: "mgr"})
}

// =============================================================================
// ENTITLEMENT
// =============================================================================

func TestEntitlementAt_DefaultPTOTiers(t *testing.T) {
	rule := timeoff.DefaultPTORule()
	emp := workforcetest.Employee("u1") // hired 2024-01-08

	tests := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"waiting period", generic.Date(2024, time.February, 1), "0"},
		{"first year", generic.Date(2024, time.May, 1), "5"},
		{"second year", generic.Date(2025, time.March, 3), "10"},
		{"before third anniversary", generic.Date(2027, time.January, 7), "10"},
		{"fourth year", generic.Date(2027, time.March, 1), "15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent := timeoff.EntitlementAt(rule, emp, tt.asOf)
			assert.Equal(t, tt.want, ent.Days.String())
		})
	}

	ent := timeoff.EntitlementAt(rule, emp, generic.Date(2025, time.March, 3))
	assert.Equal(t, generic.Date(2025, time.January, 8), ent.Window.Start)
	assert.Equal(t, generic.Date(2026, time.January, 7), ent.Window.End)
	assert.Equal(t, generic.Date(2024, time.April, 7), ent.EligibleFrom)
}

func TestEntitlementAt_QuarterlyUTO(t *testing.T) {
	ent := timeoff.EntitlementAt(timeoff.DefaultUTORule(), workforcetest.Employee("u1"), generic.Date(2025, time.May, 20))

	assert.Equal(t, "3", ent.Days.String())
	assert.Equal(t, generic.Date(2025, time.April, 1), ent.Window.Start)
	assert.Equal(t, generic.Date(2025, time.June, 30), ent.Window.End)
}

func TestValidateRule(t *testing.T) {
	assert.NoError(t, timeoff.ValidateRule(timeoff.DefaultPTORule()))
	assert.NoError(t, timeoff.ValidateRule(timeoff.DefaultUTORule()))

	err := timeoff.ValidateRule(workforce.TimeOffRule{Days: decimal.NewFromInt(-1)})
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"id", "name", "request_type", "days", "reset_period", "reset_unit", "anchor"} {
		assert.Contains(t, verr.FieldErrors, field)
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_Validation(t *testing.T) {
	svc := newTestTimeOff(t)
	ctx := context.Background()

	tests := []struct {
		name string
		sub  timeoff.Submission
		want string
	}{
		{"end before start", timeoff.Submission{UserID: "u1", Type: workforce.TimeOffPTO, StartDate: day(2), EndDate: day(1), DaysRequested: days("1")}, "end_date"},
		{"zero days", timeoff.Submission{UserID: "u1", Type: workforce.TimeOffPTO, StartDate: day(0), EndDate: day(0)}, "days_requested"},
		{"unknown type", timeoff.Submission{UserID: "u1", Type: "SICK", StartDate: day(0), EndDate: day(0), DaysRequested: days("1")}, "request_type"},
		{"days mismatch", timeoff.Submission{UserID: "u1", Type: workforce.TimeOffPTO, StartDate: day(0), EndDate: day(4), DaysRequested: days("3")}, "5 scheduled working day"},
		{"weekend only", timeoff.Submission{UserID: "u1", Type: workforce.TimeOffPTO, StartDate: day(5), EndDate: day(6), DaysRequested: days("2")}, "no scheduled working days"},
		{"half day over two days", timeoff.Submission{UserID: "u1", Type: workforce.TimeOffPTO, StartDate: day(0), EndDate: day(1), DaysRequested: days("0.5")}, "days_requested"},
		{"UTO over cap", timeoff.Submission{UserID: "u1", Type: workforce.TimeOffUTO, StartDate: day(0), EndDate: day(3), DaysRequested: days("4")}, "limited to 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.sub)
			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubmit_WorkingDaysSpanWeekend(t *testing.T) {
	// Friday to Monday is two working days.
	svc := newTestTimeOff(t)

	req := submit(t, svc, "u1", 4, 7, "2")

	assert.Equal(t, generic.StatusPending, req.Status)
	assert.True(t, req.DaysRequested.Equal(days("2")))
}

func TestSubmit_HalfDay(t *testing.T) {
	svc := newTestTimeOff(t)

	req := submit(t, svc, "u1", 1, 1, "0.5")

	assert.Equal(t, "0.5", req.DaysRequested.String())
}

func TestSubmit_OverlapConflicts(t *testing.T) {
	svc := newTestTimeOff(t)
	ctx := context.Background()
	first := submit(t, svc, "u1", 0, 1, "2")

	_, err := svc.Submit(ctx, timeoff.Submission{
		UserID: "u1", Type: workforce.TimeOffUTO, StartDate: day(1), EndDate: day(2), DaysRequested: days("2"),
	})
	assert.ErrorIs(t, err, timeoff.ErrOverlappingRequest)
	assert.Equal(t, "state_conflict", generic.ErrorKind(err))

	// A denied request frees its dates.
	_, err = svc.Decide(ctx, timeoff.Decision{RequestID: first.ID, Decision: generic.Deny, ApproverID: "mgr"})
	require.NoError(t, err)
	submit(t, svc, "u1", 1, 2, "2")
}

// =============================================================================
// BALANCE
// =============================================================================

func TestApprovalConsumesBalance(t *testing.T) {
	// GIVEN: A rule granting 2 days and an approved 2-day request
	// WHEN: A further 1-day request is submitted
	// THEN: Available is 0 and the submission fails with insufficient balance

	svc := newTestTimeOff(t)
	ctx := context.Background()
	req := submit(t, svc, "tight", 0, 1, "2")

	bal, err := svc.Balance(ctx, "tight", workforce.TimeOffPTO, day(0))
	require.NoError(t, err)
	assert.Equal(t, "2", bal.Available.String(), "pending requests do not reduce the balance")
	assert.Equal(t, "2", bal.Pending.String())

	approved, err := approve(svc, req.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, "mgr", approved.ApprovedBy)

	bal, err = svc.Balance(ctx, "tight", workforce.TimeOffPTO, day(0))
	require.NoError(t, err)
	assert.Equal(t, "0", bal.Available.String())
	assert.Equal(t, "2", bal.Used.String())

	_, err = svc.Submit(ctx, timeoff.Submission{
		UserID: "tight", Type: workforce.TimeOffPTO, StartDate: day(2), EndDate: day(2), DaysRequested: days("1"),
	})
	var ib *generic.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, "1", ib.Shortfall.Value.String())
}

func TestDecide_ConcurrentApprovalsDoNotOverdraw(t *testing.T) {
	// GIVEN: Two pending 2-day requests against a 2-day balance
	// WHEN: Both are approved at the same time
	// THEN: Exactly one is approved; the other fails and stays pending

	svc := newTestTimeOff(t)
	ctx := context.Background()
	a := submit(t, svc, "tight", 0, 1, "2")
	b := submit(t, svc, "tight", 7, 8, "2")

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		approved     int
		insufficient int
	)
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := approve(svc, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, generic.ErrInsufficientBalance):
				insufficient++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, 1, insufficient)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	bal, err := svc.Balance(ctx, "tight", workforce.TimeOffPTO, day(0))
	require.NoError(t, err)
	assert.Equal(t, "0", bal.Available.String())
}

func TestDecide_Override(t *testing.T) {
	svc := newTestTimeOff(t)
	ctx := context.Background()
	a := submit(t, svc, "tight", 0, 1, "2")
	b := submit(t, svc, "tight", 7, 8, "2")
	_, err := approve(svc, a.ID)
	require.NoError(t, err)

	_, err = approve(svc, b.ID)
	require.ErrorIs(t, err, generic.ErrInsufficientBalance)

	got, err := svc.Decide(ctx, timeoff.Decision{
		RequestID: b.ID, Decision: generic.Approve, ApproverID: "mgr", Notes: "carry-over agreed", Override: true,
	})
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, got.Status)
	assert.Equal(t, "carry-over agreed", got.ApprovalNotes)

	bal, err := svc.Balance(ctx, "tight", workforce.TimeOffPTO, day(0))
	require.NoError(t, err)
	assert.Equal(t, "-2", bal.Available.String())

	_, err = approve(svc, b.ID)
	assert.ErrorIs(t, err, generic.ErrAlreadyDecided)
}

func TestBalances_DefaultRules(t *testing.T) {
	svc := newTestTimeOff(t)

	balances, err := svc.Balances(context.Background(), "u1", day(0))

	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, workforce.TimeOffPTO, balances[0].Type)
	assert.Equal(t, timeoff.DefaultPTORuleID, balances[0].RuleID)
	assert.Equal(t, "10", balances[0].Available.String())
	assert.Equal(t, workforce.TimeOffUTO, balances[1].Type)
	assert.Equal(t, "3", balances[1].Available.String())
}

// =============================================================================
// ADJUSTMENTS & RULES
// =============================================================================

func TestAdjust_Idempotent(t *testing.T) {
	svc := newTestTimeOff(t)
	ctx := context.Background()
	adj := workforce.BalanceAdjustment{
		UserID: "tight", Type: workforce.TimeOffPTO, DeltaDays: days("1.5"),
		Reason: "carry-over", CreatedBy: "hr", IdempotencyKey: "carry-2025",
	}

	first, err := svc.Adjust(ctx, adj)
	require.NoError(t, err)
	assert.Equal(t, workforcetest.Monday, first.EffectiveDate)

	second, err := svc.Adjust(ctx, adj)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := svc.Adjustments(ctx, "tight", workforce.TimeOffPTO)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	bal, err := svc.Balance(ctx, "tight", workforce.TimeOffPTO, day(0))
	require.NoError(t, err)
	assert.Equal(t, "3.5", bal.Available.String())
}

func TestAdjust_Validation(t *testing.T) {
	svc := newTestTimeOff(t)

	_, err := svc.Adjust(context.Background(), workforce.BalanceAdjustment{UserID: "u1", Type: workforce.TimeOffPTO})

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "delta_days")
	assert.Contains(t, verr.FieldErrors, "reason")
	assert.Contains(t, verr.FieldErrors, "created_by")
}

func TestEnsureDefaultRules(t *testing.T) {
	svc := newTestTimeOff(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaultRules(ctx))
	require.NoError(t, svc.EnsureDefaultRules(ctx))

	rules, err := svc.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	rule, err := svc.Rule(ctx, timeoff.DefaultUTORuleID)
	require.NoError(t, err)
	assert.Equal(t, workforce.AnchorCalendar, rule.Anchor)
}
