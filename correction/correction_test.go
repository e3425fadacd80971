package correction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/clock"
	"github.com/warp/timeclock-engine/correction"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/store/memory"
	"github.com/warp/timeclock-engine/workforce"
	"github.com/warp/timeclock-engine/workforce/workforcetest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	entries *clock.Service
	svc     *correction.Service
	monday  time.Time
}

func newTestCorrection(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	workforcetest.Seed(t, store, workforcetest.Employee("u1"), workforcetest.Employee("u2"))
	clk := workforcetest.NewClock(workforcetest.At(workforcetest.Monday, 18, 0))
	return &fixture{
		entries: clock.NewService(store, clock.Config{}, clk.Now, workforcetest.Logger()),
		svc:     correction.NewService(store, correction.Config{}, clk.Now, workforcetest.Logger()),
		monday:  workforcetest.Monday,
	}
}

// entry records a closed 09:05-17:30 entry on Monday.
func (f *fixture) entry(t *testing.T, userID string) workforce.TimeEntry {
	t.Helper()
	e, err := f.entries.RecordManual(context.Background(), clock.ManualEntry{
		UserID: userID,
		Start:  workforcetest.At(f.monday, 9, 5),
		End:    workforcetest.At(f.monday, 17, 30),
	})
	require.NoError(t, err)
	return e
}

func at(date time.Time, h, m int) *time.Time {
	v := workforcetest.At(date, h, m)
	return &v
}

// =============================================================================
// PROPOSE
// =============================================================================

func TestPropose_LeavesEntryUntouched(t *testing.T) {
	f := newTestCorrection(t)
	ctx := context.Background()
	e := f.entry(t, "u1")

	c, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: e.ID, RequestedStart: at(f.monday, 9, 0), Reason: "badge reader down",
	})

	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, c.Status)
	assert.True(t, c.OriginalStartTime.Equal(e.StartTime))
	assert.True(t, c.AutoApprovable)

	stored, err := f.entries.Entry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.42", stored.TotalHours.StringFixed(2))
}

func TestPropose_Validation(t *testing.T) {
	f := newTestCorrection(t)
	ctx := context.Background()
	e := f.entry(t, "u1")

	tests := []struct {
		name string
		p    correction.Proposal
		want error
	}{
		{"no bounds", correction.Proposal{UserID: "u1", TimeEntryID: e.ID, Reason: "x"}, generic.ErrValidation},
		{"no reason", correction.Proposal{UserID: "u1", TimeEntryID: e.ID, RequestedStart: at(f.monday, 9, 0)}, generic.ErrValidation},
		{
			"end before start",
			correction.Proposal{UserID: "u1", TimeEntryID: e.ID, RequestedStart: at(f.monday, 12, 0), RequestedEnd: at(f.monday, 11, 0), Reason: "x"},
			generic.ErrInvalidInterval,
		},
		{
			"start after current end",
			correction.Proposal{UserID: "u1", TimeEntryID: e.ID, RequestedStart: at(f.monday, 18, 0), Reason: "x"},
			generic.ErrInvalidInterval,
		},
		{"another user's entry", correction.Proposal{UserID: "u2", TimeEntryID: e.ID, RequestedStart: at(f.monday, 9, 0), Reason: "x"}, generic.ErrValidation},
		{"unknown entry", correction.Proposal{UserID: "u1", TimeEntryID: "missing", RequestedStart: at(f.monday, 9, 0), Reason: "x"}, generic.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Propose(ctx, tt.p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPropose_OnePendingPerEntry(t *testing.T) {
	f := newTestCorrection(t)
	ctx := context.Background()
	e := f.entry(t, "u1")
	p := correction.Proposal{UserID: "u1", TimeEntryID: e.ID, RequestedStart: at(f.monday, 9, 0), Reason: "late badge"}

	_, err := f.svc.Propose(ctx, p)
	require.NoError(t, err)

	_, err = f.svc.Propose(ctx, p)
	assert.ErrorIs(t, err, generic.ErrPendingCorrectionExists)
}

func TestPropose_LargeMoveNeedsManager(t *testing.T) {
	f := newTestCorrection(t)
	e := f.entry(t, "u1")

	c, err := f.svc.Propose(context.Background(), correction.Proposal{
		UserID: "u1", TimeEntryID: e.ID, RequestedEnd: at(f.monday, 19, 0), Reason: "stayed late",
	})

	require.NoError(t, err)
	assert.False(t, c.AutoApprovable)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestDecide_ApproveRecomputesHours(t *testing.T) {
	// GIVEN: A 09:05-17:30 entry and a correction moving the start to 09:00
	// WHEN: A manager approves
	// THEN: The entry spans 09:00-17:30 and totals 8.50 hours

	f := newTestCorrection(t)
	ctx := context.Background()
	e := f.entry(t, "u1")
	c, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: e.ID, RequestedStart: at(f.monday, 9, 0), Reason: "badge reader down",
	})
	require.NoError(t, err)

	decided, err := f.svc.Decide(ctx, correction.Decision{CorrectionID: c.ID, Decision: generic.Approve, ApproverID: "mgr"})
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, decided.Status)
	assert.Equal(t, "mgr", decided.DecidedBy)

	stored, err := f.entries.Entry(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartTime.Equal(workforcetest.At(f.monday, 9, 0)))
	assert.True(t, stored.EndTime.Equal(workforcetest.At(f.monday, 17, 30)))
	assert.Equal(t, "8.50", stored.TotalHours.StringFixed(2))

	_, err = f.svc.Decide(ctx, correction.Decision{CorrectionID: c.ID, Decision: generic.Deny, ApproverID: "mgr"})
	assert.ErrorIs(t, err, generic.ErrAlreadyDecided)
}

func TestDecide_DenyLeavesEntry(t *testing.T) {
	f := newTestCorrection(t)
	ctx := context.Background()
	e := f.entry(t, "u1")
	c, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: e.ID, RequestedEnd: at(f.monday, 18, 0), Reason: "stayed late",
	})
	require.NoError(t, err)

	decided, err := f.svc.Decide(ctx, correction.Decision{CorrectionID: c.ID, Decision: generic.Deny, ApproverID: "mgr"})
	require.NoError(t, err)
	assert.Equal(t, generic.StatusDenied, decided.Status)

	stored, err := f.entries.Entry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.42", stored.TotalHours.StringFixed(2))

	// A new correction may be proposed once the previous one is decided.
	_, err = f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: e.ID, RequestedEnd: at(f.monday, 17, 45), Reason: "stayed a bit",
	})
	assert.NoError(t, err)
}

func TestDecide_ClosesActiveEntry(t *testing.T) {
	f := newTestCorrection(t)
	ctx := context.Background()
	res, err := f.entries.ClockIn(ctx, clock.ClockInRequest{UserID: "u1", At: workforcetest.At(f.monday, 9, 0)})
	require.NoError(t, err)

	c, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: res.Entry.ID, RequestedEnd: at(f.monday, 13, 0), Reason: "forgot to clock out",
	})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, correction.Decision{CorrectionID: c.ID, Decision: generic.Approve, ApproverID: "mgr"})
	require.NoError(t, err)

	stored, err := f.entries.Entry(ctx, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, workforce.EntryClosed, stored.Status)
	assert.Equal(t, "4.00", stored.TotalHours.StringFixed(2))
}

func TestDecide_OverlapKeepsPending(t *testing.T) {
	f := newTestCorrection(t)
	ctx := context.Background()
	e := f.entry(t, "u1")
	_, err := f.entries.RecordManual(ctx, clock.ManualEntry{
		UserID: "u1", Start: workforcetest.At(f.monday, 18, 0), End: workforcetest.At(f.monday, 20, 0),
	})
	require.NoError(t, err)

	c, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: e.ID, RequestedEnd: at(f.monday, 19, 0), Reason: "stayed late",
	})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, correction.Decision{CorrectionID: c.ID, Decision: generic.Approve, ApproverID: "mgr"})
	assert.ErrorIs(t, err, generic.ErrOverlappingEntry)

	stored, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, stored.Status)
}

// =============================================================================
// AUTO APPROVE
// =============================================================================

func TestAutoApprove(t *testing.T) {
	// GIVEN: A small correction and a large one, both proposed on Monday
	// WHEN: AutoApprove runs on Monday and again on Tuesday
	// THEN: Nothing moves on Monday; on Tuesday only the small one is approved

	f := newTestCorrection(t)
	ctx := context.Background()
	small := f.entry(t, "u1")
	large := f.entry(t, "u2")

	smallC, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u1", TimeEntryID: small.ID, RequestedStart: at(f.monday, 9, 0), Reason: "badge",
	})
	require.NoError(t, err)
	largeC, err := f.svc.Propose(ctx, correction.Proposal{
		UserID: "u2", TimeEntryID: large.ID, RequestedStart: at(f.monday, 8, 0), Reason: "came early",
	})
	require.NoError(t, err)

	n, err := f.svc.AutoApprove(ctx, workforcetest.At(f.monday, 23, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.svc.AutoApprove(ctx, workforcetest.At(f.monday.AddDate(0, 0, 1), 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, smallC.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, got.Status)
	assert.Equal(t, workforce.SystemUser, got.DecidedBy)

	got, err = f.svc.Get(ctx, largeC.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, got.Status)

	pending, err := f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	mine, err := f.svc.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
