package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/store/memory"
	"github.com/warp/timeclock-engine/workforce"
	"github.com/warp/timeclock-engine/workforce/workforcetest"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A seeded store
	// WHEN: A transaction inserts an entry then fails
	// THEN: The entry is not visible afterwards

	ctx := context.Background()
	store := memory.New()
	workforcetest.Seed(t, store, workforcetest.Employee("u1"))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx workforce.Tx) error {
		if err := tx.InsertTimeEntry(ctx, workforce.TimeEntry{
			ID: "e1", UserID: "u1", StartTime: workforcetest.At(workforcetest.Monday, 9, 0), Status: workforce.EntryActive,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetTimeEntry(ctx, "e1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	workforcetest.Seed(t, store, workforcetest.Employee("u1"))

	disk := errors.New("disk")
	store.FailNext(disk)

	ran := false
	err := store.WithTx(ctx, func(tx workforce.Tx) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, disk)
	assert.False(t, ran)

	// Only the next transaction fails.
	require.NoError(t, store.WithTx(ctx, func(tx workforce.Tx) error { return nil }))
}

func TestLockEmployee_Unknown(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	err := store.WithTx(ctx, func(tx workforce.Tx) error { return tx.LockEmployee(ctx, "ghost") })

	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestInsertEarlyAttempt_OnePendingPerScheduledStart(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	workforcetest.Seed(t, store, workforcetest.Employee("u1"))
	start := workforcetest.At(workforcetest.Monday, 9, 0)

	workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
		return tx.InsertEarlyAttempt(ctx, workforce.EarlyClockAttempt{ID: "a1", UserID: "u1", ScheduledStart: start, Status: generic.StatusPending})
	})

	err := store.WithTx(ctx, func(tx workforce.Tx) error {
		return tx.InsertEarlyAttempt(ctx, workforce.EarlyClockAttempt{ID: "a2", UserID: "u1", ScheduledStart: start, Status: generic.StatusPending})
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateAttempt)

	// A decided attempt frees the slot.
	workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
		a, err := tx.GetEarlyAttempt(ctx, "a1")
		if err != nil {
			return err
		}
		a.Status = generic.StatusDenied
		if err := tx.UpdateEarlyAttempt(ctx, a); err != nil {
			return err
		}
		return tx.InsertEarlyAttempt(ctx, workforce.EarlyClockAttempt{ID: "a2", UserID: "u1", ScheduledStart: start, Status: generic.StatusPending})
	})

	pending, err := store.ListEarlyAttempts(ctx, workforce.AttemptFilter{Status: string(generic.StatusPending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a2", pending[0].ID)
}

func TestAppendAdjustment_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	adj := workforce.BalanceAdjustment{
		ID: "adj1", UserID: "u1", Type: workforce.TimeOffPTO, DeltaDays: decimal.NewFromInt(2), IdempotencyKey: "grant-1",
	}

	workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error { return tx.AppendAdjustment(ctx, adj) })

	adj.ID = "adj2"
	err := store.WithTx(ctx, func(tx workforce.Tx) error { return tx.AppendAdjustment(ctx, adj) })
	assert.ErrorIs(t, err, workforce.ErrDuplicateIdempotencyKey)

	adjustments, err := store.ListAdjustments(ctx, "u1", workforce.TimeOffPTO)
	require.NoError(t, err)
	assert.Len(t, adjustments, 1)
}

func TestUpsertPayroll_KeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	first := workforce.PayrollCalculation{
		ID: "p1", PayPeriodID: "pp1", UserID: "u1", RegularHours: decimal.NewFromInt(40),
		CreatedAt: workforcetest.Monday,
	}
	workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error { return tx.UpsertPayroll(ctx, first) })

	second := first
	second.ID = "p2"
	second.CreatedAt = workforcetest.Monday.AddDate(0, 0, 1)
	second.RegularHours = decimal.NewFromInt(38)
	workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error { return tx.UpsertPayroll(ctx, second) })

	got, err := store.GetPayroll(ctx, "pp1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, workforcetest.Monday, got.CreatedAt)
	assert.True(t, got.RegularHours.Equal(decimal.NewFromInt(38)))

	rows, err := store.ListPayroll(ctx, "pp1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
