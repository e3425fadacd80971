package sqlstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/store/sqlstore"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
	"github.com/warp/timeclock-engine/workforce/workforcetest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// forEachStore runs fn against an in-memory SQLite database and, when
// TIMECLOCK_TEST_POSTGRES_DSN is set, against PostgreSQL.
func forEachStore(t *testing.T, fn func(t *testing.T, store *sqlstore.Store)) {
	t.Run("sqlite", func(t *testing.T) {
		store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})

	dsn := os.Getenv("TIMECLOCK_TEST_POSTGRES_DSN")
	t.Run("postgres", func(t *testing.T) {
		if dsn == "" {
			t.Skip("TIMECLOCK_TEST_POSTGRES_DSN not set")
		}
		store, err := sqlstore.Open(context.Background(), sqlstore.Postgres, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})
}

// forEachFileStore is forEachStore with SQLite on a file, so concurrent
// transactions go through the driver's locking rather than a shared
// in-memory database.
func forEachFileStore(t *testing.T, fn func(t *testing.T, store *sqlstore.Store)) {
	t.Run("sqlite-file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "timeclock.db")
		store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, path)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})

	dsn := os.Getenv("TIMECLOCK_TEST_POSTGRES_DSN")
	t.Run("postgres", func(t *testing.T) {
		if dsn == "" {
			t.Skip("TIMECLOCK_TEST_POSTGRES_DSN not set")
		}
		store, err := sqlstore.Open(context.Background(), sqlstore.Postgres, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})
}

// seedEmployee stores a fresh employee with the standard week and returns its id.
func seedEmployee(t *testing.T, store *sqlstore.Store) string {
	t.Helper()
	id := workforce.NewID()
	workforcetest.Seed(t, store, workforcetest.Employee(id))
	return id
}

// =============================================================================
// TESTS
// =============================================================================

func TestParseDialect(t *testing.T) {
	d, err := sqlstore.ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.Postgres, d)

	d, err = sqlstore.ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.SQLite, d)

	_, err = sqlstore.ParseDialect("mysql")
	assert.Error(t, err)
}

func TestEmployeeAndSchedule_RoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		id := seedEmployee(t, store)

		e, err := store.GetEmployee(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Test", e.FirstName)
		require.NotNil(t, e.HourlyRate)
		assert.True(t, e.HourlyRate.Equal(decimal.NewFromInt(20)))
		assert.True(t, e.StartDate.Equal(workforcetest.HireDate))

		days, err := store.ListShiftDays(ctx, id)
		require.NoError(t, err)
		require.Len(t, days, 7)

		monday, err := store.GetShiftDay(ctx, id, time.Monday)
		require.NoError(t, err)
		assert.True(t, monday.IsWorkingDay)
		require.NotNil(t, monday.Morning)
		assert.Equal(t, generic.NewClockTime(9, 0), monday.Morning.Start)
		require.NotNil(t, monday.Afternoon)
		assert.Equal(t, generic.NewClockTime(18, 0), monday.Afternoon.End)

		sunday, err := store.GetShiftDay(ctx, id, time.Sunday)
		require.NoError(t, err)
		assert.False(t, sunday.IsWorkingDay)
		assert.Nil(t, sunday.Morning)

		_, err = store.GetEmployee(ctx, workforce.NewID())
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
}

func TestTimeEntries_ActiveUniquePerUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		id := seedEmployee(t, store)
		start := workforcetest.At(workforcetest.Monday, 9, 5)
		entry := workforce.TimeEntry{
			ID: workforce.NewID(), UserID: id, StartTime: start,
			Status: workforce.EntryActive, Source: workforce.SourceClock, CreatedAt: start, UpdatedAt: start,
		}

		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
			return tx.InsertTimeEntry(ctx, entry)
		})

		second := entry
		second.ID = workforce.NewID()
		err := store.WithTx(ctx, func(tx workforce.Tx) error { return tx.InsertTimeEntry(ctx, second) })
		assert.ErrorIs(t, err, generic.ErrAlreadyClockedIn)

		active, err := store.ActiveTimeEntry(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, active.ID)
		assert.True(t, active.StartTime.Equal(start))

		entry.Close(workforcetest.At(workforcetest.Monday, 17, 30), workforce.EntryClosed)
		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
			return tx.UpdateTimeEntry(ctx, entry)
		})

		got, err := store.GetTimeEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, workforce.EntryClosed, got.Status)
		require.NotNil(t, got.TotalHours)
		assert.Equal(t, "8.42", got.TotalHours.StringFixed(2))

		_, err = store.ActiveTimeEntry(ctx, id)
		assert.ErrorIs(t, err, generic.ErrNotFound)

		listed, err := store.ListTimeEntries(ctx, workforce.EntryFilter{
			UserID: id, StartFrom: workforcetest.Monday, StartTo: workforcetest.Monday.AddDate(0, 0, 1),
		})
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})
}

func TestEarlyAttempts_PendingUnique(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		id := seedEmployee(t, store)
		now := workforcetest.At(workforcetest.Monday, 8, 30)
		attempt := workforce.EarlyClockAttempt{
			ID: workforce.NewID(), UserID: id, ScheduledStart: workforcetest.At(workforcetest.Monday, 9, 0),
			AttemptedTime: now, Status: generic.StatusPending, CreatedAt: now,
		}

		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
			return tx.InsertEarlyAttempt(ctx, attempt)
		})

		dup := attempt
		dup.ID = workforce.NewID()
		err := store.WithTx(ctx, func(tx workforce.Tx) error { return tx.InsertEarlyAttempt(ctx, dup) })
		assert.ErrorIs(t, err, generic.ErrDuplicateAttempt)

		pending, err := store.ListEarlyAttempts(ctx, workforce.AttemptFilter{UserID: id, Status: string(generic.StatusPending)})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Nil(t, pending[0].ActualClockIn)
	})
}

func TestTimeOff_RulesRequestsAdjustments(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		id := seedEmployee(t, store)
		ruleID := workforce.NewID()
		rule := workforce.TimeOffRule{
			ID: ruleID, Name: "PTO", Type: workforce.TimeOffPTO, Days: decimal.NewFromInt(5),
			ResetPeriod: 1, ResetUnit: generic.UnitYear, Anchor: workforce.AnchorHireDate,
			NotBefore: 90, NotBeforeUnit: generic.UnitDay,
			Tiers: []workforce.Tier{{AfterYears: 1, Days: decimal.NewFromInt(10)}},
		}
		request := workforce.TimeOffRequest{
			ID: workforce.NewID(), UserID: id, Type: workforce.TimeOffPTO,
			StartDate: generic.Date(2025, time.March, 5), EndDate: generic.Date(2025, time.March, 6),
			DaysRequested: decimal.NewFromInt(2), Status: generic.StatusPending, CreatedAt: workforcetest.Monday,
		}
		adj := workforce.BalanceAdjustment{
			ID: workforce.NewID(), UserID: id, Type: workforce.TimeOffPTO, EffectiveDate: workforcetest.Monday,
			DeltaDays: decimal.RequireFromString("1.5"), IdempotencyKey: workforce.NewID(), CreatedAt: workforcetest.Monday,
		}

		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
			if err := tx.SaveTimeOffRule(ctx, rule); err != nil {
				return err
			}
			if err := tx.InsertTimeOffRequest(ctx, request); err != nil {
				return err
			}
			return tx.AppendAdjustment(ctx, adj)
		})

		gotRule, err := store.GetTimeOffRule(ctx, ruleID)
		require.NoError(t, err)
		assert.Equal(t, workforce.AnchorHireDate, gotRule.Anchor)
		require.Len(t, gotRule.Tiers, 1)
		assert.True(t, gotRule.Tiers[0].Days.Equal(decimal.NewFromInt(10)))

		requests, err := store.ListTimeOffRequests(ctx, workforce.TimeOffFilter{
			UserID: id, From: generic.Date(2025, time.March, 6), To: generic.Date(2025, time.March, 31),
		})
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.True(t, requests[0].DaysRequested.Equal(decimal.NewFromInt(2)))
		assert.True(t, requests[0].StartDate.Equal(request.StartDate))

		dup := adj
		dup.ID = workforce.NewID()
		err = store.WithTx(ctx, func(tx workforce.Tx) error { return tx.AppendAdjustment(ctx, dup) })
		assert.ErrorIs(t, err, workforce.ErrDuplicateIdempotencyKey)

		adjustments, err := store.ListAdjustments(ctx, id, workforce.TimeOffPTO)
		require.NoError(t, err)
		require.Len(t, adjustments, 1)
		assert.Equal(t, "1.5", adjustments[0].DeltaDays.String())
	})
}

func TestPayroll_UpsertKeepsIdentity(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		id := seedEmployee(t, store)
		created := workforcetest.At(workforcetest.Monday, 12, 0)
		period := workforce.PayPeriod{
			ID: workforce.NewID(), StartDate: workforcetest.Monday, EndDate: workforcetest.Monday.AddDate(0, 0, 6),
			PeriodType: generic.PeriodWeekly, Status: workforce.PeriodClosed, CreatedAt: created, UpdatedAt: created,
		}
		first := workforce.PayrollCalculation{
			ID: workforce.NewID(), PayPeriodID: period.ID, UserID: id,
			RegularHours: decimal.NewFromInt(40), RegularPay: decimal.NewFromInt(800),
			TotalGrossPay: decimal.NewFromInt(800), HourlyRate: decimal.NewFromInt(20),
			CreatedAt: created, UpdatedAt: created,
		}
		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
			if err := tx.SavePayPeriod(ctx, period); err != nil {
				return err
			}
			return tx.UpsertPayroll(ctx, first)
		})

		second := first
		second.ID = workforce.NewID()
		second.OvertimeHours = decimal.NewFromInt(5)
		second.UpdatedAt = created.Add(time.Hour)
		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
			return tx.UpsertPayroll(ctx, second)
		})

		rows, err := store.ListPayroll(ctx, period.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)
		assert.True(t, rows[0].CreatedAt.Equal(created))
		assert.True(t, rows[0].UpdatedAt.Equal(second.UpdatedAt))
		assert.True(t, rows[0].OvertimeHours.Equal(decimal.NewFromInt(5)))
	})
}

func TestHolidays(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		name := "Holiday " + workforce.NewID()
		h := workforce.Holiday{ID: workforce.NewID(), Date: generic.Date(2031, time.July, 4), Name: name, CreatedAt: workforcetest.Monday}

		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error { return tx.SaveHoliday(ctx, h) })

		dup := h
		dup.ID = workforce.NewID()
		err := store.WithTx(ctx, func(tx workforce.Tx) error { return tx.SaveHoliday(ctx, dup) })
		assert.ErrorIs(t, err, workforce.ErrDuplicateHoliday)

		got, err := store.ListHolidays(ctx, generic.Date(2031, time.July, 1), generic.Date(2031, time.July, 31))
		require.NoError(t, err)
		require.NotEmpty(t, got)
		found := false
		for _, g := range got {
			if g.ID == h.ID {
				found = true
				assert.True(t, g.Date.Equal(h.Date))
			}
		}
		assert.True(t, found)

		workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error { return tx.DeleteHoliday(ctx, h.ID) })
		err = store.WithTx(ctx, func(tx workforce.Tx) error { return tx.DeleteHoliday(ctx, h.ID) })
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
}

func TestWithTx_Rollback(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		id := workforce.NewID()

		err := store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.SaveEmployee(ctx, workforcetest.Employee(id)); err != nil {
				return err
			}
			return generic.ErrOverlappingEntry
		})
		assert.ErrorIs(t, err, generic.ErrOverlappingEntry)

		_, err = store.GetEmployee(ctx, id)
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
}

func TestTimeOff_ConcurrentApprovalsDoNotOverdraw(t *testing.T) {
	// GIVEN: Two pending 2-day PTO requests against a 2-day entitlement
	// WHEN: Two goroutines approve them at the same time
	// THEN: One approval succeeds and the other fails with ErrInsufficientBalance

	forEachFileStore(t, func(t *testing.T, store *sqlstore.Store) {
		ctx := context.Background()
		clk := workforcetest.NewClock(workforcetest.At(workforcetest.Monday, 9, 0))
		svc := timeoff.NewService(store, timeoff.Config{}, clk.Now, workforcetest.Logger())

		rule := workforce.TimeOffRule{
			ID:          workforce.NewID(),
			Name:        "Two days",
			Type:        workforce.TimeOffPTO,
			Days:        decimal.NewFromInt(2),
			ResetPeriod: 1,
			ResetUnit:   generic.UnitYear,
			Anchor:      workforce.AnchorCalendar,
		}
		require.NoError(t, svc.SaveRule(ctx, rule))
		emp := workforcetest.Employee(workforce.NewID())
		emp.PTORuleID = rule.ID
		workforcetest.Seed(t, store, emp)

		var ids []string
		for _, start := range []int{0, 7} {
			from := workforcetest.Monday.AddDate(0, 0, start)
			req, err := svc.Submit(ctx, timeoff.Submission{
				UserID: emp.ID, Type: workforce.TimeOffPTO,
				StartDate: from, EndDate: from.AddDate(0, 0, 1), DaysRequested: decimal.NewFromInt(2),
			})
			require.NoError(t, err)
			ids = append(ids, req.ID)
		}

		var (
			wg           sync.WaitGroup
			mu           sync.Mutex
			approved     int
			insufficient int
			unexpected   []error
		)
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := svc.Decide(ctx, timeoff.Decision{RequestID: id, Decision: generic.Approve, ApproverID: "mgr"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					approved++
				case errors.Is(err, generic.ErrInsufficientBalance):
					insufficient++
				default:
					unexpected = append(unexpected, err)
				}
			}(id)
		}
		wg.Wait()

		assert.Empty(t, unexpected)
		assert.Equal(t, 1, approved)
		assert.Equal(t, 1, insufficient)

		bal, err := svc.Balance(ctx, emp.ID, workforce.TimeOffPTO, workforcetest.Monday)
		require.NoError(t, err)
		assert.True(t, bal.Used.Equal(decimal.NewFromInt(2)), "used %s", bal.Used)
		assert.True(t, bal.Available.IsZero(), "available %s", bal.Available)
	})
}
