package employee_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/employee"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/store/memory"
	"github.com/warp/timeclock-engine/timeoff"
	"github.com/warp/timeclock-engine/workforce"
	"github.com/warp/timeclock-engine/workforce/workforcetest"
)

func newTestEmployees(t *testing.T) (*employee.Service, *workforcetest.Clock) {
	t.Helper()
	store := memory.New()
	clk := workforcetest.NewClock(workforcetest.At(workforcetest.Monday, 9, 0))
	rules := timeoff.NewService(store, timeoff.Config{}, clk.Now, workforcetest.Logger())
	require.NoError(t, rules.EnsureDefaultRules(context.Background()))
	return employee.NewService(store, clk.Now, workforcetest.Logger()), clk
}

func TestValidate(t *testing.T) {
	negative := workforcetest.Rate("-1")

	tests := []struct {
		name   string
		mutate func(e *workforce.Employee)
		field  string
	}{
		{"valid", func(e *workforce.Employee) {}, ""},
		{"no rate", func(e *workforce.Employee) { e.HourlyRate = nil }, ""},
		{"blank first name", func(e *workforce.Employee) { e.FirstName = "  " }, "first_name"},
		{"bad email", func(e *workforce.Employee) { e.Email = "not-an-address" }, "email"},
		{"no start date", func(e *workforce.Employee) { e.StartDate = time.Time{} }, "start_date"},
		{"negative rate", func(e *workforce.Employee) { e.HourlyRate = negative }, "hourly_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := workforcetest.Employee("u1")
			tt.mutate(&e)

			err := employee.Validate(e)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *generic.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.FieldErrors, tt.field)
		})
	}
}

func TestSave_GeneratesIDAndKeepsCreatedAt(t *testing.T) {
	svc, clk := newTestEmployees(t)
	ctx := context.Background()

	e := workforcetest.Employee("")
	e.Email = "new.hire@example.com"
	e.StartDate = time.Date(2024, time.January, 8, 15, 30, 0, 0, time.UTC)
	saved, err := svc.Save(ctx, e)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, workforcetest.HireDate, saved.StartDate)
	assert.Equal(t, clk.Now(), saved.CreatedAt)

	clk.Advance(24 * time.Hour)
	saved.Team = "warehouse"
	updated, err := svc.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, saved.CreatedAt, updated.CreatedAt)

	got, err := svc.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "warehouse", got.Team)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSave_RuleAssignment(t *testing.T) {
	svc, _ := newTestEmployees(t)
	ctx := context.Background()

	e := workforcetest.Employee("u1")
	e.PTORuleID = timeoff.DefaultPTORuleID
	_, err := svc.Save(ctx, e)
	require.NoError(t, err)

	e.UTORuleID = "no-such-rule"
	_, err = svc.Save(ctx, e)
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "rule_id")
}

func TestGet_Unknown(t *testing.T) {
	svc, _ := newTestEmployees(t)

	_, err := svc.Get(context.Background(), "ghost")

	assert.ErrorIs(t, err, generic.ErrNotFound)
}
