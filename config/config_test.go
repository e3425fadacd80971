package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/store/sqlstore"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_Defaults(t *testing.T) {
	// GIVEN no TIMECLOCK_* variables
	// WHEN the configuration is loaded
	cfg, err := load(env(nil))

	// THEN every value falls back to its default
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, sqlstore.SQLite, cfg.StoreDriver)
	assert.Equal(t, "timeclock.db", cfg.DSN)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 5*time.Minute, cfg.EarlyTolerance)
	assert.Equal(t, 10*time.Minute, cfg.AutoApproveWindow)
	assert.Equal(t, 3, cfg.MaxUTODaysPerRequest)
	assert.True(t, cfg.OvertimeMultiplier.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, cfg.WeeklyThreshold.Equal(decimal.NewFromInt(40)))
	assert.True(t, cfg.PayUnworkedHolidays)
	assert.False(t, cfg.ReleaseEarlyAttempts)
	assert.Equal(t, time.Minute, cfg.JobInterval)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	// GIVEN a fully specified environment
	cfg, err := load(env(map[string]string{
		"TIMECLOCK_HTTP_PORT":                 "9090",
		"TIMECLOCK_STORE_DRIVER":              "postgres",
		"TIMECLOCK_DSN":                       "postgres://localhost/timeclock",
		"TIMECLOCK_TIMEZONE":                  "America/New_York",
		"TIMECLOCK_EARLY_TOLERANCE":           "10m",
		"TIMECLOCK_AUTO_APPROVE_WINDOW":       "15m",
		"TIMECLOCK_OVERTIME_MULTIPLIER":       "2",
		"TIMECLOCK_WEEKLY_OVERTIME_THRESHOLD": "37.5",
		"TIMECLOCK_PAY_UNWORKED_HOLIDAYS":     "false",
		"TIMECLOCK_RELEASE_EARLY_ATTEMPTS":    "true",
		"TIMECLOCK_JOB_INTERVAL":              "30s",
		"TIMECLOCK_LOG_FORMAT":                "JSON",
		"TIMECLOCK_CORS_ORIGINS":              "https://a.example, https://b.example,",
	}))

	// THEN each override is applied
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, sqlstore.Postgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://localhost/timeclock", cfg.DSN)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, 10*time.Minute, cfg.EarlyTolerance)
	assert.Equal(t, 15*time.Minute, cfg.AutoApproveWindow)
	assert.True(t, cfg.OvertimeMultiplier.Equal(decimal.NewFromInt(2)))
	assert.True(t, cfg.WeeklyThreshold.Equal(decimal.RequireFromString("37.5")))
	assert.False(t, cfg.PayUnworkedHolidays)
	assert.True(t, cfg.ReleaseEarlyAttempts)
	assert.Equal(t, 30*time.Second, cfg.JobInterval)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	// AND the derived service settings carry them
	svc := cfg.Services()
	assert.Equal(t, cfg.Location, svc.Clock.Location)
	assert.Equal(t, 10*time.Minute, svc.Clock.EarlyTolerance)
	assert.False(t, svc.Payroll.PayUnworkedHolidays)
	require.NoError(t, cfg.Rates().Validate())
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	_, err := load(env(map[string]string{"TIMECLOCK_STORE_DRIVER": "postgres"}))

	require.Error(t, err)
	assert.Equal(t, "missing required environment variables: TIMECLOCK_DSN", err.Error())
}

func TestLoad_CollectsInvalidValues(t *testing.T) {
	// GIVEN several malformed values
	_, err := load(env(map[string]string{
		"TIMECLOCK_HTTP_PORT":           "eighty",
		"TIMECLOCK_TIMEZONE":            "Mars/Olympus",
		"TIMECLOCK_JOB_INTERVAL":        "0s",
		"TIMECLOCK_OVERTIME_MULTIPLIER": "-1",
		"TIMECLOCK_LOG_FORMAT":          "xml",
	}))

	// THEN all of them are named in one error
	require.Error(t, err)
	for _, key := range []string{
		"TIMECLOCK_HTTP_PORT",
		"TIMECLOCK_TIMEZONE",
		"TIMECLOCK_JOB_INTERVAL",
		"TIMECLOCK_OVERTIME_MULTIPLIER",
		"TIMECLOCK_LOG_FORMAT",
	} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("TIMECLOCK_HTTP_PORT", "7070")
	t.Setenv("TIMECLOCK_STORE_DRIVER", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTPPort)
}
