// Package config loads service settings from TIMECLOCK_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/api"
	"github.com/warp/timeclock-engine/clock"
	"github.com/warp/timeclock-engine/correction"
	"github.com/warp/timeclock-engine/payroll"
	"github.com/warp/timeclock-engine/store/sqlstore"
	"github.com/warp/timeclock-engine/timeoff"
)

// Config captures environment driven configuration values for the engine.
type Config struct {
	HTTPPort    int
	StoreDriver sqlstore.Dialect
	DSN         string
	Location    *time.Location

	EarlyTolerance       time.Duration
	AutoApproveWindow    time.Duration
	MaxUTODaysPerRequest int

	OvertimeMultiplier  decimal.Decimal
	WeeklyThreshold     decimal.Decimal
	HolidayMultiplier   decimal.Decimal
	PTOHoursPerDay      decimal.Decimal
	PayUnworkedHolidays bool
	PayrollWorkers      int

	JobInterval          time.Duration
	ReleaseEarlyAttempts bool

	LogLevel    string
	LogFormat   string
	CORSOrigins []string
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	rates := payroll.DefaultRates()
	return Config{
		HTTPPort:             8080,
		StoreDriver:          sqlstore.SQLite,
		DSN:                  "timeclock.db",
		Location:             time.UTC,
		EarlyTolerance:       clock.DefaultEarlyTolerance,
		AutoApproveWindow:    correction.DefaultAutoApproveWindow,
		MaxUTODaysPerRequest: timeoff.DefaultMaxUTODaysPerRequest,
		OvertimeMultiplier:   rates.Overtime,
		WeeklyThreshold:      rates.WeeklyThreshold,
		HolidayMultiplier:    rates.Holiday,
		PTOHoursPerDay:       rates.PTOHours,
		PayUnworkedHolidays:  true,
		PayrollWorkers:       payroll.DefaultWorkers,
		JobInterval:          api.DefaultJobInterval,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load parses configuration values from the current process environment.
//
// Unset variables keep their defaults. Every malformed value is reported in a
// single error so a misconfigured deployment fails once with the full list.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	lookup := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := lookup("TIMECLOCK_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "TIMECLOCK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if v := lookup("TIMECLOCK_STORE_DRIVER"); v != "" {
		d, err := sqlstore.ParseDialect(v)
		if err != nil {
			invalid = append(invalid, "TIMECLOCK_STORE_DRIVER")
		} else {
			cfg.StoreDriver = d
		}
	}

	if v := lookup("TIMECLOCK_DSN"); v != "" {
		cfg.DSN = v
	} else if cfg.StoreDriver == sqlstore.Postgres {
		missing = append(missing, "TIMECLOCK_DSN")
	}

	if v := lookup("TIMECLOCK_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			invalid = append(invalid, "TIMECLOCK_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	durations := []struct {
		key      string
		dst      *time.Duration
		positive bool
	}{
		{"TIMECLOCK_EARLY_TOLERANCE", &cfg.EarlyTolerance, false},
		{"TIMECLOCK_AUTO_APPROVE_WINDOW", &cfg.AutoApproveWindow, false},
		{"TIMECLOCK_JOB_INTERVAL", &cfg.JobInterval, true},
	}
	for _, d := range durations {
		v := lookup(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || (d.positive && parsed <= 0) {
			invalid = append(invalid, d.key)
			continue
		}
		*d.dst = parsed
	}

	if v := lookup("TIMECLOCK_MAX_UTO_DAYS_PER_REQUEST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, "TIMECLOCK_MAX_UTO_DAYS_PER_REQUEST")
		} else {
			cfg.MaxUTODaysPerRequest = n
		}
	}

	if v := lookup("TIMECLOCK_PAYROLL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			invalid = append(invalid, "TIMECLOCK_PAYROLL_WORKERS")
		} else {
			cfg.PayrollWorkers = n
		}
	}

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"TIMECLOCK_OVERTIME_MULTIPLIER", &cfg.OvertimeMultiplier},
		{"TIMECLOCK_WEEKLY_OVERTIME_THRESHOLD", &cfg.WeeklyThreshold},
		{"TIMECLOCK_HOLIDAY_MULTIPLIER", &cfg.HolidayMultiplier},
		{"TIMECLOCK_PTO_HOURS_PER_DAY", &cfg.PTOHoursPerDay},
	}
	for _, d := range decimals {
		v := lookup(d.key)
		if v == "" {
			continue
		}
		parsed, err := decimal.NewFromString(v)
		if err != nil || !parsed.IsPositive() {
			invalid = append(invalid, d.key)
			continue
		}
		*d.dst = parsed
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"TIMECLOCK_PAY_UNWORKED_HOLIDAYS", &cfg.PayUnworkedHolidays},
		{"TIMECLOCK_RELEASE_EARLY_ATTEMPTS", &cfg.ReleaseEarlyAttempts},
	}
	for _, b := range bools {
		v := lookup(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, b.key)
			continue
		}
		*b.dst = parsed
	}

	if v := lookup("TIMECLOCK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := lookup("TIMECLOCK_LOG_FORMAT"); v != "" {
		switch f := strings.ToLower(v); f {
		case "text", "json":
			cfg.LogFormat = f
		default:
			invalid = append(invalid, "TIMECLOCK_LOG_FORMAT")
		}
	}

	if v := lookup("TIMECLOCK_CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Rates builds the payroll rate policy.
func (c Config) Rates() payroll.Rates {
	return payroll.Rates{
		Overtime:        c.OvertimeMultiplier,
		WeeklyThreshold: c.WeeklyThreshold,
		Holiday:         c.HolidayMultiplier,
		PTOHours:        c.PTOHoursPerDay,
	}
}

// Services builds the per-service settings.
func (c Config) Services() api.ServiceConfig {
	return api.ServiceConfig{
		Clock: clock.Config{
			Location:       c.Location,
			EarlyTolerance: c.EarlyTolerance,
		},
		Correction: correction.Config{
			AutoApproveWindow: c.AutoApproveWindow,
			Location:          c.Location,
		},
		TimeOff: timeoff.Config{
			MaxUTODaysPerRequest: c.MaxUTODaysPerRequest,
			Location:             c.Location,
		},
		Payroll: payroll.Config{
			Location:            c.Location,
			PayUnworkedHolidays: c.PayUnworkedHolidays,
			Workers:             c.PayrollWorkers,
		},
		Rates: c.Rates(),
	}
}
