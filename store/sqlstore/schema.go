package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// schema is valid for both SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		hourly_rate TEXT,
		start_date TEXT NOT NULL,
		pto_rule_id TEXT NOT NULL DEFAULT '',
		uto_rule_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS shift_days (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		day_of_week INTEGER NOT NULL,
		morning_start INTEGER,
		morning_end INTEGER,
		afternoon_start INTEGER,
		afternoon_end INTEGER,
		is_working_day BOOLEAN NOT NULL,
		PRIMARY KEY (employee_id, day_of_week)
	)`,

	`CREATE TABLE IF NOT EXISTS early_clock_attempts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES employees(id),
		team TEXT NOT NULL DEFAULT '',
		shift_type TEXT NOT NULL DEFAULT '',
		scheduled_start TEXT NOT NULL,
		attempted_time TEXT NOT NULL,
		actual_clock_in TEXT,
		status TEXT NOT NULL,
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		time_entry_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_pending
		ON early_clock_attempts(user_id, scheduled_start) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES employees(id),
		team TEXT NOT NULL DEFAULT '',
		shift_type TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT,
		total_hours TEXT,
		status TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_user_start ON time_entries(user_id, start_time)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_active
		ON time_entries(user_id) WHERE status = 'active'`,

	`CREATE TABLE IF NOT EXISTS time_corrections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES employees(id),
		time_entry_id TEXT NOT NULL REFERENCES time_entries(id),
		requested_start_time TEXT,
		requested_end_time TEXT,
		original_start_time TEXT NOT NULL,
		original_end_time TEXT,
		reason TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		shift_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		auto_approvable BOOLEAN NOT NULL DEFAULT FALSE,
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_corrections_pending
		ON time_corrections(time_entry_id) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS time_off_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES employees(id),
		request_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		approved_at TEXT,
		approved_by TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		approval_notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_off_user ON time_off_requests(user_id, request_type, start_date)`,

	`CREATE TABLE IF NOT EXISTS balance_adjustments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES employees(id),
		request_type TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		delta_days TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS time_off_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		request_type TEXT NOT NULL,
		days TEXT NOT NULL,
		reset_period INTEGER NOT NULL,
		reset_unit TEXT NOT NULL,
		anchor TEXT NOT NULL,
		not_before INTEGER NOT NULL DEFAULT 0,
		not_before_unit TEXT NOT NULL DEFAULT 'days',
		tiers_json TEXT NOT NULL DEFAULT '[]'
	)`,

	`CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (date, name)
	)`,

	`CREATE TABLE IF NOT EXISTS pay_periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		period_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (start_date, end_date)
	)`,

	`CREATE TABLE IF NOT EXISTS payroll_calculations (
		id TEXT PRIMARY KEY,
		pay_period_id TEXT NOT NULL REFERENCES pay_periods(id),
		user_id TEXT NOT NULL REFERENCES employees(id),
		regular_hours TEXT NOT NULL,
		regular_pay TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		overtime_pay TEXT NOT NULL,
		holiday_hours TEXT NOT NULL,
		holiday_pay TEXT NOT NULL,
		pto_hours TEXT NOT NULL,
		pto_pay TEXT NOT NULL,
		uto_hours TEXT NOT NULL,
		total_gross_pay TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (pay_period_id, user_id)
	)`,
}

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
