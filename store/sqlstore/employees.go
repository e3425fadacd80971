package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, first_name, last_name, email, team, hourly_rate, start_date, pto_rule_id, uto_rule_id, created_at`

func (c *conn) SaveEmployee(ctx context.Context, e workforce.Employee) error {
	rate := decimal.NullDecimal{}
	if e.HourlyRate != nil {
		rate = decimal.NewNullDecimal(*e.HourlyRate)
	}
	_, err := c.exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			team = excluded.team,
			hourly_rate = excluded.hourly_rate,
			start_date = excluded.start_date,
			pto_rule_id = excluded.pto_rule_id,
			uto_rule_id = excluded.uto_rule_id`,
		e.ID, e.FirstName, e.LastName, e.Email, e.Team, rate, date(e.StartDate),
		e.PTORuleID, e.UTORuleID, ts(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (c *conn) GetEmployee(ctx context.Context, id string) (workforce.Employee, error) {
	return queryOne(ctx, c, "employee", id, scanEmployee,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
}

func (c *conn) ListEmployees(ctx context.Context) ([]workforce.Employee, error) {
	out, err := queryAll(ctx, c, scanEmployee, `SELECT `+employeeColumns+` FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return out, nil
}

func scanEmployee(row rowScanner) (workforce.Employee, error) {
	var (
		e                  workforce.Employee
		rate               decimal.NullDecimal
		startDate, created string
	)
	if err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Team, &rate,
		&startDate, &e.PTORuleID, &e.UTORuleID, &created); err != nil {
		return e, err
	}
	if rate.Valid {
		r := rate.Decimal
		e.HourlyRate = &r
	}
	var err error
	if e.StartDate, err = parseDate(startDate); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTS(created); err != nil {
		return e, err
	}
	return e, nil
}

// =============================================================================
// SHIFT DAYS
// =============================================================================

const shiftDayColumns = `employee_id, day_of_week, morning_start, morning_end, afternoon_start, afternoon_end, is_working_day`

func (c *conn) ReplaceShiftDays(ctx context.Context, employeeID string, days []workforce.ShiftDay) error {
	if _, err := c.exec(ctx, `DELETE FROM shift_days WHERE employee_id = ?`, employeeID); err != nil {
		return fmt.Errorf("failed to delete shift days: %w", err)
	}
	for _, d := range days {
		ms, me := subShiftColumns(d.Morning)
		as, ae := subShiftColumns(d.Afternoon)
		_, err := c.exec(ctx, `INSERT INTO shift_days (`+shiftDayColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			employeeID, int(d.DayOfWeek), ms, me, as, ae, d.IsWorkingDay)
		if err != nil {
			return fmt.Errorf("failed to insert shift day %d: %w", d.DayOfWeek, err)
		}
	}
	return nil
}

func (c *conn) ListShiftDays(ctx context.Context, employeeID string) ([]workforce.ShiftDay, error) {
	out, err := queryAll(ctx, c, scanShiftDay,
		`SELECT `+shiftDayColumns+` FROM shift_days WHERE employee_id = ? ORDER BY day_of_week`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift days: %w", err)
	}
	return out, nil
}

func (c *conn) GetShiftDay(ctx context.Context, employeeID string, day time.Weekday) (workforce.ShiftDay, error) {
	return queryOne(ctx, c, "shift_day", employeeID+"/"+day.String(), scanShiftDay,
		`SELECT `+shiftDayColumns+` FROM shift_days WHERE employee_id = ? AND day_of_week = ?`,
		employeeID, int(day))
}

func subShiftColumns(s *workforce.SubShift) (sql.NullInt64, sql.NullInt64) {
	if s == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(s.Start), Valid: true}, sql.NullInt64{Int64: int64(s.End), Valid: true}
}

func subShiftFrom(start, end sql.NullInt64) *workforce.SubShift {
	if !start.Valid || !end.Valid {
		return nil
	}
	return &workforce.SubShift{Start: generic.ClockTime(start.Int64), End: generic.ClockTime(end.Int64)}
}

func scanShiftDay(row rowScanner) (workforce.ShiftDay, error) {
	var (
		d              workforce.ShiftDay
		dow            int
		ms, me, as, ae sql.NullInt64
	)
	if err := row.Scan(&d.EmployeeID, &dow, &ms, &me, &as, &ae, &d.IsWorkingDay); err != nil {
		return d, err
	}
	d.DayOfWeek = time.Weekday(dow)
	d.Morning = subShiftFrom(ms, me)
	d.Afternoon = subShiftFrom(as, ae)
	return d, nil
}
