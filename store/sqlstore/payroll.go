package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// HOLIDAYS
// =============================================================================

func (c *conn) SaveHoliday(ctx context.Context, h workforce.Holiday) error {
	_, err := c.exec(ctx, `
		INSERT INTO holidays (id, date, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET date = excluded.date, name = excluded.name`,
		h.ID, date(h.Date), h.Name, ts(h.CreatedAt))
	return mapUnique(err, workforce.ErrDuplicateHoliday, "save holiday")
}

func (c *conn) DeleteHoliday(ctx context.Context, id string) error {
	res, err := c.exec(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	return requireRow(res, "holiday", id)
}

func (c *conn) ListHolidays(ctx context.Context, from, to time.Time) ([]workforce.Holiday, error) {
	out, err := queryAll(ctx, c, scanHoliday,
		`SELECT id, date, name, created_at FROM holidays WHERE date >= ? AND date <= ? ORDER BY date, name`,
		date(from), date(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return out, nil
}

func scanHoliday(row rowScanner) (workforce.Holiday, error) {
	var (
		h            workforce.Holiday
		day, created string
	)
	if err := row.Scan(&h.ID, &day, &h.Name, &created); err != nil {
		return h, err
	}
	var err error
	if h.Date, err = parseDate(day); err != nil {
		return h, err
	}
	if h.CreatedAt, err = parseTS(created); err != nil {
		return h, err
	}
	return h, nil
}

// =============================================================================
// PAY PERIODS
// =============================================================================

const periodColumns = `id, start_date, end_date, period_type, status, created_at, updated_at`

func (c *conn) SavePayPeriod(ctx context.Context, p workforce.PayPeriod) error {
	_, err := c.exec(ctx, `
		INSERT INTO pay_periods (`+periodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			period_type = excluded.period_type,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		p.ID, date(p.StartDate), date(p.EndDate), string(p.PeriodType), string(p.Status),
		ts(p.CreatedAt), ts(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save pay period: %w", err)
	}
	return nil
}

func (c *conn) GetPayPeriod(ctx context.Context, id string) (workforce.PayPeriod, error) {
	return queryOne(ctx, c, "pay_period", id, scanPeriod,
		`SELECT `+periodColumns+` FROM pay_periods WHERE id = ?`, id)
}

func (c *conn) ListPayPeriods(ctx context.Context) ([]workforce.PayPeriod, error) {
	out, err := queryAll(ctx, c, scanPeriod, `SELECT `+periodColumns+` FROM pay_periods ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pay periods: %w", err)
	}
	return out, nil
}

func scanPeriod(row rowScanner) (workforce.PayPeriod, error) {
	var (
		p                                   workforce.PayPeriod
		start, end, typ, stat, created, upd string
	)
	if err := row.Scan(&p.ID, &start, &end, &typ, &stat, &created, &upd); err != nil {
		return p, err
	}
	p.PeriodType = generic.PeriodType(typ)
	p.Status = workforce.PeriodStatus(stat)
	var err error
	if p.StartDate, err = parseDate(start); err != nil {
		return p, err
	}
	if p.EndDate, err = parseDate(end); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTS(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTS(upd); err != nil {
		return p, err
	}
	return p, nil
}

// =============================================================================
// PAYROLL CALCULATIONS
// =============================================================================

const payrollColumns = `id, pay_period_id, user_id, regular_hours, regular_pay, overtime_hours, overtime_pay, holiday_hours, holiday_pay, pto_hours, pto_pay, uto_hours, total_gross_pay, hourly_rate, created_at, updated_at`

// UpsertPayroll keeps the existing row's id and created_at on conflict.
func (c *conn) UpsertPayroll(ctx context.Context, p workforce.PayrollCalculation) error {
	_, err := c.exec(ctx, `
		INSERT INTO payroll_calculations (`+payrollColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pay_period_id, user_id) DO UPDATE SET
			regular_hours = excluded.regular_hours,
			regular_pay = excluded.regular_pay,
			overtime_hours = excluded.overtime_hours,
			overtime_pay = excluded.overtime_pay,
			holiday_hours = excluded.holiday_hours,
			holiday_pay = excluded.holiday_pay,
			pto_hours = excluded.pto_hours,
			pto_pay = excluded.pto_pay,
			uto_hours = excluded.uto_hours,
			total_gross_pay = excluded.total_gross_pay,
			hourly_rate = excluded.hourly_rate,
			updated_at = excluded.updated_at`,
		p.ID, p.PayPeriodID, p.UserID,
		p.RegularHours, p.RegularPay, p.OvertimeHours, p.OvertimePay,
		p.HolidayHours, p.HolidayPay, p.PTOHours, p.PTOPay, p.UTOHours,
		p.TotalGrossPay, p.HourlyRate, ts(p.CreatedAt), ts(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert payroll calculation: %w", err)
	}
	return nil
}

func (c *conn) GetPayroll(ctx context.Context, periodID, userID string) (workforce.PayrollCalculation, error) {
	return queryOne(ctx, c, "payroll_calculation", periodID+"/"+userID, scanPayroll,
		`SELECT `+payrollColumns+` FROM payroll_calculations WHERE pay_period_id = ? AND user_id = ?`,
		periodID, userID)
}

func (c *conn) ListPayroll(ctx context.Context, periodID string) ([]workforce.PayrollCalculation, error) {
	out, err := queryAll(ctx, c, scanPayroll,
		`SELECT `+payrollColumns+` FROM payroll_calculations WHERE pay_period_id = ? ORDER BY user_id`, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll calculations: %w", err)
	}
	return out, nil
}

func scanPayroll(row rowScanner) (workforce.PayrollCalculation, error) {
	var (
		p            workforce.PayrollCalculation
		created, upd string
	)
	if err := row.Scan(&p.ID, &p.PayPeriodID, &p.UserID,
		&p.RegularHours, &p.RegularPay, &p.OvertimeHours, &p.OvertimePay,
		&p.HolidayHours, &p.HolidayPay, &p.PTOHours, &p.PTOPay, &p.UTOHours,
		&p.TotalGrossPay, &p.HourlyRate, &created, &upd); err != nil {
		return p, err
	}
	var err error
	if p.CreatedAt, err = parseTS(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTS(upd); err != nil {
		return p, err
	}
	return p, nil
}
