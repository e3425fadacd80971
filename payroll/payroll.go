/*
Package payroll aggregates time entries and time off into per-period pay.

PURPOSE:
  Compute turns one employee's closed time entries, approved time off and
  the holiday calendar of a closed pay period into a PayrollCalculation row.

BUCKETS:
  holiday   hours worked on a holiday date, paid rate x holiday multiplier;
            unworked holidays on scheduled working days add the day's
            scheduled hours at 1x when PayUnworkedHolidays is set
  regular   other worked hours, up to the weekly threshold per ISO week
  overtime  the remainder of each ISO week, paid rate x overtime multiplier
  pto       approved PTO days in the period x PTO hours per day, paid at rate
  uto       approved UTO days in the period x PTO hours per day, unpaid

  Days in the period are prorated by the scheduled working days of the
  request range that fall inside the period.

ROUNDING:
  Every hour figure and every pay component is rounded to two places, half
  away from zero. total_gross_pay is the sum of the rounded components.

IDEMPOTENCE:
  The (period, user) row is upserted. When the figures are unchanged the
  stored row is left as is, timestamps included.

SEE ALSO:
  - policy.go: RatePolicy, HolidayCalendar
  - periods.go: pay period generation and closing
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/schedule"
	"github.com/warp/timeclock-engine/workforce"
)

const DefaultWorkers = 4

type Config struct {
	Location            *time.Location
	PayUnworkedHolidays bool
	// Workers bounds ComputeAll's fan-out.
	Workers int
}

type Service struct {
	store    workforce.Store
	rates    RatePolicy
	calendar HolidayCalendar
	cfg      Config
	clock    generic.Clock
	logger   *slog.Logger

	locks generic.KeyedMutex
}

// NewService wires the aggregator. A nil calendar reads holidays from store.
func NewService(store workforce.Store, rates RatePolicy, calendar HolidayCalendar, cfg Config, clock generic.Clock, logger *slog.Logger) *Service {
	if rates == nil {
		rates = DefaultRates()
	}
	if calendar == nil {
		calendar = StoreCalendar{Reader: store}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Service{store: store, rates: rates, calendar: calendar, cfg: cfg, clock: clock, logger: logger}
}

// =============================================================================
// COMPUTE
// =============================================================================

// Compute calculates and stores one employee's payroll for a closed period.
func (s *Service) Compute(ctx context.Context, payPeriodID, employeeID string) (workforce.PayrollCalculation, error) {
	logger := logging.Service(ctx, s.logger, "payroll", "compute",
		"pay_period_id", payPeriodID, "user_id", employeeID)

	unlock := s.locks.Lock(payPeriodID + "/" + employeeID)
	defer unlock()

	var calc workforce.PayrollCalculation
	err := generic.Retry(ctx, "payroll.compute", func(ctx context.Context) error {
		period, err := s.readyPeriod(ctx, s.store, payPeriodID)
		if err != nil {
			return err
		}
		holidays, err := schedule.HolidaySet(ctx, s.calendar.Holidays, period.Range())
		if err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			if err := tx.LockEmployee(ctx, employeeID); err != nil {
				return err
			}
			// Closing is one-way, but re-check under the transaction.
			if _, err := s.readyPeriod(ctx, tx, payPeriodID); err != nil {
				return err
			}
			c, err := s.calculate(ctx, tx, period, employeeID, holidays)
			if err != nil {
				return err
			}
			calc, err = s.upsert(ctx, tx, c)
			return err
		})
	})
	if err != nil {
		logger.Info("payroll not computed", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.PayrollCalculation{}, err
	}
	logger.Info("payroll computed", "total_gross_pay", calc.TotalGrossPay.StringFixed(generic.Places))
	return calc, nil
}

func (s *Service) readyPeriod(ctx context.Context, r workforce.Reader, id string) (workforce.PayPeriod, error) {
	p, err := r.GetPayPeriod(ctx, id)
	if generic.IsNotFound(err) {
		return workforce.PayPeriod{}, fmt.Errorf("%w: pay period %s does not exist", generic.ErrNotReady, id)
	}
	if err != nil {
		return workforce.PayPeriod{}, err
	}
	if p.Status != workforce.PeriodClosed {
		return workforce.PayPeriod{}, fmt.Errorf("%w: pay period %s is %s", generic.ErrNotReady, id, p.Status)
	}
	return p, nil
}

// upsert writes c unless the stored row already carries the same figures.
func (s *Service) upsert(ctx context.Context, tx workforce.Tx, c workforce.PayrollCalculation) (workforce.PayrollCalculation, error) {
	existing, err := tx.GetPayroll(ctx, c.PayPeriodID, c.UserID)
	switch {
	case err == nil:
		if existing.SameFigures(c) {
			return existing, nil
		}
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	case generic.IsNotFound(err):
		c.ID = workforce.NewID()
		c.CreatedAt = s.clock.Now()
	default:
		return workforce.PayrollCalculation{}, err
	}
	c.UpdatedAt = s.clock.Now()
	if err := tx.UpsertPayroll(ctx, c); err != nil {
		return workforce.PayrollCalculation{}, err
	}
	return c, nil
}

// calculate derives the figures without writing anything.
func (s *Service) calculate(ctx context.Context, r workforce.Reader, period workforce.PayPeriod, employeeID string, holidays map[time.Time]bool) (workforce.PayrollCalculation, error) {
	emp, err := r.GetEmployee(ctx, employeeID)
	if err != nil {
		return workforce.PayrollCalculation{}, err
	}
	rate, err := s.rates.RegularRate(emp)
	if err != nil {
		return workforce.PayrollCalculation{}, err
	}
	week, err := schedule.Load(ctx, r, employeeID)
	if err != nil {
		return workforce.PayrollCalculation{}, err
	}

	rng := period.Range()
	from, to := rng.Bounds(s.cfg.Location)
	entries, err := r.ListTimeEntries(ctx, workforce.EntryFilter{
		UserID:    employeeID,
		Statuses:  []workforce.EntryStatus{workforce.EntryClosed, workforce.EntryAutoEnded},
		StartFrom: from,
		StartTo:   to,
	})
	if err != nil {
		return workforce.PayrollCalculation{}, err
	}

	w := s.workedHours(entries, holidays)
	unworked := decimal.Zero
	if s.cfg.PayUnworkedHolidays {
		for _, d := range rng.Days() {
			if holidays[d] && !w.workedOn[d] && week.On(d).IsWorkingDay {
				unworked = unworked.Add(schedule.ScheduledHours(week.On(d)))
			}
		}
	}

	ptoDays, err := s.timeOffDays(ctx, r, week, rng, employeeID, workforce.TimeOffPTO)
	if err != nil {
		return workforce.PayrollCalculation{}, err
	}
	utoDays, err := s.timeOffDays(ctx, r, week, rng, employeeID, workforce.TimeOffUTO)
	if err != nil {
		return workforce.PayrollCalculation{}, err
	}

	holidayWorked := generic.Round2(w.holiday)
	unworked = generic.Round2(unworked)

	c := workforce.PayrollCalculation{
		PayPeriodID:   period.ID,
		UserID:        employeeID,
		HourlyRate:    rate,
		RegularHours:  generic.Round2(w.regular),
		OvertimeHours: generic.Round2(w.overtime),
		HolidayHours:  holidayWorked.Add(unworked),
		PTOHours:      generic.Round2(ptoDays.Mul(s.rates.PTOHoursPerDay())),
		UTOHours:      generic.Round2(utoDays.Mul(s.rates.PTOHoursPerDay())),
	}
	c.RegularPay = generic.Pay(c.RegularHours, rate)
	c.OvertimePay = generic.Pay(c.OvertimeHours, rate, s.rates.OvertimeMultiplier())
	c.HolidayPay = generic.Pay(holidayWorked, rate, s.rates.HolidayMultiplier()).Add(generic.Pay(unworked, rate))
	c.PTOPay = generic.Pay(c.PTOHours, rate)
	c.TotalGrossPay = c.RegularPay.Add(c.OvertimePay).Add(c.HolidayPay).Add(c.PTOPay)
	return c, nil
}

type worked struct {
	regular  decimal.Decimal
	overtime decimal.Decimal
	holiday  decimal.Decimal
	workedOn map[time.Time]bool
}

// workedHours buckets entry hours: holiday dates first, everything else by
// ISO week against the overtime threshold.
func (s *Service) workedHours(entries []workforce.TimeEntry, holidays map[time.Time]bool) worked {
	w := worked{
		regular:  decimal.Zero,
		overtime: decimal.Zero,
		holiday:  decimal.Zero,
		workedOn: make(map[time.Time]bool),
	}
	weeks := make(map[string]decimal.Decimal)
	var order []string
	for _, e := range entries {
		if e.EndTime == nil {
			continue
		}
		hours := generic.HoursBetween(e.StartTime, *e.EndTime)
		if e.TotalHours != nil {
			hours = *e.TotalHours
		}
		day := generic.DateOf(e.StartTime, s.cfg.Location)
		w.workedOn[day] = true
		if holidays[day] {
			w.holiday = w.holiday.Add(hours)
			continue
		}
		label := generic.ISOWeekLabel(day)
		if _, ok := weeks[label]; !ok {
			order = append(order, label)
		}
		weeks[label] = weeks[label].Add(hours)
	}

	threshold := s.rates.WeeklyOvertimeThreshold()
	for _, label := range order {
		sum := weeks[label]
		if sum.GreaterThan(threshold) {
			w.regular = w.regular.Add(threshold)
			w.overtime = w.overtime.Add(sum.Sub(threshold))
			continue
		}
		w.regular = w.regular.Add(sum)
	}
	return w
}

// timeOffDays sums approved days of type t attributable to the period.
func (s *Service) timeOffDays(ctx context.Context, r workforce.Reader, week schedule.Week, rng generic.Period, userID string, t workforce.TimeOffType) (decimal.Decimal, error) {
	requests, err := r.ListTimeOffRequests(ctx, workforce.TimeOffFilter{
		UserID: userID,
		Type:   t,
		Status: string(generic.StatusApproved),
		From:   rng.Start,
		To:     rng.End,
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, req := range requests {
		span := req.Period()
		inside, ok := span.Intersect(rng)
		if !ok {
			continue
		}
		holidays, err := schedule.HolidaySet(ctx, within(s.calendar, r).Holidays, span)
		if err != nil {
			return decimal.Zero, err
		}
		all := len(week.WorkingDays(span, holidays))
		in := len(week.WorkingDays(inside, holidays))
		if all == 0 {
			// Schedule changed since submission; fall back to calendar days.
			all, in = span.Len(), inside.Len()
		}
		if in == all {
			total = total.Add(req.DaysRequested)
			continue
		}
		total = total.Add(req.DaysRequested.Mul(decimal.NewFromInt(int64(in))).Div(decimal.NewFromInt(int64(all))))
	}
	return total, nil
}

// =============================================================================
// COMPUTE ALL
// =============================================================================

// ComputeAll computes every employee with an hourly rate for the period.
// Employees without a rate are skipped. Failures are joined; the rows that
// succeeded are returned either way.
func (s *Service) ComputeAll(ctx context.Context, payPeriodID string) ([]workforce.PayrollCalculation, error) {
	logger := logging.Service(ctx, s.logger, "payroll", "compute_all", "pay_period_id", payPeriodID)

	if _, err := s.readyPeriod(ctx, s.store, payPeriodID); err != nil {
		return nil, err
	}
	employees, err := generic.RetryValue(ctx, "payroll.employees", func(ctx context.Context) ([]workforce.Employee, error) {
		return s.store.ListEmployees(ctx)
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]*workforce.PayrollCalculation, len(employees))
		errs    []error
		skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, emp := range employees {
		if _, err := s.rates.RegularRate(emp); err != nil {
			skipped++
			continue
		}
		g.Go(func() error {
			calc, err := s.Compute(gctx, payPeriodID, emp.ID)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("employee %s: %w", emp.ID, err))
				mu.Unlock()
				return nil
			}
			results[i] = &calc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]workforce.PayrollCalculation, 0, len(employees))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	logger.Info("payroll computed for period", "computed", len(out), "skipped", skipped, "failed", len(errs))
	return out, errors.Join(errs...)
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Payroll(ctx context.Context, payPeriodID string) ([]workforce.PayrollCalculation, error) {
	return generic.RetryValue(ctx, "payroll.list", func(ctx context.Context) ([]workforce.PayrollCalculation, error) {
		return s.store.ListPayroll(ctx, payPeriodID)
	})
}

func (s *Service) PayrollFor(ctx context.Context, payPeriodID, userID string) (workforce.PayrollCalculation, error) {
	return generic.RetryValue(ctx, "payroll.get", func(ctx context.Context) (workforce.PayrollCalculation, error) {
		return s.store.GetPayroll(ctx, payPeriodID, userID)
	})
}
