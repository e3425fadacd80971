package payroll

import (
	"context"
	"strings"
	"time"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// PAY PERIODS
// =============================================================================

// GeneratePeriods creates the open pay periods of year. Periods that
// already exist with the same dates are left alone; only new ones are
// returned.
func (s *Service) GeneratePeriods(ctx context.Context, year int, typ generic.PeriodType, anchor time.Time) ([]workforce.PayPeriod, error) {
	logger := logging.Service(ctx, s.logger, "payroll", "generate_periods",
		"year", year, "period_type", string(typ))

	ranges, err := generic.GeneratePeriods(year, typ, anchor)
	if err != nil {
		logger.Info("periods rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return nil, err
	}

	now := s.clock.Now()
	var created []workforce.PayPeriod
	err = generic.Retry(ctx, "payroll.generate_periods", func(ctx context.Context) error {
		created = created[:0]
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			existing, err := tx.ListPayPeriods(ctx)
			if err != nil {
				return err
			}
			seen := make(map[string]bool, len(existing))
			for _, p := range existing {
				seen[p.Range().String()] = true
			}
			for _, r := range ranges {
				if seen[r.String()] {
					continue
				}
				p := workforce.PayPeriod{
					ID:         workforce.NewID(),
					StartDate:  r.Start,
					EndDate:    r.End,
					PeriodType: typ,
					Status:     workforce.PeriodOpen,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := tx.SavePayPeriod(ctx, p); err != nil {
					return err
				}
				created = append(created, p)
			}
			return nil
		})
	})
	if err != nil {
		logger.Warn("period generation failed", "error_kind", generic.ErrorKind(err), "error", err)
		return nil, err
	}
	logger.Info("periods generated", "created", len(created), "skipped", len(ranges)-len(created))
	return created, nil
}

// ClosePeriod moves an open period to closed. Closed periods cannot be
// reopened.
func (s *Service) ClosePeriod(ctx context.Context, id string) (workforce.PayPeriod, error) {
	logger := logging.Service(ctx, s.logger, "payroll", "close_period", "pay_period_id", id)

	now := s.clock.Now()
	var period workforce.PayPeriod
	err := generic.Retry(ctx, "payroll.close_period", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			p, err := tx.GetPayPeriod(ctx, id)
			if err != nil {
				return err
			}
			if p.Status == workforce.PeriodClosed {
				return &generic.StateConflictError{
					Kind: "pay_period", ID: p.ID, Status: string(p.Status),
					Action: "close", Err: generic.ErrPeriodClosed,
				}
			}
			p.Status = workforce.PeriodClosed
			p.UpdatedAt = now
			if err := tx.SavePayPeriod(ctx, p); err != nil {
				return err
			}
			period = p
			return nil
		})
	})
	if err != nil {
		logger.Info("period not closed", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.PayPeriod{}, err
	}
	logger.Info("period closed", "range", period.Range().String())
	return period, nil
}

func (s *Service) Periods(ctx context.Context) ([]workforce.PayPeriod, error) {
	return generic.RetryValue(ctx, "payroll.periods", func(ctx context.Context) ([]workforce.PayPeriod, error) {
		return s.store.ListPayPeriods(ctx)
	})
}

func (s *Service) Period(ctx context.Context, id string) (workforce.PayPeriod, error) {
	return generic.RetryValue(ctx, "payroll.period", func(ctx context.Context) (workforce.PayPeriod, error) {
		return s.store.GetPayPeriod(ctx, id)
	})
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// AddHoliday stores a holiday. The (date, name) pair is unique.
func (s *Service) AddHoliday(ctx context.Context, date time.Time, name string) (workforce.Holiday, error) {
	logger := logging.Service(ctx, s.logger, "payroll", "add_holiday")

	name = strings.TrimSpace(name)
	verr := &generic.ValidationError{}
	if date.IsZero() {
		verr.Add("date", "required")
	}
	if name == "" {
		verr.Add("name", "required")
	}
	if err := verr.Err(); err != nil {
		return workforce.Holiday{}, err
	}

	h := workforce.Holiday{
		ID:        workforce.NewID(),
		Date:      generic.DateOf(date, time.UTC),
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	err := generic.Retry(ctx, "payroll.add_holiday", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			return tx.SaveHoliday(ctx, h)
		})
	})
	if err != nil {
		logger.Info("holiday rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.Holiday{}, err
	}
	logger.Info("holiday added", "holiday_id", h.ID, "date", h.Date.Format(generic.DateLayout))
	return h, nil
}

func (s *Service) RemoveHoliday(ctx context.Context, id string) error {
	return generic.Retry(ctx, "payroll.remove_holiday", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			return tx.DeleteHoliday(ctx, id)
		})
	})
}

// Holidays lists holidays with from <= date <= to from the configured
// calendar.
func (s *Service) Holidays(ctx context.Context, from, to time.Time) ([]workforce.Holiday, error) {
	return generic.RetryValue(ctx, "payroll.holidays", func(ctx context.Context) ([]workforce.Holiday, error) {
		return s.calendar.Holidays(ctx, from, to)
	})
}
