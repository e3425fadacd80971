// Package employee manages the employee directory: identity, team, hourly
// rate, hire date and time-off rule assignment.
package employee

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/workforce"
)

type Service struct {
	store  workforce.Store
	clock  generic.Clock
	logger *slog.Logger
}

func NewService(store workforce.Store, clock generic.Clock, logger *slog.Logger) *Service {
	return &Service{store: store, clock: clock, logger: logger}
}

// Validate checks the fields every stored employee must carry.
func Validate(e workforce.Employee) error {
	verr := &generic.ValidationError{}
	if strings.TrimSpace(e.FirstName) == "" {
		verr.Add("first_name", "required")
	}
	if e.Email != "" {
		if _, err := mail.ParseAddress(e.Email); err != nil {
			verr.Add("email", "invalid address")
		}
	}
	if e.StartDate.IsZero() {
		verr.Add("start_date", "required")
	}
	if e.HourlyRate != nil && e.HourlyRate.IsNegative() {
		verr.Add("hourly_rate", "must not be negative")
	}
	return verr.Err()
}

// Save creates or replaces an employee. A missing ID is generated; the
// creation time of an existing record is kept.
func (s *Service) Save(ctx context.Context, e workforce.Employee) (workforce.Employee, error) {
	logger := logging.Service(ctx, s.logger, "employee", "save", "employee_id", e.ID)

	if err := Validate(e); err != nil {
		logger.Info("employee rejected", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.Employee{}, err
	}
	if e.ID == "" {
		e.ID = workforce.NewID()
	}
	e.StartDate = generic.DateOf(e.StartDate, nil)

	err := generic.Retry(ctx, "employee.save", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx workforce.Tx) error {
			existing, err := tx.GetEmployee(ctx, e.ID)
			switch {
			case err == nil:
				e.CreatedAt = existing.CreatedAt
			case generic.IsNotFound(err):
				e.CreatedAt = s.clock.Now()
			default:
				return err
			}
			for _, id := range []string{e.PTORuleID, e.UTORuleID} {
				if id == "" {
					continue
				}
				if _, err := tx.GetTimeOffRule(ctx, id); err != nil {
					if generic.IsNotFound(err) {
						return generic.NewValidationError("rule_id", "unknown time-off rule "+id)
					}
					return err
				}
			}
			return tx.SaveEmployee(ctx, e)
		})
	})
	if err != nil {
		logger.Info("employee not saved", "error_kind", generic.ErrorKind(err), "error", err)
		return workforce.Employee{}, err
	}
	logger.Info("employee saved", "employee_id", e.ID)
	return e, nil
}

func (s *Service) Get(ctx context.Context, id string) (workforce.Employee, error) {
	return generic.RetryValue(ctx, "employee.get", func(ctx context.Context) (workforce.Employee, error) {
		return s.store.GetEmployee(ctx, id)
	})
}

func (s *Service) List(ctx context.Context) ([]workforce.Employee, error) {
	return generic.RetryValue(ctx, "employee.list", func(ctx context.Context) ([]workforce.Employee, error) {
		return s.store.ListEmployees(ctx)
	})
}
