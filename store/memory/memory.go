// Package memory provides an in-memory workforce.Store for tests and local runs.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps every table in maps. A transaction holds the store-wide mutex
// for its whole length and restores a snapshot on rollback.
type Store struct {
	mu    sync.Mutex
	state *state

	// failures are returned by the next WithTx calls before fn runs.
	failures []error
}

type state struct {
	employees   map[string]workforce.Employee
	shiftDays   map[string][]workforce.ShiftDay
	attempts    map[string]workforce.EarlyClockAttempt
	entries     map[string]workforce.TimeEntry
	corrections map[string]workforce.TimeCorrection
	requests    map[string]workforce.TimeOffRequest
	adjustments []workforce.BalanceAdjustment
	rules       map[string]workforce.TimeOffRule
	holidays    map[string]workforce.Holiday
	periods     map[string]workforce.PayPeriod
	payroll     map[payrollKey]workforce.PayrollCalculation
}

type payrollKey struct {
	PeriodID string
	UserID   string
}

var (
	_ workforce.Store = (*Store)(nil)
	_ workforce.Tx    = (*tx)(nil)
)

func New() *Store {
	return &Store{state: &state{
		employees:   make(map[string]workforce.Employee),
		shiftDays:   make(map[string][]workforce.ShiftDay),
		attempts:    make(map[string]workforce.EarlyClockAttempt),
		entries:     make(map[string]workforce.TimeEntry),
		corrections: make(map[string]workforce.TimeCorrection),
		requests:    make(map[string]workforce.TimeOffRequest),
		rules:       make(map[string]workforce.TimeOffRule),
		holidays:    make(map[string]workforce.Holiday),
		periods:     make(map[string]workforce.PayPeriod),
		payroll:     make(map[payrollKey]workforce.PayrollCalculation),
	}}
}

// FailNext makes the next len(errs) transactions fail with the given errors.
func (s *Store) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *Store) WithTx(ctx context.Context, fn func(workforce.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}

	snapshot := s.state.clone()
	if err := fn(&tx{state: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	return &state{
		employees:   maps.Clone(s.employees),
		shiftDays:   maps.Clone(s.shiftDays),
		attempts:    maps.Clone(s.attempts),
		entries:     maps.Clone(s.entries),
		corrections: maps.Clone(s.corrections),
		requests:    maps.Clone(s.requests),
		adjustments: append([]workforce.BalanceAdjustment(nil), s.adjustments...),
		rules:       maps.Clone(s.rules),
		holidays:    maps.Clone(s.holidays),
		periods:     maps.Clone(s.periods),
		payroll:     maps.Clone(s.payroll),
	}
}

// read runs fn under the store mutex outside of any transaction.
func read[T any](s *Store, fn func(*state) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// =============================================================================
// READS OUTSIDE TRANSACTIONS
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, id string) (workforce.Employee, error) {
	return read(s, func(st *state) (workforce.Employee, error) { return st.getEmployee(id) })
}

func (s *Store) ListEmployees(_ context.Context) ([]workforce.Employee, error) {
	return read(s, func(st *state) ([]workforce.Employee, error) { return st.listEmployees(), nil })
}

func (s *Store) ListShiftDays(_ context.Context, employeeID string) ([]workforce.ShiftDay, error) {
	return read(s, func(st *state) ([]workforce.ShiftDay, error) { return st.listShiftDays(employeeID), nil })
}

func (s *Store) GetShiftDay(_ context.Context, employeeID string, day time.Weekday) (workforce.ShiftDay, error) {
	return read(s, func(st *state) (workforce.ShiftDay, error) { return st.getShiftDay(employeeID, day) })
}

func (s *Store) GetEarlyAttempt(_ context.Context, id string) (workforce.EarlyClockAttempt, error) {
	return read(s, func(st *state) (workforce.EarlyClockAttempt, error) { return st.getAttempt(id) })
}

func (s *Store) ListEarlyAttempts(_ context.Context, f workforce.AttemptFilter) ([]workforce.EarlyClockAttempt, error) {
	return read(s, func(st *state) ([]workforce.EarlyClockAttempt, error) { return st.listAttempts(f), nil })
}

func (s *Store) GetTimeEntry(_ context.Context, id string) (workforce.TimeEntry, error) {
	return read(s, func(st *state) (workforce.TimeEntry, error) { return st.getEntry(id) })
}

func (s *Store) ActiveTimeEntry(_ context.Context, userID string) (workforce.TimeEntry, error) {
	return read(s, func(st *state) (workforce.TimeEntry, error) { return st.activeEntry(userID) })
}

func (s *Store) ListTimeEntries(_ context.Context, f workforce.EntryFilter) ([]workforce.TimeEntry, error) {
	return read(s, func(st *state) ([]workforce.TimeEntry, error) { return st.listEntries(f), nil })
}

func (s *Store) GetCorrection(_ context.Context, id string) (workforce.TimeCorrection, error) {
	return read(s, func(st *state) (workforce.TimeCorrection, error) { return st.getCorrection(id) })
}

func (s *Store) ListCorrections(_ context.Context, f workforce.CorrectionFilter) ([]workforce.TimeCorrection, error) {
	return read(s, func(st *state) ([]workforce.TimeCorrection, error) { return st.listCorrections(f), nil })
}

func (s *Store) GetTimeOffRequest(_ context.Context, id string) (workforce.TimeOffRequest, error) {
	return read(s, func(st *state) (workforce.TimeOffRequest, error) { return st.getRequest(id) })
}

func (s *Store) ListTimeOffRequests(_ context.Context, f workforce.TimeOffFilter) ([]workforce.TimeOffRequest, error) {
	return read(s, func(st *state) ([]workforce.TimeOffRequest, error) { return st.listRequests(f), nil })
}

func (s *Store) ListAdjustments(_ context.Context, userID string, t workforce.TimeOffType) ([]workforce.BalanceAdjustment, error) {
	return read(s, func(st *state) ([]workforce.BalanceAdjustment, error) { return st.listAdjustments(userID, t), nil })
}

func (s *Store) GetTimeOffRule(_ context.Context, id string) (workforce.TimeOffRule, error) {
	return read(s, func(st *state) (workforce.TimeOffRule, error) { return st.getRule(id) })
}

func (s *Store) ListTimeOffRules(_ context.Context) ([]workforce.TimeOffRule, error) {
	return read(s, func(st *state) ([]workforce.TimeOffRule, error) { return st.listRules(), nil })
}

func (s *Store) ListHolidays(_ context.Context, from, to time.Time) ([]workforce.Holiday, error) {
	return read(s, func(st *state) ([]workforce.Holiday, error) { return st.listHolidays(from, to), nil })
}

func (s *Store) GetPayPeriod(_ context.Context, id string) (workforce.PayPeriod, error) {
	return read(s, func(st *state) (workforce.PayPeriod, error) { return st.getPeriod(id) })
}

func (s *Store) ListPayPeriods(_ context.Context) ([]workforce.PayPeriod, error) {
	return read(s, func(st *state) ([]workforce.PayPeriod, error) { return st.listPeriods(), nil })
}

func (s *Store) GetPayroll(_ context.Context, periodID, userID string) (workforce.PayrollCalculation, error) {
	return read(s, func(st *state) (workforce.PayrollCalculation, error) { return st.getPayroll(periodID, userID) })
}

func (s *Store) ListPayroll(_ context.Context, periodID string) ([]workforce.PayrollCalculation, error) {
	return read(s, func(st *state) ([]workforce.PayrollCalculation, error) { return st.listPayroll(periodID), nil })
}

// =============================================================================
// TRANSACTION
// =============================================================================

// tx operates on the live state; the store mutex is held by WithTx.
type tx struct {
	state *state
}

// LockEmployee only checks existence: the store-wide mutex already
// serializes every transaction.
func (t *tx) LockEmployee(_ context.Context, userID string) error {
	_, err := t.state.getEmployee(userID)
	return err
}

func (t *tx) GetEmployee(_ context.Context, id string) (workforce.Employee, error) {
	return t.state.getEmployee(id)
}

func (t *tx) ListEmployees(_ context.Context) ([]workforce.Employee, error) {
	return t.state.listEmployees(), nil
}

func (t *tx) ListShiftDays(_ context.Context, employeeID string) ([]workforce.ShiftDay, error) {
	return t.state.listShiftDays(employeeID), nil
}

func (t *tx) GetShiftDay(_ context.Context, employeeID string, day time.Weekday) (workforce.ShiftDay, error) {
	return t.state.getShiftDay(employeeID, day)
}

func (t *tx) GetEarlyAttempt(_ context.Context, id string) (workforce.EarlyClockAttempt, error) {
	return t.state.getAttempt(id)
}

func (t *tx) ListEarlyAttempts(_ context.Context, f workforce.AttemptFilter) ([]workforce.EarlyClockAttempt, error) {
	return t.state.listAttempts(f), nil
}

func (t *tx) GetTimeEntry(_ context.Context, id string) (workforce.TimeEntry, error) {
	return t.state.getEntry(id)
}

func (t *tx) ActiveTimeEntry(_ context.Context, userID string) (workforce.TimeEntry, error) {
	return t.state.activeEntry(userID)
}

func (t *tx) ListTimeEntries(_ context.Context, f workforce.EntryFilter) ([]workforce.TimeEntry, error) {
	return t.state.listEntries(f), nil
}

func (t *tx) GetCorrection(_ context.Context, id string) (workforce.TimeCorrection, error) {
	return t.state.getCorrection(id)
}

func (t *tx) ListCorrections(_ context.Context, f workforce.CorrectionFilter) ([]workforce.TimeCorrection, error) {
	return t.state.listCorrections(f), nil
}

func (t *tx) GetTimeOffRequest(_ context.Context, id string) (workforce.TimeOffRequest, error) {
	return t.state.getRequest(id)
}

func (t *tx) ListTimeOffRequests(_ context.Context, f workforce.TimeOffFilter) ([]workforce.TimeOffRequest, error) {
	return t.state.listRequests(f), nil
}

func (t *tx) ListAdjustments(_ context.Context, userID string, typ workforce.TimeOffType) ([]workforce.BalanceAdjustment, error) {
	return t.state.listAdjustments(userID, typ), nil
}

func (t *tx) GetTimeOffRule(_ context.Context, id string) (workforce.TimeOffRule, error) {
	return t.state.getRule(id)
}

func (t *tx) ListTimeOffRules(_ context.Context) ([]workforce.TimeOffRule, error) {
	return t.state.listRules(), nil
}

func (t *tx) ListHolidays(_ context.Context, from, to time.Time) ([]workforce.Holiday, error) {
	return t.state.listHolidays(from, to), nil
}

func (t *tx) GetPayPeriod(_ context.Context, id string) (workforce.PayPeriod, error) {
	return t.state.getPeriod(id)
}

func (t *tx) ListPayPeriods(_ context.Context) ([]workforce.PayPeriod, error) {
	return t.state.listPeriods(), nil
}

func (t *tx) GetPayroll(_ context.Context, periodID, userID string) (workforce.PayrollCalculation, error) {
	return t.state.getPayroll(periodID, userID)
}

func (t *tx) ListPayroll(_ context.Context, periodID string) ([]workforce.PayrollCalculation, error) {
	return t.state.listPayroll(periodID), nil
}

func (t *tx) SaveEmployee(_ context.Context, e workforce.Employee) error {
	t.state.employees[e.ID] = e
	return nil
}

func (t *tx) ReplaceShiftDays(_ context.Context, employeeID string, days []workforce.ShiftDay) error {
	t.state.shiftDays[employeeID] = append([]workforce.ShiftDay(nil), days...)
	return nil
}

func (t *tx) InsertEarlyAttempt(_ context.Context, a workforce.EarlyClockAttempt) error {
	if a.Status == generic.StatusPending && t.state.hasPendingAttempt(a) {
		return generic.ErrDuplicateAttempt
	}
	t.state.attempts[a.ID] = a
	return nil
}

func (t *tx) UpdateEarlyAttempt(_ context.Context, a workforce.EarlyClockAttempt) error {
	if _, err := t.state.getAttempt(a.ID); err != nil {
		return err
	}
	t.state.attempts[a.ID] = a
	return nil
}

func (t *tx) InsertTimeEntry(_ context.Context, e workforce.TimeEntry) error {
	t.state.entries[e.ID] = e
	return nil
}

func (t *tx) UpdateTimeEntry(_ context.Context, e workforce.TimeEntry) error {
	if _, err := t.state.getEntry(e.ID); err != nil {
		return err
	}
	t.state.entries[e.ID] = e
	return nil
}

func (t *tx) InsertCorrection(_ context.Context, c workforce.TimeCorrection) error {
	t.state.corrections[c.ID] = c
	return nil
}

func (t *tx) UpdateCorrection(_ context.Context, c workforce.TimeCorrection) error {
	if _, err := t.state.getCorrection(c.ID); err != nil {
		return err
	}
	t.state.corrections[c.ID] = c
	return nil
}

func (t *tx) InsertTimeOffRequest(_ context.Context, r workforce.TimeOffRequest) error {
	t.state.requests[r.ID] = r
	return nil
}

func (t *tx) UpdateTimeOffRequest(_ context.Context, r workforce.TimeOffRequest) error {
	if _, err := t.state.getRequest(r.ID); err != nil {
		return err
	}
	t.state.requests[r.ID] = r
	return nil
}

func (t *tx) AppendAdjustment(_ context.Context, a workforce.BalanceAdjustment) error {
	for _, existing := range t.state.adjustments {
		if a.IdempotencyKey != "" && existing.IdempotencyKey == a.IdempotencyKey {
			return workforce.ErrDuplicateIdempotencyKey
		}
	}
	t.state.adjustments = append(t.state.adjustments, a)
	return nil
}

func (t *tx) SaveTimeOffRule(_ context.Context, r workforce.TimeOffRule) error {
	t.state.rules[r.ID] = r
	return nil
}

func (t *tx) SaveHoliday(_ context.Context, h workforce.Holiday) error {
	for _, existing := range t.state.holidays {
		if existing.ID != h.ID && existing.Date.Equal(h.Date) && existing.Name == h.Name {
			return workforce.ErrDuplicateHoliday
		}
	}
	t.state.holidays[h.ID] = h
	return nil
}

func (t *tx) DeleteHoliday(_ context.Context, id string) error {
	if _, ok := t.state.holidays[id]; !ok {
		return generic.NewNotFound("holiday", id)
	}
	delete(t.state.holidays, id)
	return nil
}

func (t *tx) SavePayPeriod(_ context.Context, p workforce.PayPeriod) error {
	t.state.periods[p.ID] = p
	return nil
}

func (t *tx) UpsertPayroll(_ context.Context, c workforce.PayrollCalculation) error {
	k := payrollKey{PeriodID: c.PayPeriodID, UserID: c.UserID}
	if existing, ok := t.state.payroll[k]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	t.state.payroll[k] = c
	return nil
}

// =============================================================================
// STATE QUERIES - callers hold the store mutex
// =============================================================================

func (s *state) getEmployee(id string) (workforce.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return workforce.Employee{}, generic.NewNotFound("employee", id)
	}
	return e, nil
}

func (s *state) listEmployees() []workforce.Employee {
	out := make([]workforce.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) listShiftDays(employeeID string) []workforce.ShiftDay {
	out := append([]workforce.ShiftDay(nil), s.shiftDays[employeeID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out
}

func (s *state) getShiftDay(employeeID string, day time.Weekday) (workforce.ShiftDay, error) {
	for _, d := range s.shiftDays[employeeID] {
		if d.DayOfWeek == day {
			return d, nil
		}
	}
	return workforce.ShiftDay{}, generic.NewNotFound("shift_day", employeeID+"/"+day.String())
}

func (s *state) getAttempt(id string) (workforce.EarlyClockAttempt, error) {
	a, ok := s.attempts[id]
	if !ok {
		return workforce.EarlyClockAttempt{}, generic.NewNotFound("early_clock_attempt", id)
	}
	return a, nil
}

func (s *state) hasPendingAttempt(a workforce.EarlyClockAttempt) bool {
	for _, existing := range s.attempts {
		if existing.ID != a.ID && existing.UserID == a.UserID &&
			existing.Status == generic.StatusPending && existing.ScheduledStart.Equal(a.ScheduledStart) {
			return true
		}
	}
	return false
}

func (s *state) listAttempts(f workforce.AttemptFilter) []workforce.EarlyClockAttempt {
	var out []workforce.EarlyClockAttempt
	for _, a := range s.attempts {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getEntry(id string) (workforce.TimeEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return workforce.TimeEntry{}, generic.NewNotFound("time_entry", id)
	}
	return e, nil
}

func (s *state) activeEntry(userID string) (workforce.TimeEntry, error) {
	for _, e := range s.entries {
		if e.UserID == userID && e.Status == workforce.EntryActive {
			return e, nil
		}
	}
	return workforce.TimeEntry{}, generic.NewNotFound("active_time_entry", userID)
}

func (s *state) listEntries(f workforce.EntryFilter) []workforce.TimeEntry {
	var out []workforce.TimeEntry
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getCorrection(id string) (workforce.TimeCorrection, error) {
	c, ok := s.corrections[id]
	if !ok {
		return workforce.TimeCorrection{}, generic.NewNotFound("time_correction", id)
	}
	return c, nil
}

func (s *state) listCorrections(f workforce.CorrectionFilter) []workforce.TimeCorrection {
	var out []workforce.TimeCorrection
	for _, c := range s.corrections {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getRequest(id string) (workforce.TimeOffRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return workforce.TimeOffRequest{}, generic.NewNotFound("time_off_request", id)
	}
	return r, nil
}

func (s *state) listRequests(f workforce.TimeOffFilter) []workforce.TimeOffRequest {
	var out []workforce.TimeOffRequest
	for _, r := range s.requests {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) listAdjustments(userID string, t workforce.TimeOffType) []workforce.BalanceAdjustment {
	var out []workforce.BalanceAdjustment
	for _, a := range s.adjustments {
		if a.UserID == userID && (t == "" || a.Type == t) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveDate.Before(out[j].EffectiveDate) })
	return out
}

func (s *state) getRule(id string) (workforce.TimeOffRule, error) {
	r, ok := s.rules[id]
	if !ok {
		return workforce.TimeOffRule{}, generic.NewNotFound("time_off_rule", id)
	}
	return r, nil
}

func (s *state) listRules() []workforce.TimeOffRule {
	out := make([]workforce.TimeOffRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) listHolidays(from, to time.Time) []workforce.Holiday {
	var out []workforce.Holiday
	for _, h := range s.holidays {
		if !h.Date.Before(from) && !h.Date.After(to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *state) getPeriod(id string) (workforce.PayPeriod, error) {
	p, ok := s.periods[id]
	if !ok {
		return workforce.PayPeriod{}, generic.NewNotFound("pay_period", id)
	}
	return p, nil
}

func (s *state) listPeriods() []workforce.PayPeriod {
	out := make([]workforce.PayPeriod, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getPayroll(periodID, userID string) (workforce.PayrollCalculation, error) {
	c, ok := s.payroll[payrollKey{PeriodID: periodID, UserID: userID}]
	if !ok {
		return workforce.PayrollCalculation{}, generic.NewNotFound("payroll_calculation", periodID+"/"+userID)
	}
	return c, nil
}

func (s *state) listPayroll(periodID string) []workforce.PayrollCalculation {
	var out []workforce.PayrollCalculation
	for k, c := range s.payroll {
		if k.PeriodID == periodID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
