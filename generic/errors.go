/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or sentinels wrapping them) so callers can
  tell "your request was rejected" apart from "the system could not process it".

ERROR CATEGORIES:
  1. ErrValidation          - malformed input, caught before any write
  2. ErrStateConflict       - entity in a terminal or incompatible state
  3. ErrNotFound            - referenced entity does not exist
  4. ErrInsufficientBalance - time-off balance too small
  5. ErrNotReady            - payroll requested before its period closed
  6. ErrMissingRate         - employee has no hourly rate
  7. ErrInfrastructure      - storage failed twice; not a domain answer

USAGE:
  if errors.Is(err, generic.ErrStateConflict) {
      // caller-correctable: the entity already moved on
  }

  var ib *generic.InsufficientBalanceError
  if errors.As(err, &ib) {
      fmt.Println("short by", ib.Shortfall)
  }

SEE ALSO:
  - retry.go: turns repeated storage failures into InfrastructureError
  - api/handlers.go: maps ErrorKind to HTTP status codes
*/
package generic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CATEGORY SENTINELS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation          = errors.New("validation failed")
	ErrStateConflict       = errors.New("state conflict")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotReady            = errors.New("not ready")
	ErrMissingRate         = errors.New("missing hourly rate")
	ErrInfrastructure      = errors.New("infrastructure failure")
)

// =============================================================================
// SPECIFIC SENTINELS - Each wraps exactly one category
// =============================================================================

var (
	// ErrOutOfSchedule is returned when a clock-in falls on a non-working day
	// or after every sub-shift of the day has ended.
	ErrOutOfSchedule = fmt.Errorf("%w: outside scheduled shift", ErrValidation)

	// ErrInvalidInterval is returned when an end time is not after its start.
	ErrInvalidInterval = fmt.Errorf("%w: end must be after start", ErrValidation)

	// ErrDuplicateAttempt is returned when a pending early clock-in attempt
	// already exists for the same user and scheduled start.
	ErrDuplicateAttempt = fmt.Errorf("%w: pending early clock-in attempt exists", ErrStateConflict)

	// ErrPendingCorrectionExists is returned when a time entry already has a
	// correction awaiting a decision.
	ErrPendingCorrectionExists = fmt.Errorf("%w: pending correction exists", ErrStateConflict)

	// ErrAlreadyDecided is returned when deciding a request that is no longer pending.
	ErrAlreadyDecided = fmt.Errorf("%w: already decided", ErrStateConflict)

	// ErrAlreadyClockedIn is returned when the user has an active time entry.
	ErrAlreadyClockedIn = fmt.Errorf("%w: already clocked in", ErrStateConflict)

	// ErrOverlappingEntry is returned when a time entry would overlap another
	// entry of the same user, which would double-count hours.
	ErrOverlappingEntry = fmt.Errorf("%w: overlaps an existing time entry", ErrStateConflict)

	// ErrPeriodClosed is returned when modifying a closed pay period.
	ErrPeriodClosed = fmt.Errorf("%w: pay period is closed", ErrStateConflict)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// NewValidationError returns a ValidationError with a single field issue.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v.FieldErrors[f]
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error { return ErrValidation }

// Add records a field level validation error. The first message per field wins.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, ok := v.FieldErrors[field]; !ok {
		v.FieldErrors[field] = message
	}
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Err returns v as an error, or nil when nothing was recorded.
func (v *ValidationError) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

// StateConflictError reports an operation attempted on an entity whose current
// state does not allow it.
type StateConflictError struct {
	Kind   string // e.g. "time_correction"
	ID     string
	Status string // current status of the entity
	Action string // attempted action
	Err    error  // specific sentinel, wraps ErrStateConflict
}

func (e *StateConflictError) Error() string {
	reason := ErrStateConflict
	if e.Err != nil {
		reason = e.Err
	}
	return fmt.Sprintf("%s %s: cannot %s in status %q: %v", e.Kind, e.ID, e.Action, e.Status, reason)
}

func (e *StateConflictError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrStateConflict
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFound(kind, id string) *NotFoundError { return &NotFoundError{Kind: kind, ID: id} }

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s: not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID    string
	Type      string
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %s, requested %s, shortfall %s",
		e.Type, e.UserID, e.Available.Value, e.Requested.Value, e.Shortfall.Value)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InfrastructureError wraps a storage failure that persisted across a retry.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInfrastructure, e.Err)
}

func (e *InfrastructureError) Unwrap() []error { return []error{ErrInfrastructure, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDomainError reports whether err belongs to the domain taxonomy, i.e. the
// request was understood and rejected.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrMissingRate)
}

// IsClientError returns true if the error is due to invalid client input or state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	if err == nil || IsDomainError(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ErrorKind maps taxonomy errors to a stable label for logs and transports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrMissingRate):
		return "missing_rate"
	case errors.Is(err, ErrInfrastructure):
		return "infrastructure"
	}
	return "unexpected"
}
