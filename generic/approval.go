/*
approval.go - One pending/approved/denied state machine for every request type

PURPOSE:
  Early clock-in attempts, time corrections and time-off requests all move
  through the same lifecycle. Workflow[T] owns the transition rules; each
  request type supplies only its side effect on approval (and optionally on
  denial).

STATE MACHINE:
  ┌─────────┐  approve  ┌──────────┐
  │ pending │──────────▶│ approved │  (terminal)
  └─────────┘           └──────────┘
       │       deny     ┌──────────┐
       └───────────────▶│  denied  │  (terminal)
                        └──────────┘

  Any decision on a terminal item fails with ErrAlreadyDecided and the
  side effect is never re-applied. If the approval side effect fails the
  item stays pending.

USAGE:
  wf := generic.Workflow[*workforce.TimeCorrection]{
      OnApprove: func(ctx context.Context, c *workforce.TimeCorrection) error {
          return applyToEntry(ctx, c)
      },
  }
  if err := wf.Decide(ctx, correction, generic.Approve); err != nil { ... }
  // persist correction (its status is now approved)

SEE ALSO:
  - clock/attempt.go, correction/correction.go, timeoff/request.go
*/
package generic

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// STATUS & DECISION
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusDenied }

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusDenied
}

type Decision string

const (
	Approve Decision = "approve"
	Deny    Decision = "deny"
)

func (d Decision) Valid() bool { return d == Approve || d == Deny }

// ParseDecision accepts "approve"/"approved" and "deny"/"denied"/"reject".
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return Approve, nil
	case "deny", "denied", "reject", "rejected":
		return Deny, nil
	}
	return "", NewValidationError("decision", fmt.Sprintf("unknown decision %q", s))
}

// =============================================================================
// WORKFLOW
// =============================================================================

// Approvable is implemented by entities that move through the approval lifecycle.
type Approvable interface {
	ApprovalKind() string
	ApprovalID() string
	ApprovalStatus() Status
	SetApprovalStatus(Status)
}

// Workflow decides Approvable items. The zero value is a valid workflow with
// no side effects.
type Workflow[T Approvable] struct {
	OnApprove func(ctx context.Context, item T) error
	OnDeny    func(ctx context.Context, item T) error
}

// Decide moves item out of pending. Callers run it inside the store
// transaction that also persists item and whatever the hooks touched.
func (w Workflow[T]) Decide(ctx context.Context, item T, d Decision) error {
	if !d.Valid() {
		return NewValidationError("decision", fmt.Sprintf("unknown decision %q", d))
	}
	current := item.ApprovalStatus()
	if current != StatusPending {
		return &StateConflictError{
			Kind:   item.ApprovalKind(),
			ID:     item.ApprovalID(),
			Status: string(current),
			Action: string(d),
			Err:    ErrAlreadyDecided,
		}
	}

	next, hook := StatusApproved, w.OnApprove
	if d == Deny {
		next, hook = StatusDenied, w.OnDeny
	}
	if hook != nil {
		if err := hook(ctx, item); err != nil {
			return err
		}
	}
	item.SetApprovalStatus(next)
	return nil
}
