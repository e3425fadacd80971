package generic_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeclock-engine/generic"
)

// =============================================================================
// ERROR TAXONOMY TESTS
// =============================================================================

func TestErrorKind(t *testing.T) {
	insufficient := &generic.InsufficientBalanceError{
		UserID:    "u1",
		Type:      "PTO",
		Available: generic.Days(decimal.NewFromInt(1)),
		Requested: generic.Days(decimal.NewFromInt(2)),
		Shortfall: generic.Days(decimal.NewFromInt(1)),
	}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", generic.NewValidationError("field", "bad"), "validation"},
		{"out of schedule", generic.ErrOutOfSchedule, "validation"},
		{"wrapped duplicate attempt", fmt.Errorf("insert: %w", generic.ErrDuplicateAttempt), "state_conflict"},
		{"not found", generic.NewNotFound("time_entry", "e1"), "not_found"},
		{"insufficient balance", insufficient, "insufficient_balance"},
		{"not ready", generic.ErrNotReady, "not_ready"},
		{"missing rate", generic.ErrMissingRate, "missing_rate"},
		{"infrastructure", &generic.InfrastructureError{Op: "x", Err: errors.New("disk")}, "infrastructure"},
		{"unexpected", errors.New("boom"), "unexpected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.ErrorKind(tt.err))
		})
	}
}

func TestValidationError_CollectsFields(t *testing.T) {
	verr := &generic.ValidationError{}
	assert.NoError(t, verr.Err())

	verr.Add("start", "required")
	verr.Add("end", "required")
	verr.Add("start", "ignored second message")

	err := verr.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, "validation failed: end: required; start: required", err.Error())
}

func TestInsufficientBalanceError_Message(t *testing.T) {
	err := &generic.InsufficientBalanceError{
		UserID:    "u1",
		Type:      "PTO",
		Available: generic.Days(decimal.Zero),
		Requested: generic.Days(decimal.NewFromInt(1)),
		Shortfall: generic.Days(decimal.NewFromInt(1)),
	}

	assert.Contains(t, err.Error(), "insufficient PTO balance for u1")
	assert.True(t, generic.IsClientError(err))
	assert.False(t, generic.IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, generic.IsRetryable(nil))
	assert.False(t, generic.IsRetryable(generic.ErrOverlappingEntry))
	assert.False(t, generic.IsRetryable(context.Canceled))
	assert.True(t, generic.IsRetryable(errors.New("connection reset")))
}

// =============================================================================
// RETRY TESTS
// =============================================================================

func TestRetry_RetriesStorageFailureOnce(t *testing.T) {
	// GIVEN: An operation failing once with a storage error
	// WHEN: It runs under Retry
	// THEN: The second attempt's result is returned

	calls := 0
	err := generic.Retry(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("database is locked")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_SecondFailureIsInfrastructure(t *testing.T) {
	disk := errors.New("disk full")
	calls := 0

	_, err := generic.RetryValue(context.Background(), "store.write", func(ctx context.Context) (int, error) {
		calls++
		return 0, disk
	})

	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, generic.ErrInfrastructure)
	assert.ErrorIs(t, err, disk)
	assert.Equal(t, "infrastructure", generic.ErrorKind(err))
}

func TestRetry_DomainErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := generic.Retry(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return generic.ErrPendingCorrectionExists
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, generic.ErrPendingCorrectionExists)
}

// =============================================================================
// KEYED MUTEX TESTS
// =============================================================================

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	var (
		km      generic.KeyedMutex
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("period/u1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	var km generic.KeyedMutex
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}
