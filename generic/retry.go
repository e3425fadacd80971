package generic

import (
	"context"
	"sync"
)

// =============================================================================
// RETRY - One retry for storage failures
// =============================================================================

// Retry runs fn and, if it fails with a retryable (non-domain) error, runs it
// once more. A second failure is returned as an InfrastructureError. Domain
// errors and context cancellation are returned unchanged on the first attempt.
func Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for operations that return a value.
func RetryValue[T any](ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if !IsRetryable(err) {
		return v, err
	}
	if ctx.Err() != nil {
		return v, &InfrastructureError{Op: op, Err: err}
	}
	v, err = fn(ctx)
	if IsRetryable(err) {
		var zero T
		return zero, &InfrastructureError{Op: op, Err: err}
	}
	return v, err
}

// =============================================================================
// KEYED MUTEX - In-process serialization per key
// =============================================================================

// KeyedMutex hands out one mutex per key. Entries are reference counted and
// removed once the last holder unlocks.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
