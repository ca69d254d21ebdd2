// Package retry is the shared retry policy for I/O-bound calls: bounded
// attempts, a fixed backoff schedule, and a pluggable retryable/terminal
// classification.
package retry

import (
	"context"
	"errors"
	"time"
)

// Transient marks an error as worth retrying. Wrap with Mark, test with
// errors.Is(err, Transient).
var Transient = errors.New("transient")

type transientError struct{ err error }

func (e *transientError) Error() string        { return e.err.Error() }
func (e *transientError) Unwrap() error        { return e.err }
func (e *transientError) Is(target error) bool { return target == Transient }

// Mark wraps err so the default policy will retry it.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type Policy struct {
	// MaxAttempts counts the first try, so 3 means two retries.
	MaxAttempts int
	// Backoff is slept between attempts; the last entry repeats if attempts
	// outnumber entries.
	Backoff []time.Duration
	// Retryable decides per error; nil means errors.Is(err, Transient).
	Retryable func(error) bool
}

// Default matches the fetch behaviour the service needs: 1s then 2s between
// three attempts.
var Default = Policy{
	MaxAttempts: 3,
	Backoff:     []time.Duration{time.Second, 2 * time.Second},
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return errors.Is(err, Transient)
}

// Do runs fn until it succeeds, returns a terminal error, or attempts run out.
// Context cancellation stops the loop immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && len(p.Backoff) > 0 {
			d := p.Backoff[min(i-1, len(p.Backoff)-1)]
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !p.retryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return err
}
