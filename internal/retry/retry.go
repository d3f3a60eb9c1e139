// Package retry runs an operation in an explicit bounded loop, sleeping
// between attempts according to how the returned error is classified.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Action tells the loop what to do with a failed attempt
type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, use normal backoff
	After               // rate-limited, use longer backoff
)

// Policy bounds a retry loop. The backoff doubles after every wait.
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration

	// Clock drives the waits; nil means the wall clock
	Clock clockwork.Clock

	OnRetry func(attempt int, err error, backoff time.Duration)
}

type Classify func(err error) Action
type Operation[T any] func() (T, error)

// Do calls op until it succeeds, classify returns Stop, or MaxAttempts is reached
func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	var zero T
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := max(p.MaxAttempts, 1)
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			return zero, &PermanentError{Err: err}
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}

		wait := backoff
		if action == After && p.RateLimitBackoff > 0 {
			wait = p.RateLimitBackoff
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		if err := sleep(ctx, clock, wait); err != nil {
			return zero, err
		}
		backoff *= 2
	}
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
	}
}

// PermanentError marks an error that classify refused to retry
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
