package retry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendottv/discordbot/internal/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   1 * time.Millisecond,
	RateLimitBackoff: 5 * time.Millisecond,
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysStop, func() (struct{}, error) {
		calls++
		return struct{}{}, permanent
	})

	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("transient")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (struct{}, error) {
		calls++
		return struct{}{}, underlying
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, underlying)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), retry.Policy{}, alwaysRetry, func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffSchedule(t *testing.T) {
	tests := []struct {
		name     string
		policy   retry.Policy
		classify retry.Classify
		want     []time.Duration
	}{
		{
			name:     "doubling",
			policy:   retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond},
			classify: alwaysRetry,
			want:     []time.Duration{time.Millisecond, 2 * time.Millisecond},
		},
		{
			name:     "rate limited",
			policy:   retry.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond, RateLimitBackoff: 5 * time.Millisecond},
			classify: func(error) retry.Action { return retry.After },
			want:     []time.Duration{5 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var observed []time.Duration
			p := tt.policy
			p.OnRetry = func(_ int, _ error, backoff time.Duration) {
				observed = append(observed, backoff)
			}

			_, _ = retry.Do(context.Background(), p, tt.classify, func() (struct{}, error) {
				return struct{}{}, errors.New("fail")
			})
			assert.Equal(t, tt.want, observed)
		})
	}
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Second,
	}

	calls := 0
	_, err := retry.Do(ctx, p, alwaysRetry, func() (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_WaitsOnPolicyClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.Policy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, Clock: clock}

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(context.Background(), p, alwaysRetry, func() (struct{}, error) {
			calls.Add(1)
			return struct{}{}, errors.New("transient")
		})
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), calls.Load())

	// the first wait is 2s, so 1s is not enough
	clock.Advance(time.Second)
	assert.Equal(t, int32(1), calls.Load())
	clock.Advance(time.Second)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(2), calls.Load())
	clock.Advance(4 * time.Second)

	err := <-done
	assert.ErrorContains(t, err, "failed after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func alwaysRetry(error) retry.Action { return retry.Retry }
func alwaysStop(error) retry.Action  { return retry.Stop }
