package apifootball

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts per logical request.
	DefaultMaxAttempts = 3

	baseBackoff = 1 * time.Second
	maxBackoff  = 10 * time.Second
)

// BackoffDelay returns the pause after the given failed attempt:
// min(1s * 2^(attempt-1), 10s). Attempt 1 -> 1s, 2 -> 2s, 3 -> 4s.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy configures Retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       SleepFunc
}

// DefaultRetryPolicy is 3 attempts with BackoffDelay and a real sleep.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     BackoffDelay,
		Sleep:       SleepContext,
	}
}

// Retry runs op until it succeeds, returns a non-retryable error, or MaxAttempts
// is reached. Attempts are strictly sequential; attempt n+1 starts only after the
// backoff following attempt n has completed. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = BackoffDelay
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == p.MaxAttempts || ctx.Err() != nil {
			break
		}
		if err := p.Sleep(ctx, p.Backoff(attempt)); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}
	return zero, lastErr
}

func isRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}
