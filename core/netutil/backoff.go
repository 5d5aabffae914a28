package netutil

import (
	"context"
	"time"
)

// Backoff describes a bounded exponential retry policy.
type Backoff struct {
	Attempts   int
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// Delay returns the pause before the given retry (attempt counts from 1).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		d *= mult
		if b.Max > 0 && time.Duration(d) >= b.Max {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, returns a non-retryable error, the attempts run out
// or ctx is done. onRetry, when set, observes each scheduled retry.
func Retry(ctx context.Context, b Backoff, fn func(ctx context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !ShouldRetry(lastErr) || attempt == attempts {
			return lastErr
		}
		delay := b.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
