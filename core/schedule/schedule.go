// Package schedule runs background jobs on fixed periods or weekly wall-clock slots.
package schedule

import (
	"context"
	"time"
)

// Every calls fn each period until ctx is done. The first call happens after one period.
func Every(ctx context.Context, period time.Duration, fn func(context.Context)) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// NextWeekly returns the first instant strictly after now that falls on day at hour:00 UTC.
func NextWeekly(now time.Time, day time.Weekday, hour int) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	offset := (int(day) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, offset)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// Weekly calls fn at every occurrence of day at hour:00 UTC until ctx is done.
func Weekly(ctx context.Context, day time.Weekday, hour int, now func() time.Time, fn func(context.Context)) {
	if now == nil {
		now = time.Now
	}
	for {
		wait := NextWeekly(now(), day, hour).Sub(now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn(ctx)
		}
	}
}
