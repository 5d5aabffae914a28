package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/schedule"
)

// Reaper periodically purges idle sessions from a Store.
type Reaper struct {
	store   *Store
	period  time.Duration
	maxIdle time.Duration
}

// NewReaper builds a Reaper sweeping every period and removing sessions idle longer than maxIdle.
func NewReaper(store *Store, period, maxIdle time.Duration) *Reaper {
	return &Reaper{store: store, period: period, maxIdle: maxIdle}
}

// Run blocks until ctx is done, sweeping once per period.
func (r *Reaper) Run(ctx context.Context) {
	logger.Info(ctx, logger.CompSessions, "reaper.start",
		slog.Duration("period", r.period),
		slog.Duration("max_idle", r.maxIdle),
	)
	schedule.Every(ctx, r.period, func(ctx context.Context) { r.Sweep(ctx) })
}

// Sweep runs one expiry pass and returns the number of removed sessions.
func (r *Reaper) Sweep(ctx context.Context) int {
	start := time.Now()
	removed := r.store.SweepExpired(r.maxIdle)
	logger.Info(ctx, logger.CompSessions, "reaper.sweep",
		slog.String("status", "ok"),
		slog.Int("removed", removed),
		slog.Int("live", r.store.Len()),
		slog.Duration("duration", logger.Took(start)),
	)
	return removed
}
