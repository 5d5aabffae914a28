// Package broadcast delivers one message to many chats under a token-bucket rate limit.
package broadcast

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/logger"
)

// Report summarizes one broadcast run.
type Report struct {
	Total  int
	Sent   int
	Failed int
}

// Deliver sends the message to a single chat.
type Deliver func(ctx context.Context, chatID int64) error

// Broadcaster fans deliveries out to a fixed number of workers sharing one limiter.
type Broadcaster struct {
	limiter *rate.Limiter
	workers int
}

// New builds a Broadcaster from the broadcast config section.
func New(cfg config.BroadcastConfig) *Broadcaster {
	perSecond, burst, workers := cfg.RatePerSecond, cfg.Burst, cfg.Workers
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 1
	}
	if workers <= 0 {
		workers = 4
	}
	return &Broadcaster{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		workers: workers,
	}
}

// Run delivers to every recipient. A failed delivery is counted and logged; it never stops the
// remaining recipients. Recipients not reached before ctx is done count as failed.
func (b *Broadcaster) Run(ctx context.Context, recipients []int64, deliver Deliver) Report {
	start := time.Now()
	var sent, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(b.workers)
	for _, id := range recipients {
		if ctx.Err() != nil {
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			if err := b.limiter.Wait(ctx); err != nil {
				failed.Add(1)
				return nil
			}
			if err := deliver(ctx, id); err != nil {
				failed.Add(1)
				logger.Warn(ctx, logger.CompBroadcast, "deliver.fail",
					slog.Int64("chat_id", id),
					logger.Err(err),
				)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Total: len(recipients), Sent: int(sent.Load()), Failed: int(failed.Load())}
	logger.Info(ctx, logger.CompBroadcast, "broadcast.done",
		slog.Int("total", rep.Total),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return rep
}
