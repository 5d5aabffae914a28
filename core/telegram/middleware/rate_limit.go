package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	tghelpers "github.com/m3rciful/memearena/core/telegram/helpers"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum spacing between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds (see UpdateKind) that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// LimitedReply answers an update dropped by the limiter. Callbacks are always acknowledged
// so the client stops its spinner; messages get text when it is set.
func LimitedReply(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: text})
		}
		if text == "" {
			return nil
		}
		return c.Send(text)
	}
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimitMiddleware drops updates arriving faster than one per Interval from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		mu        sync.Mutex
		limiters  = make(map[int64]*userLimiter)
		lastSweep time.Time
	)
	allow := func(userID int64, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		// Forget users idle for a while so the map stays bounded by active users.
		if now.Sub(lastSweep) > time.Minute {
			for id, l := range limiters {
				if now.Sub(l.seen) > 10*opts.Interval && now.Sub(l.seen) > time.Minute {
					delete(limiters, id)
				}
			}
			lastSweep = now
		}
		l, ok := limiters[userID]
		if !ok {
			l = &userLimiter{lim: rate.NewLimiter(rate.Every(opts.Interval), 1)}
			limiters[userID] = l
		}
		l.seen = now
		return l.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "tg.rate_limit",
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
