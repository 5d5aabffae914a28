// Package app assembles the bot: storage, sessions, the generation pipeline, the contest
// tracker, background loops and the Telegram transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/telegram"
	"github.com/m3rciful/memearena/core/telegram/middleware"
	"github.com/m3rciful/memearena/internal/auth"
	"github.com/m3rciful/memearena/internal/broadcast"
	"github.com/m3rciful/memearena/internal/contest"
	"github.com/m3rciful/memearena/internal/dispatch"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/generator"
	"github.com/m3rciful/memearena/internal/i18n"
	"github.com/m3rciful/memearena/internal/imagestore"
	"github.com/m3rciful/memearena/internal/meme"
	"github.com/m3rciful/memearena/internal/session"
	"github.com/m3rciful/memearena/internal/storage/memory"
	"github.com/m3rciful/memearena/internal/storage/postgres"
	"github.com/m3rciful/memearena/internal/transport"

	tele "gopkg.in/telebot.v4"
)

// App owns every long-lived component. Build it with New, attach a sender with
// Dispatcher, and release it with Close.
type App struct {
	cfg *config.Config

	users    domain.UserRepository
	memes    domain.MemeRepository
	ledger   domain.ContestLedger
	sessions *session.Store
	reaper   *session.Reaper
	pool     *meme.Pool
	pipeline *meme.Pipeline
	tracker  *contest.Tracker
	images   *imagestore.Store
	text     *i18n.Catalog
	auth     *auth.Verifier
	bcast    *broadcast.Broadcaster

	mu         sync.Mutex
	dispatcher *dispatch.Dispatcher
	closeOnce  sync.Once
}

// New wires the services. db must be non-nil for the postgres driver and is ignored otherwise.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if db == nil {
			return nil, errors.New("app: postgres storage needs a database handle")
		}
		s := postgres.New(db)
		a.users, a.memes, a.ledger = s.Users(), s.Memes(), s.Ledger()
	default:
		s := memory.New()
		a.users, a.memes, a.ledger = s.Users(), s.Memes(), s.Ledger()
	}

	text, err := i18n.Load(cfg.I18n.Path)
	if err != nil {
		return nil, err
	}
	a.text = text

	if a.auth, err = auth.New(cfg.Admin); err != nil {
		return nil, err
	}

	if a.images, err = imagestore.New(cfg.Storage.ImageDir, cfg.Storage.PublicURL, nil); err != nil {
		return nil, err
	}

	sessOpts := []session.Option{}
	if cfg.Session.Shards > 0 {
		sessOpts = append(sessOpts, session.WithShards(cfg.Session.Shards))
	}
	a.sessions = session.NewStore(sessOpts...)
	a.reaper = session.NewReaper(a.sessions, cfg.Session.ReaperPeriod(), cfg.Session.IdleTimeout())

	pc := cfg.Generation.Pool
	if a.pool, err = meme.NewPool(meme.PoolOptions{Core: pc.Core, Max: pc.Max, Queue: pc.Queue}); err != nil {
		return nil, err
	}

	a.pipeline = meme.NewPipeline(meme.Deps{
		Generator:  generator.New(cfg.Generation, nil),
		Storage:    a.images,
		Memes:      a.memes,
		Users:      a.users,
		Sessions:   a.sessions,
		Pool:       a.pool,
		Features:   meme.NewFeatures(enabled(cfg.Generation.AIEnabled), enabled(cfg.Generation.VoiceEnabled)),
		JobTimeout: time.Duration(cfg.Generation.JobTimeoutSeconds) * time.Second,
	})

	a.tracker = contest.NewTracker(a.ledger, contest.Options{
		RequiredParticipants: cfg.Contest.RequiredParticipants,
		OnEnd:                a.notifyWinner,
	})
	a.bcast = broadcast.New(cfg.Broadcast)

	if !a.auth.Configured() {
		logger.Warn(context.Background(), logger.CompApp, "admin.secret.missing")
	}
	return a, nil
}

func enabled(b *bool) bool { return b == nil || *b }

// Dispatcher builds the update dispatcher around sender. It is created once.
func (a *App) Dispatcher(sender dispatch.Sender) *dispatch.Dispatcher {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dispatcher == nil {
		a.dispatcher = dispatch.New(dispatch.Deps{
			Sessions:    a.sessions,
			Users:       a.users,
			Memes:       a.memes,
			Pipeline:    a.pipeline,
			Contest:     a.tracker,
			Broadcaster: a.bcast,
			Sender:      sender,
			Text:        a.text,
			Auth:        a.auth,
		})
	}
	return a.dispatcher
}

func (a *App) notifyWinner(ctx context.Context, r domain.ContestResult) {
	a.mu.Lock()
	d := a.dispatcher
	a.mu.Unlock()
	if d == nil {
		logger.Warn(ctx, logger.CompContest, "winner.notify.skip", slog.Int64("user_id", r.WinnerUserID))
		return
	}
	d.NotifyWinner(ctx, r)
}

// Background runs the session reaper and the weekly contest sweep until ctx is done.
func (a *App) Background(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.reaper.Run(ctx)
		return nil
	})
	if enabled(a.cfg.Contest.WeeklySweep) {
		day, err := a.cfg.Contest.Weekday()
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		g.Go(func() error {
			a.tracker.RunWeekly(ctx, day, a.cfg.Contest.SweepHourUTC)
			return nil
		})
	}
	return g.Wait()
}

// Close stops background admin jobs and drains the generation pool.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		d := a.dispatcher
		a.mu.Unlock()
		if d != nil {
			d.Shutdown()
		}
		a.pool.Close()
	})
}

// Serve runs the Telegram bot and the background loops until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	bgCtx, stopBg := context.WithCancel(ctx)
	defer stopBg()
	var bg errgroup.Group

	started := time.Now()
	var d *dispatch.Dispatcher
	return telegram.RunTelegram(ctx, telegram.RunOptions{
		Config:      a.cfg,
		Middlewares: telegram.DefaultMiddlewares(a.cfg, middleware.LimitedReply(a.text.Text("common.slow_down"))),
		Routes: func(rt telegram.Runtime) []telegram.Route {
			d = a.Dispatcher(transport.NewSender(rt.Bot, rt.Outbox, a.images))
			return transport.Routes(rt.Bot, d)
		},
		Commands: func() []tele.Command {
			return transport.BotCommands(d.Commands())
		},
		OnStart: func(ctx context.Context, _ telegram.Runtime) error {
			bg.Go(func() error { return a.Background(bgCtx) })
			logger.Info(ctx, logger.CompApp, "ready",
				slog.String("storage", a.cfg.Storage.Driver),
				slog.Duration("startup_duration", logger.Took(started)),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ telegram.Runtime) error {
			logger.Info(ctx, logger.CompApp, "shutdown")
			stopBg()
			err := bg.Wait()
			a.Close()
			return err
		},
	})
}
