// Package telegram wires telebot: poller, middleware chain, routes, command menu and the outbound queue.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/netutil"
	tghelpers "github.com/m3rciful/memearena/core/telegram/helpers"
	tgsender "github.com/m3rciful/memearena/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint such as tele.OnText or "/start".
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Runtime exposes the live bot to route builders and lifecycle hooks.
type Runtime struct {
	Bot    *tele.Bot
	Outbox *tgsender.Outbox
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config        *coreconfig.Config
	OutboxOptions tgsender.Options

	Middlewares []Middleware
	// Routes is called once the bot exists so handlers can capture the runtime.
	Routes func(rt Runtime) []Route
	// Commands is evaluated after Routes and published as the bot menu.
	Commands func() []tele.Command

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// RunTelegram builds the bot and serves updates until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	cfg := opts.Config

	pollOpts := PollerOptionsFrom(cfg)
	poller := BuildPoller(pollOpts)

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		// Long polls hold the request open, so the client must outlive the poll timeout.
		Client: netutil.NewClient(netutil.ClientOptions{
			Timeout: pollOpts.pollTimeout() + 15*time.Second,
			Retries: 1,
			Backoff: 500 * time.Millisecond,
		}),
		OnError: func(err error, c tele.Context) {
			logger.Error(tghelpers.BuildContext(c), logger.CompTG, "handler.error", logger.Err(err))
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	rt := Runtime{Bot: bot, Outbox: tgsender.New(opts.OutboxOptions)}
	defer rt.Outbox.Close()

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.Took(buildStart)),
		)
	default:
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", pollOpts.pollTimeout()),
			slog.Duration("duration", logger.Took(buildStart)),
		)
		if !opts.DisableWebhookCleanup {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.Warn(ctx, logger.CompTG, "delete_webhook.fail", logger.Err(err))
			}
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
		logger.Debug(ctx, logger.CompTGWire, "middleware.use", slog.String("name", mw.Name))
	}
	routes := 0
	if opts.Routes != nil {
		for _, route := range opts.Routes(rt) {
			if route.Endpoint == nil || route.Handler == nil {
				continue
			}
			bot.Handle(route.Endpoint, route.Handler)
			routes++
		}
	}
	logger.Info(ctx, logger.CompTGWire, "routes.registered", slog.Int("count", routes))

	if opts.Commands != nil {
		if cmds := opts.Commands(); len(cmds) > 0 {
			if err := bot.SetCommands(cmds); err != nil {
				logger.Warn(ctx, logger.CompTGWire, "commands.set.fail", logger.Err(err))
			}
		}
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
	case <-runDone:
	}
	logger.Info(ctx, logger.CompTG, "stopped")

	if opts.OnStop != nil {
		return opts.OnStop(logger.Detach(ctx), rt)
	}
	return nil
}
