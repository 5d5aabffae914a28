package transport

import (
	"context"
	"log/slog"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/telegram"
	tghelpers "github.com/m3rciful/memearena/core/telegram/helpers"
	"github.com/m3rciful/memearena/internal/dispatch"

	tele "gopkg.in/telebot.v4"
)

// Handler is the dispatcher entry point.
type Handler interface {
	Handle(ctx context.Context, u dispatch.Update)
}

// Routes binds text, voice and callback updates to h. Commands arrive as text:
// telebot falls back to OnText when no command endpoint is registered.
func Routes(api API, h Handler) []telegram.Route {
	handle := func(kind string) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.WithHandler(c, kind)
			upd, err := ToUpdate(api, c.Update())
			if err != nil {
				logger.Warn(ctx, logger.CompTG, "update.convert.fail",
					slog.String("kind", kind),
					logger.Err(err),
				)
				if c.Callback() != nil {
					return c.Respond()
				}
				return nil
			}
			h.Handle(ctx, upd)
			return nil
		}
	}
	return []telegram.Route{
		{Endpoint: tele.OnText, Handler: handle("text")},
		{Endpoint: tele.OnVoice, Handler: handle("voice")},
		{Endpoint: tele.OnCallback, Handler: handle("callback")},
	}
}

// BotCommands maps the dispatcher command list onto the bot menu.
func BotCommands(cmds []dispatch.CommandInfo) []tele.Command {
	out := make([]tele.Command, len(cmds))
	for i, c := range cmds {
		out[i] = tele.Command{Text: c.Name, Description: c.Description}
	}
	return out
}
