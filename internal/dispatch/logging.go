package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/domain"
)

// logHandled writes the one summary line per update.
func logHandled(ctx context.Context, handler string, start time.Time, err error) {
	ctx = logger.WithHandler(ctx, handler)

	status, outcome := "ok", "ok"
	if err != nil {
		status, outcome = "fail", "fail"
		if isUserError(err) {
			status, outcome = "ok", "rejected"
		}
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handler),
		slog.String("outcome", outcome),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(ctx, logger.CompDispatch, "handler.handled", attrs...)
}

func errorCode(err error) string {
	return strings.ToUpper(domain.CodeOf(err))
}
