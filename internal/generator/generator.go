// Package generator renders memes: AI images through an OpenAI-compatible images API,
// template memes through a memegen-style URL, and a PNG placeholder whenever neither applies.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/netutil"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/meme"
)

// Generator implements meme.Generator.
type Generator struct {
	provider  *Provider
	templates string
	backoff   netutil.Backoff
}

var _ meme.Generator = (*Generator)(nil)

// New builds a Generator from the generation config. A missing API key disables the provider,
// and AI requests then yield the placeholder.
func New(cfg config.GenerationConfig, client *http.Client) *Generator {
	p := cfg.Provider
	if client == nil {
		client = netutil.NewClient(netutil.ClientOptions{Timeout: time.Duration(p.TimeoutSeconds) * time.Second})
	}
	g := &Generator{
		templates: cfg.TemplateBaseURL,
		backoff: netutil.Backoff{
			Attempts:   p.Attempts,
			Initial:    time.Duration(p.BackoffMS) * time.Millisecond,
			Multiplier: p.Multiplier,
		},
	}
	if p.APIKey != "" && p.Endpoint != "" {
		g.provider = &Provider{
			Endpoint: p.Endpoint,
			APIKey:   p.APIKey,
			Model:    p.Model,
			Size:     p.Size,
			Client:   client,
		}
	}
	return g
}

// Generate renders p. Provider failures after the retry budget fall back to the placeholder.
func (g *Generator) Generate(ctx context.Context, p meme.Prompt) (meme.Image, error) {
	switch p.Kind {
	case domain.KindAI:
		return g.generateAI(ctx, p)
	case domain.KindTemplate:
		u, err := TemplateURL(g.templates, p.TemplateID, p.Lines)
		if err != nil {
			return meme.Image{}, err
		}
		return meme.Image{URL: u}, nil
	case domain.KindVoice:
		// No speech-to-text backend is wired; voice memes are rendered as the placeholder.
		return Placeholder()
	default:
		return meme.Image{}, fmt.Errorf("generator: unsupported kind %q", p.Kind)
	}
}

func (g *Generator) generateAI(ctx context.Context, p meme.Prompt) (meme.Image, error) {
	if g.provider == nil {
		logger.Debug(ctx, logger.CompGenerator, "provider.disabled")
		return Placeholder()
	}
	start := time.Now()
	var img meme.Image
	err := netutil.Retry(ctx, g.backoff, func(ctx context.Context) error {
		var err error
		img, err = g.provider.Generate(ctx, p.Text)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		logger.Warn(ctx, logger.CompGenerator, "provider.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logger.Err(err),
		)
	})
	if err != nil {
		logger.Error(ctx, logger.CompGenerator, "provider.fail",
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return Placeholder()
	}
	logger.Info(ctx, logger.CompGenerator, "provider.ok", slog.Duration("duration", logger.Took(start)))
	return img, nil
}
