package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/memearena/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongpollDefaults(t *testing.T) {
	p, ok := BuildPoller(PollerOptions{RunMode: coreconfig.RunModeLongpoll}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, p.Timeout)
}

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: "Webhook"},
		Webhook:  coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://memes.example.org/hook"},
	}
	p, ok := BuildPoller(PollerOptionsFrom(cfg)).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", p.Listen)
	assert.Equal(t, "https://memes.example.org/hook", p.Endpoint.PublicURL)
}

func TestDefaultMiddlewaresAddsRateLimitWhenConfigured(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, len(mws))
		for i, m := range mws {
			out[i] = m.Name
		}
		return out
	}

	assert.Equal(t, []string{"recover", "logger", "private_only"}, names(DefaultMiddlewares(&coreconfig.Config{}, nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	assert.Equal(t, []string{"recover", "logger", "private_only", "rate_limit"}, names(DefaultMiddlewares(cfg, nil)))
}

type answeringCtx struct {
	tele.Context
	answered int
}

func (c *answeringCtx) Respond(...*tele.CallbackResponse) error {
	c.answered++
	return nil
}

func TestDefaultMiddlewaresAnswerLimitedCallbacks(t *testing.T) {
	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 60_000}}
	mws := DefaultMiddlewares(cfg, nil)

	var handled int
	h := tele.HandlerFunc(func(tele.Context) error {
		handled++
		return nil
	})
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].Use(h)
	}

	tap := func() *answeringCtx {
		return &answeringCtx{Context: tele.NewContext(nil, tele.Update{
			ID: 7,
			Callback: &tele.Callback{
				ID:     "cb",
				Sender: &tele.User{ID: 1},
				Data:   "vote:1",
			},
		})}
	}
	first, second := tap(), tap()
	require.NoError(t, h(first))
	require.NoError(t, h(second))

	assert.Equal(t, 1, handled)
	assert.Zero(t, first.answered)
	assert.Equal(t, 1, second.answered)
}
