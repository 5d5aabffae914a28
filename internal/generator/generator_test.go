package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/meme"
)

func testConfig(endpoint string) config.GenerationConfig {
	return config.GenerationConfig{
		TemplateBaseURL: "https://api.memegen.link",
		Provider: config.ProviderConfig{
			Endpoint:       endpoint,
			APIKey:         "sk-test",
			Model:          "dall-e-3",
			Size:           "1024x1024",
			TimeoutSeconds: 5,
			Attempts:       3,
			BackoffMS:      1,
			Multiplier:     2,
		},
	}
}

func TestAIRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req imageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a cat", req.Prompt)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn.example/cat.png"}]}`))
	}))
	defer srv.Close()

	g := New(testConfig(srv.URL), srv.Client())
	img, err := g.Generate(context.Background(), meme.Prompt{Kind: domain.KindAI, Text: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/cat.png", img.URL)
	assert.False(t, img.Fallback)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAIFallsBackOnPermanentFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"content policy"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g := New(testConfig(srv.URL), srv.Client())
	img, err := g.Generate(context.Background(), meme.Prompt{Kind: domain.KindAI, Text: "x"})
	require.NoError(t, err)
	assert.True(t, img.Fallback)
	assert.NotEmpty(t, img.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAIFallsBackAfterRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := New(testConfig(srv.URL), srv.Client())
	img, err := g.Generate(context.Background(), meme.Prompt{Kind: domain.KindAI, Text: "x"})
	require.NoError(t, err)
	assert.True(t, img.Fallback)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAIDecodesBase64Payload(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString([]byte("\x89PNG"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + payload + `"}]}`))
	}))
	defer srv.Close()

	g := New(testConfig(srv.URL), srv.Client())
	img, err := g.Generate(context.Background(), meme.Prompt{Kind: domain.KindAI, Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img.Data)
	assert.Equal(t, "image/png", img.ContentType)
}

func TestMissingAPIKeyYieldsPlaceholder(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Provider.APIKey = ""
	img, err := New(cfg, nil).Generate(context.Background(), meme.Prompt{Kind: domain.KindAI, Text: "x"})
	require.NoError(t, err)
	assert.True(t, img.Fallback)
}

func TestVoiceYieldsPlaceholder(t *testing.T) {
	t.Parallel()

	img, err := New(testConfig(""), nil).Generate(context.Background(), meme.Prompt{Kind: domain.KindVoice, Voice: []byte{1}})
	require.NoError(t, err)
	assert.True(t, img.Fallback)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), img.Data[:8])
}

func TestTemplateURL(t *testing.T) {
	t.Parallel()

	u, err := TemplateURL("https://api.memegen.link/", "drake", []string{"writing tests", "50% done? #yolo", ""})
	require.NoError(t, err)
	assert.Equal(t, "https://api.memegen.link/images/drake/writing_tests/50~p_done~q_~hyolo/_.png", u)

	u, err = TemplateURL("https://api.memegen.link", "two_buttons", []string{"snake_case-vs"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.memegen.link/images/two_buttons/snake__case--vs.png", u)

	_, err = TemplateURL("", "drake", nil)
	assert.Error(t, err)
}
