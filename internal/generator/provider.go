package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/m3rciful/memearena/core/netutil"
	"github.com/m3rciful/memearena/internal/meme"
)

const maxErrorBody = 4 << 10

// Provider calls an OpenAI-compatible /images/generations endpoint.
type Provider struct {
	Endpoint string
	APIKey   string
	Model    string
	Size     string
	Client   *http.Client
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one request. 429 and 5xx responses are retryable; other failures are permanent.
func (p *Provider) Generate(ctx context.Context, prompt string) (meme.Image, error) {
	body, err := json.Marshal(imageRequest{Model: p.Model, Prompt: prompt, N: 1, Size: p.Size})
	if err != nil {
		return meme.Image{}, netutil.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return meme.Image{}, netutil.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return meme.Image{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("images api: %s: %s", resp.Status, bytes.TrimSpace(msg))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return meme.Image{}, &netutil.TemporaryError{StatusCode: resp.StatusCode, Err: statusErr}
		}
		return meme.Image{}, netutil.Permanent(statusErr)
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return meme.Image{}, netutil.Permanent(fmt.Errorf("images api: decode: %w", err))
	}
	if out.Error != nil {
		return meme.Image{}, netutil.Permanent(errors.New("images api: " + out.Error.Message))
	}
	if len(out.Data) == 0 {
		return meme.Image{}, netutil.Permanent(errors.New("images api: empty data"))
	}
	d := out.Data[0]
	switch {
	case d.URL != "":
		return meme.Image{URL: d.URL}, nil
	case d.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return meme.Image{}, netutil.Permanent(fmt.Errorf("images api: b64: %w", err))
		}
		return meme.Image{Data: raw, ContentType: "image/png"}, nil
	default:
		return meme.Image{}, netutil.Permanent(errors.New("images api: no image in response"))
	}
}
