// Package imagestore persists generated images on the local filesystem.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/netutil"
	"github.com/m3rciful/memearena/internal/meme"
)

// MaxImageBytes caps downloads and inline payloads.
const MaxImageBytes = 20 << 20

// ErrTooLarge is returned for images above MaxImageBytes.
var ErrTooLarge = errors.New("imagestore: image too large")

// Store writes images under Dir with uuid file names. Refs are the file names, so they never
// contain ':' and fit into callback payloads.
type Store struct {
	dir       string
	publicURL string
	client    *http.Client
}

var _ meme.Storage = (*Store)(nil)

// New prepares dir and returns a Store. When publicURL is empty the stored URL is the local path.
func New(dir, publicURL string, client *http.Client) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("imagestore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: create %s: %w", dir, err)
	}
	if client == nil {
		client = netutil.NewClient(netutil.ClientOptions{Timeout: 30 * time.Second, Retries: 2, Backoff: time.Second})
	}
	return &Store{dir: dir, publicURL: strings.TrimRight(publicURL, "/"), client: client}, nil
}

// Persist stores inline bytes as-is or downloads a remote URL first.
func (s *Store) Persist(ctx context.Context, img meme.Image) (meme.Stored, error) {
	data, contentType := img.Data, img.ContentType
	if len(data) == 0 {
		if img.URL == "" {
			return meme.Stored{}, errors.New("imagestore: image has neither data nor url")
		}
		var err error
		data, contentType, err = s.download(ctx, img.URL)
		if err != nil {
			return meme.Stored{}, err
		}
	}
	if len(data) > MaxImageBytes {
		return meme.Stored{}, ErrTooLarge
	}

	name := uuid.NewString() + extension(contentType)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return meme.Stored{}, fmt.Errorf("imagestore: write: %w", err)
	}
	logger.Debug(ctx, logger.CompStorage, "image.stored",
		slog.String("ref", name),
		slog.Int("bytes", len(data)),
	)
	return meme.Stored{Ref: name, URL: s.URL(name)}, nil
}

// URL resolves a ref to the public URL or, without one, to the local path.
func (s *Store) URL(ref string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + ref
	}
	return filepath.Join(s.dir, ref)
}

// Path returns the local file for ref.
func (s *Store) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}

func (s *Store) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagestore: request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imagestore: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("imagestore: download: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imagestore: read: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrTooLarge
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}

func extension(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".png"
	}
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
