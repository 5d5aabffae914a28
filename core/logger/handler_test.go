package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(format logFormat) (*slog.Logger, *asyncWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return slog.New(handler), aw, buf
}

func closeWriter(t *testing.T, aw *asyncWriter) {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, aw, buf := newTestLogger(formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", CompDispatch), slog.LevelInfo, "update.routed",
		slog.String("status", "OK"),
		slog.String("state", "idle"),
	)
	closeWriter(t, aw)

	tokens := strings.Split(strings.TrimSpace(buf.String()), " ")
	expected := []string{"ts=", "level=INFO", "component=dispatch", "event=update.routed", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "state=idle"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%v)", len(tokens), tokens)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONCompactsRID(t *testing.T) {
	log, aw, buf := newTestLogger(formatJSON)
	ctx := WithRID(context.Background(), "12:34:56")

	LogEvent(ctx, log.With("component", CompContest), slog.LevelError, "contest.end.fail",
		slog.String("status", "fail"),
		slog.Any("err", errors.New("boom")),
	)
	closeWriter(t, aw)

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{`"level":"ERROR"`, `"rid":"c.y.1k"`, `"rid_full":"12:34:56"`, `"err":"boom"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
	if strings.Index(line, `"component"`) > strings.Index(line, `"event"`) {
		t.Fatalf("component must precede event: %s", line)
	}
}

func TestStructuredHandlerDurationsAndEmptyValues(t *testing.T) {
	log, aw, buf := newTestLogger(formatKV)

	log.LogAttrs(context.Background(), slog.LevelInfo, "",
		slog.String("event", "generate.ok"),
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("backoff", 2*time.Second),
		slog.String("ref", ""),
	)
	log.LogAttrs(context.Background(), slog.LevelDebug, "", slog.String("event", "hidden"))
	closeWriter(t, aw)

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug record must be filtered: %s", line)
	}
	for _, want := range []string{"duration_ms=2", "backoff_ms=2000", "component=app"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
	if strings.Contains(line, "ref=") {
		t.Fatalf("empty values must be pruned: %s", line)
	}
}

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		"123:456:789": "3f.co.lx",
		"-5:1:2":      "-5.1.2",
		"not-a-rid":   "not-a-rid",
		"1:x:2":       "1:x:2",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Fatalf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\td", 10); got != "abc\td" {
		t.Fatalf("unexpected sanitize result %q", got)
	}
	if got := SanitizeLimit("мемы и котики", 4); got != "мемы" {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	var s ratioSampler
	s.Set(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected 3 of 9 sampled, got %d", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler must allow everything")
	}
}
