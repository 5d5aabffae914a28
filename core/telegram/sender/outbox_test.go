package sender

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/core/netutil"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o := New(Options{
		Workers: 1,
		Backoff: netutil.Backoff{Attempts: 3, Initial: time.Millisecond, Multiplier: 1},
	})
	t.Cleanup(o.Close)
	return o
}

func TestDoRetriesTemporaryFailures(t *testing.T) {
	o := newTestOutbox(t)
	var calls atomic.Int32

	err := o.Do(context.Background(), "send", "sendMessage", func(context.Context) error {
		if calls.Add(1) < 3 {
			return fmt.Errorf("telegram: Bad Gateway (502)")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, o.ErrorCount())
}

func TestDoStopsOnClientErrors(t *testing.T) {
	o := newTestOutbox(t)
	var calls atomic.Int32
	blocked := errors.New("telegram: Forbidden: bot was blocked by the user (403)")

	err := o.Do(context.Background(), "send", "sendMessage", func(context.Context) error {
		calls.Add(1)
		return blocked
	})

	require.ErrorIs(t, err, blocked)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), o.ErrorCount())
}

func TestEnqueueRunsOnWorker(t *testing.T) {
	o := newTestOutbox(t)
	done := make(chan struct{})

	require.NoError(t, o.Enqueue(context.Background(), "answer", "answerCallbackQuery", func(context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued call never ran")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	o := New(Options{Workers: 1})
	o.Close()

	err := o.Enqueue(context.Background(), "send", "", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestClassifyError(t *testing.T) {
	cases := map[string]error{
		"timeout":  context.DeadlineExceeded,
		"flood":    errors.New("telegram: Too Many Requests: retry after 3 (429)"),
		"http_5xx": errors.New("telegram: Internal Server Error (500)"),
		"http_4xx": errors.New("telegram: Bad Request: chat not found (400)"),
		"unknown":  errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, classifyError(err), err.Error())
	}
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-secret_token/sendMessage": EOF`)
	msg := sanitizeErrorMessage(err)
	assert.NotContains(t, msg, "AAH-secret_token")
	assert.Contains(t, msg, "bot<redacted>")
}
