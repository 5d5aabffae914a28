// Package sender runs outbound Telegram calls with bounded retries, either inline or on a worker queue.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the Outbox.
type Options struct {
	QueueSize int
	Workers   int
	Backoff   netutil.Backoff
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
}

// Call is one idempotent Bot API request.
type Call func(ctx context.Context) error

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      Call
}

// Outbox executes outbound calls. Do runs inline and reports the outcome; Enqueue is fire-and-forget.
type Outbox struct {
	opts Options
	jobs chan job
	stop chan struct{}
	mu   sync.RWMutex
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// New starts an Outbox, filling zero options with defaults.
func New(opts Options) *Outbox {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Backoff.Attempts <= 0 {
		opts.Backoff.Attempts = 3
	}
	if opts.Backoff.Initial <= 0 {
		opts.Backoff.Initial = time.Second
	}
	if opts.Backoff.Multiplier < 1 {
		opts.Backoff.Multiplier = 2
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	o := &Outbox{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}
	o.wg.Add(opts.Workers)
	for range opts.Workers {
		go o.worker()
	}
	return o
}

// Do runs the call on the caller's goroutine with retries and returns the final error.
func (o *Outbox) Do(ctx context.Context, action, endpoint string, run Call) error {
	if run == nil {
		return errors.New("telegram sender: nil call")
	}
	return o.execute(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// Enqueue schedules the call on a worker. The call must be idempotent.
func (o *Outbox) Enqueue(ctx context.Context, action, endpoint string, run Call) error {
	if run == nil {
		return errors.New("telegram sender: nil call")
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	select {
	case <-o.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case o.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of calls that failed for good.
func (o *Outbox) ErrorCount() uint64 {
	return o.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (o *Outbox) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		close(o.stop)
		close(o.jobs)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

func (o *Outbox) worker() {
	defer o.wg.Done()
	for j := range o.jobs {
		_ = o.execute(j)
	}
}

func (o *Outbox) execute(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, o.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := 0
	err := netutil.Retry(callCtx, o.opts.Backoff, func(ctx context.Context) error {
		attempts++
		return retryable(j.run(ctx))
	}, func(attempt int, delay time.Duration, err error) {
		logger.Debug(ctx, logger.CompTGSender, "send.retry",
			append(sendLogAttrs(ctx, j),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error_kind", classifyError(err)),
			)...,
		)
	})
	if err != nil {
		o.errs.Add(1)
		logSendFailure(ctx, j, err, attempts, time.Since(start))
		return err
	}
	attrs := sendLogAttrs(ctx, j)
	if attempts > 1 {
		attrs = append(attrs, slog.Int("attempt", attempts))
	}
	attrs = append(attrs, slog.Duration("duration", logger.Took(start)))
	logger.Debug(ctx, logger.CompTGSender, "send.success", attrs...)
	return nil
}

// retryable marks Bot API throttling and server failures as temporary.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if status := httpStatusFromError(err); status == http.StatusTooManyRequests || status >= 500 {
		return &netutil.TemporaryError{StatusCode: status, Err: err}
	}
	return err
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return attrs
}

func logSendFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	attrs := append(sendLogAttrs(ctx, j),
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(elapsed)),
	)
	logger.Error(ctx, logger.CompTGSender, "send.fail", attrs...)
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return "timeout"
		}
		if opErr.Op == "dial" {
			return "dial"
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := httpStatusFromError(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage keeps bot tokens out of the logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	// Unwrapped API errors end with "(code)".
	msg := err.Error()
	open := strings.LastIndex(msg, "(")
	closing := strings.LastIndex(msg, ")")
	if open >= 0 && closing > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing])); convErr == nil {
			return code
		}
	}
	return 0
}
