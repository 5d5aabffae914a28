package netutil

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	b := Backoff{Attempts: 4, Initial: time.Second, Multiplier: 2, Max: 3 * time.Second}
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 3*time.Second, b.Delay(3))
	assert.Zero(t, b.Delay(0))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{Attempts: 3, Initial: time.Millisecond}, func(context.Context) error {
		calls++
		return Permanent(errors.New("bad request"))
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRetriesTemporaryErrors(t *testing.T) {
	calls := 0
	var delays []time.Duration
	err := Retry(context.Background(), Backoff{Attempts: 3, Initial: time.Millisecond, Multiplier: 2}, func(context.Context) error {
		calls++
		if calls < 3 {
			return &TemporaryError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("unavailable")}
		}
		return nil
	}, func(_ int, d time.Duration, _ error) { delays = append(delays, d) })
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{Attempts: 2, Initial: time.Millisecond}, func(context.Context) error {
		calls++
		return &TemporaryError{StatusCode: http.StatusBadGateway}
	}, nil)
	var temp *TemporaryError
	require.ErrorAs(t, err, &temp)
	assert.Equal(t, 2, calls)
}
