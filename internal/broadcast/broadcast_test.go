package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/memearena/core/config"
)

func TestRunCountsFailuresWithoutStopping(t *testing.T) {
	t.Parallel()

	b := New(config.BroadcastConfig{RatePerSecond: 1000, Burst: 10, Workers: 3})
	var (
		mu   sync.Mutex
		seen []int64
	)
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	rep := b.Run(context.Background(), ids, func(_ context.Context, id int64) error {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
		if id%3 == 0 {
			return errors.New("blocked by user")
		}
		return nil
	})

	assert.Equal(t, Report{Total: 8, Sent: 6, Failed: 2}, rep)
	assert.ElementsMatch(t, ids, seen)
}

func TestRunCancelledContextFailsRemaining(t *testing.T) {
	t.Parallel()

	b := New(config.BroadcastConfig{RatePerSecond: 1000, Burst: 1, Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	rep := b.Run(ctx, []int64{1, 2, 3}, func(context.Context, int64) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.Equal(t, Report{Total: 3, Failed: 3}, rep)
}

func TestNewFillsDefaults(t *testing.T) {
	t.Parallel()

	b := New(config.BroadcastConfig{})
	assert.Equal(t, 4, b.workers)
	assert.Equal(t, 1, b.limiter.Burst())
}
