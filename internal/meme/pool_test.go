package meme

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolValidatesSizes(t *testing.T) {
	t.Parallel()

	_, err := NewPool(PoolOptions{Core: 0, Max: 1})
	assert.Error(t, err)
	_, err = NewPool(PoolOptions{Core: 2, Max: 1})
	assert.Error(t, err)
	_, err = NewPool(PoolOptions{Core: 1, Max: 1, Queue: -1})
	assert.Error(t, err)
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(PoolOptions{Core: 1, Max: 2, Queue: 1})
	require.NoError(t, err)

	block := make(chan struct{})
	var ran atomic.Int32
	task := func() {
		<-block
		ran.Add(1)
	}

	require.NoError(t, pool.Submit(task)) // core worker
	require.NoError(t, pool.Submit(task)) // queued
	require.NoError(t, pool.Submit(task)) // extra worker
	assert.ErrorIs(t, pool.Submit(task), ErrPoolFull)
	assert.Equal(t, 2, pool.Workers())

	close(block)
	pool.Close()
	assert.Equal(t, int32(3), ran.Load())
	assert.ErrorIs(t, pool.Submit(task), ErrPoolClosed)
}

func TestPoolSurvivesPanics(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(PoolOptions{Core: 1, Max: 1, Queue: 4})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(wg.Done))
	wg.Wait()
	pool.Close()
}

func TestExtraWorkersRetireWhenIdle(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(PoolOptions{Core: 1, Max: 3, Queue: 0, IdleTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	block := make(chan struct{})
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(func() { <-block }))
	}
	assert.Equal(t, 3, pool.Workers())
	close(block)

	assert.Eventually(t, func() bool { return pool.Workers() == 1 }, time.Second, 5*time.Millisecond)
	pool.Close()
	assert.Equal(t, 0, pool.Workers())
}
