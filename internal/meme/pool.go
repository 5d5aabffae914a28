package meme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m3rciful/memearena/core/logger"
)

var (
	// ErrPoolFull is returned when every worker is busy and the queue is saturated.
	ErrPoolFull = errors.New("meme pool: queue full")
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("meme pool: closed")
)

// PoolOptions sizes a Pool. Tasks start core workers first, then fill the queue,
// then start extra workers up to Max; extra workers exit after IdleTimeout without work.
type PoolOptions struct {
	Core        int
	Max         int
	Queue       int
	IdleTimeout time.Duration
}

// Pool is a bounded worker pool for generation jobs.
type Pool struct {
	opts  PoolOptions
	tasks chan func()

	mu      sync.Mutex
	workers int
	closed  bool
	wg      sync.WaitGroup
}

// NewPool validates opts and returns an idle pool. Workers start lazily.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Core < 1 {
		return nil, fmt.Errorf("meme pool: core size must be >= 1, got %d", opts.Core)
	}
	if opts.Max < opts.Core {
		return nil, fmt.Errorf("meme pool: max size %d is below core size %d", opts.Max, opts.Core)
	}
	if opts.Queue < 0 {
		return nil, fmt.Errorf("meme pool: queue size must be >= 0, got %d", opts.Queue)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	return &Pool{opts: opts, tasks: make(chan func(), opts.Queue)}, nil
}

// Submit schedules task without blocking the caller.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return errors.New("meme pool: nil task")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.workers < p.opts.Core {
		p.spawn(task, true)
		return nil
	}
	select {
	case p.tasks <- task:
		return nil
	default:
	}
	if p.workers < p.opts.Max {
		p.spawn(task, false)
		return nil
	}
	return ErrPoolFull
}

// Workers returns the number of live workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Close stops accepting tasks and waits until queued tasks have run.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// spawn must be called with p.mu held.
func (p *Pool) spawn(first func(), core bool) {
	p.workers++
	p.wg.Add(1)
	go p.worker(first, core)
}

func (p *Pool) worker(task func(), core bool) {
	defer p.wg.Done()
	p.run(task)

	if core {
		for t := range p.tasks {
			p.run(t)
		}
		p.exit()
		return
	}

	idle := time.NewTimer(p.opts.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case t, ok := <-p.tasks:
			if !ok {
				p.exit()
				return
			}
			p.run(t)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.opts.IdleTimeout)
		case <-idle.C:
			p.exit()
			return
		}
	}
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), logger.CompPipeline, "pool.panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task()
}
