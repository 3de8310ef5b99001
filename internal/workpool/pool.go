// Package workpool bounds the goroutines that run blocking driver calls.
package workpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrPoolClosed is returned by Submit after Release.
var ErrPoolClosed = ants.ErrPoolClosed

// Options configures a Pool.
type Options struct {
	Size           int           // max concurrent tasks (<= 0 means 64)
	ExpiryDuration time.Duration // idle worker expiry (0 means 1s)
	Logger         *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Size:           64,
		ExpiryDuration: time.Second,
	}
}

// Pool is a shared, externally owned pool of worker goroutines.
//
// Submit never waits for a free worker: the loop submits work too, and it
// must not stall behind a saturated pool. Tasks that find every worker busy
// wait in a FIFO backlog that a dispatcher goroutine feeds to the pool as
// workers free up.
type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger

	mu      sync.Mutex
	backlog []func()
	closed  bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

// New creates a pool.
func New(opts Options) (*Pool, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultOptions().Size
	}
	if opts.ExpiryDuration <= 0 {
		opts.ExpiryDuration = DefaultOptions().ExpiryDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Blocking submission: only the dispatcher calls ants Submit, and it is
	// the one goroutine allowed to wait for a worker.
	ap, err := ants.NewPool(opts.Size,
		ants.WithExpiryDuration(opts.ExpiryDuration),
		ants.WithPanicHandler(func(v any) {
			logger.Error("worker panic", "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Pool{
		pool:    ap,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.dispatch()
	return p, nil
}

// Submit queues task for the next free worker. It only fails after Release.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.backlog = append(p.backlog, task)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of tasks waiting for a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backlog)
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap returns the pool size.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Release stops accepting tasks and waits up to timeout for running ones.
// Tasks still in the backlog are dropped.
func (p *Pool) Release(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dropped := len(p.backlog)
	p.backlog = nil
	close(p.stop)
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.Warn("pool released with queued tasks", "dropped", dropped)
	}

	err := p.pool.ReleaseTimeout(timeout)
	<-p.stopped
	if err != nil {
		p.logger.Warn("pool release timed out", "timeout", timeout)
		return err
	}
	return nil
}

func (p *Pool) dispatch() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
		case <-p.stop:
			return
		}

		for {
			task, ok := p.next()
			if !ok {
				break
			}
			if p.pool.Free() == 0 {
				p.logger.Debug("worker pool saturated", "cap", p.pool.Cap(), "pending", p.Pending()+1)
			}
			if err := p.pool.Submit(task); err != nil {
				if errors.Is(err, ants.ErrPoolClosed) {
					return
				}
				p.logger.Error("submit to worker pool", "error", err)
			}
		}
	}
}

func (p *Pool) next() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.backlog) == 0 {
		return nil, false
	}
	task := p.backlog[0]
	p.backlog[0] = nil
	p.backlog = p.backlog[1:]
	return task, true
}
