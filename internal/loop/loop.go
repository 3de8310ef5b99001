// Package loop provides a single-goroutine scheduler that other goroutines
// hand work to. State owned by the loop is only touched from closures the
// loop runs, so it needs no locking of its own.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrClosed is returned when work is posted to a loop that has shut down.
var ErrClosed = errors.New("loop closed")

// Loop runs posted closures one at a time, in the order they were posted.
// All methods are safe for concurrent use.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	running bool
	started bool

	doneOnce sync.Once

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for lifecycle events and recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loop. It does nothing until Run or Start is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs the loop in its own goroutine.
func (l *Loop) Start() {
	go func() {
		_ = l.Run(context.Background())
	}()
}

// Run executes posted closures until Close is called or ctx is done.
// Closures already queued when the loop stops are still executed.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("loop already running")
	}
	first := !l.started
	l.started = true
	if l.closed {
		l.mu.Unlock()
		if first {
			// Closed before it ever ran: run what was queued and
			// release everyone waiting on Done.
			l.drain()
			l.finish()
		}
		return ErrClosed
	}
	l.running = true
	l.mu.Unlock()

	defer l.finish()
	l.logger.Debug("loop started")

	for {
		select {
		case <-l.wake:
			l.drain()
		case <-l.stop:
			l.drain()
			l.logger.Debug("loop stopped")
			return nil
		case <-ctx.Done():
			l.shutdown()
			l.drain()
			l.logger.Debug("loop stopped", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// Post schedules fn to run on the loop goroutine. It never waits for the
// loop to make progress.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call posts fn and waits until it has run. It must not be called from the
// loop goroutine itself.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	if err := l.Post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// The loop drains its queue before closing done.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop after the closures queued so far have run.
func (l *Loop) Close() error {
	l.shutdown()
	return nil
}

// Done is closed once Run has returned, including a Run that found the
// loop already closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.stop)
}

func (l *Loop) finish() {
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", "panic", r)
		}
	}()
	fn()
}
