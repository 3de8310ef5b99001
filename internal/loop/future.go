package loop

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled is returned by Await and Result for a cancelled future.
var ErrCancelled = fmt.Errorf("future cancelled: %w", context.Canceled)

// State is the lifecycle state of a Future.
type State int

const (
	Pending State = iota
	Resolved
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Future is a single value produced on the loop.
//
// Transitions happen only on the loop goroutine and only once; the methods
// marked "loop only" must be called from a closure run by the loop. Done,
// Await, Result, State and Cancel may be used from any goroutine.
type Future[T any] struct {
	loop *Loop

	// loop only
	state     State
	value     T
	err       error
	callbacks []func()

	done chan struct{}
}

// NewFuture creates a pending future owned by l.
func NewFuture[T any](l *Loop) *Future[T] {
	return &Future[T]{
		loop: l,
		done: make(chan struct{}),
	}
}

// FailedFuture returns a future that has already failed with err. It can be
// built off the loop because nothing else holds it yet.
func FailedFuture[T any](l *Loop, err error) *Future[T] {
	f := NewFuture[T](l)
	f.err = err
	f.state = Failed
	close(f.done)
	return f
}

// SetResult resolves the future. Loop only. It reports false when the
// future was already done, which includes a consumer having cancelled it.
func (f *Future[T]) SetResult(v T) bool {
	if f.state != Pending {
		return false
	}
	f.value = v
	f.finish(Resolved)
	return true
}

// SetError fails the future. Loop only.
func (f *Future[T]) SetError(err error) bool {
	if f.state != Pending {
		return false
	}
	if err == nil {
		err = errors.New("future failed with nil error")
	}
	f.err = err
	f.finish(Failed)
	return true
}

// SetCancelled cancels the future. Loop only.
func (f *Future[T]) SetCancelled() bool {
	if f.state != Pending {
		return false
	}
	f.err = ErrCancelled
	f.finish(Cancelled)
	return true
}

// OnDone runs fn on the loop once the future is done. Loop only. If the
// future is already done fn runs immediately.
func (f *Future[T]) OnDone(fn func()) {
	if f.state != Pending {
		fn()
		return
	}
	f.callbacks = append(f.callbacks, fn)
}

// Cancel requests cancellation from any goroutine. A completion that
// reaches the loop afterwards is ignored.
func (f *Future[T]) Cancel() {
	_ = f.loop.Post(func() {
		f.SetCancelled()
	})
}

// Done is closed once the future has left the pending state.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// State reports the current state as observed from the caller's goroutine.
func (f *Future[T]) State() State {
	select {
	case <-f.done:
		return f.state
	default:
		return Pending
	}
}

// Result returns the outcome of a done future without blocking. For a
// future that is still pending it returns an error.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T
		return zero, errors.New("future still pending")
	}
}

// Await blocks until the future is done or ctx ends. Giving up on ctx does
// not cancel the future. A future left pending by a loop that has stopped
// fails with ErrClosed.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var stopped <-chan struct{}
	if f.loop != nil {
		stopped = f.loop.Done()
	}

	var zero T
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-stopped:
		// The loop drains its queue before stopping.
		select {
		case <-f.done:
			return f.value, f.err
		default:
			return zero, ErrClosed
		}
	}
}

func (f *Future[T]) finish(s State) {
	f.state = s
	close(f.done)
	callbacks := f.callbacks
	f.callbacks = nil
	for _, fn := range callbacks {
		fn()
	}
}
