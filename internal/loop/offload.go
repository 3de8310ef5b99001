package loop

import (
	"fmt"
)

// Executor runs blocking tasks off the loop. A bounded goroutine pool is
// the usual implementation.
type Executor interface {
	Submit(task func()) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func()) error

// Submit calls f(task).
func (f ExecutorFunc) Submit(task func()) error {
	return f(task)
}

// Offload runs fn on ex and settles the returned future on l with its
// outcome. A panic in fn or a rejected submission fails the future.
func Offload[T any](l *Loop, ex Executor, fn func() (T, error)) *Future[T] {
	fut := NewFuture[T](l)

	err := ex.Submit(func() {
		v, err := call(fn)
		_ = l.Post(func() {
			if err != nil {
				fut.SetError(err)
				return
			}
			fut.SetResult(v)
		})
	})
	if err != nil {
		return FailedFuture[T](l, fmt.Errorf("offload: %w", err))
	}
	return fut
}

func call[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("offloaded call panicked: %v", r)
		}
	}()
	return fn()
}
