package loop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joacominatel/aiodb/internal/logging"
)

func goExecutor() Executor {
	return ExecutorFunc(func(task func()) error {
		go task()
		return nil
	})
}

func TestOffloadResult(t *testing.T) {
	l := startLoop(t)
	fut := Offload(l, goExecutor(), func() (int, error) { return 42, nil })

	v, err := fut.Await(context.Background())
	if err != nil || v != 42 {
		t.Errorf("Await = %d, %v", v, err)
	}
}

func TestOffloadError(t *testing.T) {
	l := startLoop(t)
	boom := errors.New("boom")
	fut := Offload(l, goExecutor(), func() (int, error) { return 0, boom })

	if _, err := fut.Await(context.Background()); err != boom {
		t.Errorf("Await = %v, want the error unchanged", err)
	}
}

func TestOffloadPanic(t *testing.T) {
	l := startLoop(t)
	fut := Offload(l, goExecutor(), func() (int, error) { panic("kaboom") })

	_, err := fut.Await(context.Background())
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("Await = %v", err)
	}
}

func TestOffloadRejected(t *testing.T) {
	l := startLoop(t)
	full := errors.New("pool full")
	ex := ExecutorFunc(func(func()) error { return full })

	fut := Offload(l, ex, func() (int, error) { return 1, nil })
	if fut.State() != Failed {
		t.Fatalf("state = %v", fut.State())
	}
	if _, err := fut.Result(); !errors.Is(err, full) {
		t.Errorf("Result = %v", err)
	}
}

func TestAwaitFailsWhenLoopStopsFirst(t *testing.T) {
	l := New(WithLogger(logging.Discard()))
	l.Start()

	release := make(chan struct{})
	ex := ExecutorFunc(func(task func()) error {
		go func() {
			<-release
			task()
		}()
		return nil
	})
	fut := Offload(l, ex, func() (int, error) { return 1, nil })

	_ = l.Close()
	<-l.Done()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := fut.Await(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Await = %v, want ErrClosed", err)
	}
}
