package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joacominatel/aiodb/internal/logging"
)

func startLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l := New(opts...)
	l.Start()
	t.Cleanup(func() {
		_ = l.Close()
		<-l.Done()
	})
	return l
}

func TestPostRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := range 100 {
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	var snapshot []int
	if err := l.Call(func() { snapshot = append(snapshot, got...) }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(snapshot) != 100 {
		t.Fatalf("ran %d closures, want 100", len(snapshot))
	}
	for i, v := range snapshot {
		if v != i {
			t.Fatalf("closure %d ran at position %d", v, i)
		}
	}
}

func TestPostFromManyGoroutines(t *testing.T) {
	l := startLoop(t)

	var (
		wg    sync.WaitGroup
		count int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = l.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()

	var total int
	_ = l.Call(func() { total = count })
	if total != 1000 {
		t.Errorf("count = %d, want 1000", total)
	}
}

func TestClosedLoopRejectsWork(t *testing.T) {
	l := New()
	l.Start()

	ran := false
	_ = l.Post(func() { ran = true })
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-l.Done()

	if !ran {
		t.Error("closure queued before Close did not run")
	}
	if err := l.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Post after Close = %v, want ErrClosed", err)
	}
	if err := l.Call(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Call after Close = %v, want ErrClosed", err)
	}
	if err := l.Run(context.Background()); err == nil {
		t.Error("Run after Close succeeded")
	}
}

func TestCloseBeforeStart(t *testing.T) {
	l := New(WithLogger(logging.Discard()))

	ran := false
	_ = l.Post(func() { ran = true })
	_ = l.Close()
	l.Start()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed for a loop closed before it started")
	}
	if !ran {
		t.Error("closure queued before Close did not run")
	}
	if err := l.Call(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Call = %v, want ErrClosed", err)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	if err := l.Call(func() {}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := l.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Post after cancel = %v", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	logger, capture := logging.NewCapture()
	l := startLoop(t, WithLogger(logger))

	_ = l.Post(func() { panic("boom") })
	survived := false
	if err := l.Call(func() { survived = true }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !survived {
		t.Fatal("loop stopped after a panic")
	}

	msgs := capture.Messages(slog.LevelError)
	if len(msgs) != 1 || msgs[0] != "loop callback panicked" {
		t.Errorf("error logs = %v", msgs)
	}
}
