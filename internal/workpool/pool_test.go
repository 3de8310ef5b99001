package workpool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joacominatel/aiodb/internal/logging"
)

func TestSubmitRunsTask(t *testing.T) {
	p, err := New(Options{Size: 2, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release(time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	if err := p.Submit(wg.Done); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	wg.Wait()
	if p.Cap() != 2 {
		t.Errorf("Cap = %d", p.Cap())
	}
}

func TestSubmitQueuesWhenSaturated(t *testing.T) {
	p, err := New(Options{Size: 1, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release(time.Second)

	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	var (
		mu  sync.Mutex
		ran []int
	)
	done := make(chan struct{})
	for i := range 5 {
		if err := p.Submit(func() {
			mu.Lock()
			ran = append(ran, i)
			n := len(ran)
			mu.Unlock()
			if n == 5 {
				close(done)
			}
		}); err != nil {
			t.Fatalf("Submit on a full pool: %v", err)
		}
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	early := len(ran)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("%d tasks ran while the only worker was busy", early)
	}

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued tasks never ran")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range ran {
		if v != i {
			t.Fatalf("ran %v, want submission order", ran)
		}
	}
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Cap() != DefaultOptions().Size {
		t.Errorf("Cap = %d, want default", p.Cap())
	}
	if err := p.Release(time.Second); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit after Release = %v, want ErrPoolClosed", err)
	}
}
