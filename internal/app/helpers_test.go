package app

import (
	"iter"
	"testing"
	"time"

	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/driver/drivertest"
	"github.com/joacominatel/aiodb/internal/logging"
	"github.com/joacominatel/aiodb/internal/loop"
	"github.com/joacominatel/aiodb/internal/metrics"
)

type iterRows = iter.Seq2[driver.Row, error]

var goExecutor = loop.ExecutorFunc(func(task func()) error {
	go task()
	return nil
})

type fixture struct {
	loop    *loop.Loop
	drv     *drivertest.Session
	sess    *Session
	metrics *metrics.Collector
	logs    *logging.Capture
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, goExecutor, opts...)
}

func newFixtureOn(t *testing.T, ex loop.Executor, opts ...Option) *fixture {
	t.Helper()
	l := loop.New(loop.WithLogger(logging.Discard()))
	l.Start()
	t.Cleanup(func() {
		_ = l.Close()
		<-l.Done()
	})

	logger, capture := logging.NewCapture()
	m := metrics.New()
	drv := drivertest.NewSession("ks")

	opts = append([]Option{WithLogger(logger), WithMetrics(m)}, opts...)
	s, err := Wrap(drv, l, ex, opts...)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	t.Cleanup(s.Detach)

	return &fixture{loop: l, drv: drv, sess: s, metrics: m, logs: capture}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
