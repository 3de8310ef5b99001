package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/driver/drivertest"
	"github.com/joacominatel/aiodb/internal/logging"
	"github.com/joacominatel/aiodb/internal/loop"
	"github.com/joacominatel/aiodb/internal/metrics"
	"github.com/joacominatel/aiodb/internal/workpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExecuteFutureResolvesFirstPage(t *testing.T) {
	f := newFixture(t)
	f.drv.Script("SELECT n FROM t", drivertest.Script{
		Columns: []string{"n"},
		Pages:   drivertest.Pages(2, 3),
	})

	rs, err := f.sess.ExecuteFuture(context.Background(), driver.NewQuery("SELECT n FROM t")).Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(rs.Rows) != 2 || rs.Rows[0].Values[0] != 1 || rs.Rows[1].Values[0] != 2 {
		t.Errorf("first page = %+v", rs.Rows)
	}
	if v, ok := rs.Rows[1].Get("n"); !ok || v != 2 {
		t.Errorf("Get(n) = %v, %v", v, ok)
	}

	op := f.drv.LastOperation()
	eventually(t, "operation release", op.Released)
	if op.FetchesStarted() != 0 {
		t.Error("ExecuteFuture fetched past the first page")
	}
	if got := testutil.ToFloat64(f.metrics.FuturesTotal.WithLabelValues(metrics.OutcomeResolved)); got != 1 {
		t.Errorf("resolved futures = %v", got)
	}
}

func TestExecuteFutureDriverErrorUnchanged(t *testing.T) {
	f := newFixture(t)
	f.drv.Malformed("SELECT * FROM;")

	_, err := f.sess.ExecuteFuture(context.Background(), driver.NewQuery("SELECT * FROM;")).Await(context.Background())
	if err != drivertest.ErrSyntax {
		t.Fatalf("Await = %v, want the driver error unchanged", err)
	}
}

func TestExecuteFutureSubmitError(t *testing.T) {
	f := newFixture(t)
	refused := errors.New("no hosts available")
	f.drv.Script("SELECT 1", drivertest.Script{SubmitErr: refused})

	_, err := f.sess.ExecuteFuture(context.Background(), driver.NewQuery("SELECT 1")).Await(context.Background())
	if err != refused {
		t.Fatalf("Await = %v, want %v", err, refused)
	}
}

func TestCancelledFutureIgnoresCompletion(t *testing.T) {
	f := newFixture(t)
	f.drv.Script("SELECT n FROM t", drivertest.Script{
		Columns: []string{"n"},
		Pages:   drivertest.Pages(1),
		Manual:  true,
	})

	fut := f.sess.ExecuteFuture(context.Background(), driver.NewQuery("SELECT n FROM t"))
	fut.Cancel()
	<-fut.Done()

	eventually(t, "submission", func() bool { return f.drv.LastOperation() != nil })
	f.drv.LastOperation().DeliverPage(0)

	ignored := f.metrics.FuturesTotal.WithLabelValues(metrics.OutcomeIgnored)
	eventually(t, "ignored completion", func() bool { return testutil.ToFloat64(ignored) == 1 })

	if _, err := fut.Await(context.Background()); !errors.Is(err, loop.ErrCancelled) {
		t.Errorf("Await = %v, want ErrCancelled", err)
	}
	if fut.State() != loop.Cancelled {
		t.Errorf("state = %v", fut.State())
	}
	if recs := f.logs.Records(); len(recs) != 0 {
		t.Errorf("cancellation race logged %d records", len(recs))
	}
}

func TestExecuteFutureOnClosedLoop(t *testing.T) {
	f := newFixture(t)
	f.drv.Script("SELECT 1", drivertest.Script{Pages: drivertest.Pages(1)})
	_ = f.loop.Close()
	<-f.loop.Done()

	fut := f.sess.ExecuteFuture(context.Background(), driver.NewQuery("SELECT 1"))
	if _, err := fut.Result(); !errors.Is(err, loop.ErrClosed) {
		t.Errorf("Result = %v, want ErrClosed", err)
	}
}

func TestExecuteFutureWaitsForSaturatedPool(t *testing.T) {
	l := loop.New(loop.WithLogger(logging.Discard()))
	l.Start()
	defer func() {
		_ = l.Close()
		<-l.Done()
	}()

	pool, err := workpool.New(workpool.Options{Size: 1, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("workpool.New: %v", err)
	}
	defer pool.Release(time.Second)

	drv := drivertest.NewSession("ks")
	drv.Script("SELECT 1", drivertest.Script{Pages: drivertest.Pages(1)})
	s, err := Wrap(drv, l, pool, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	defer s.Detach()

	block, started := make(chan struct{}), make(chan struct{})
	_ = pool.Submit(func() {
		close(started)
		<-block
	})
	<-started

	fut := s.ExecuteFuture(context.Background(), driver.NewQuery("SELECT 1"))
	time.Sleep(20 * time.Millisecond)
	if fut.State() != loop.Pending {
		t.Fatalf("state = %v while the pool was busy, want pending", fut.State())
	}

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rs, err := fut.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rs.Rows))
	}
}

func TestPrepareAndBind(t *testing.T) {
	f := newFixture(t)
	f.drv.Script("SELECT n FROM t WHERE k = ?", drivertest.Script{
		Columns: []string{"n"},
		Pages:   drivertest.Pages(1, 1),
	})

	ps, err := f.sess.PrepareFuture(context.Background(), "SELECT n FROM t WHERE k = ?").Await(context.Background())
	if err != nil {
		t.Fatalf("PrepareFuture: %v", err)
	}
	if cols := ps.Columns(); len(cols) != 1 || cols[0] != "n" {
		t.Errorf("columns = %v", cols)
	}

	var n int
	err = f.sess.Paginate(context.Background(), driver.Bind(ps, "k1"), func(rows iterRows) error {
		for _, err := range rows {
			if err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil || n != 2 {
		t.Fatalf("Paginate = %d rows, %v", n, err)
	}

	q := f.drv.Submitted()[0]
	if q.Prepared == nil || len(q.Args) != 1 || q.Args[0] != "k1" {
		t.Errorf("submitted query = %+v", q)
	}
}

func TestPrepareMalformed(t *testing.T) {
	f := newFixture(t)
	f.drv.Malformed("SELEC")

	_, err := f.sess.PrepareFuture(context.Background(), "SELEC").Await(context.Background())
	if err != drivertest.ErrSyntax {
		t.Errorf("PrepareFuture = %v", err)
	}
}

func TestWrapValidation(t *testing.T) {
	l := loop.New()
	drv := drivertest.NewSession("ks")

	cases := []struct {
		name string
		sess driver.Session
		loop *loop.Loop
		ex   loop.Executor
	}{
		{"nil session", nil, l, goExecutor},
		{"typed nil session", (*drivertest.Session)(nil), l, goExecutor},
		{"nil loop", drv, nil, goExecutor},
		{"nil executor", drv, l, nil},
	}
	for _, tc := range cases {
		_, err := Wrap(tc.sess, tc.loop, tc.ex)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: err = %v, want *ConfigurationError", tc.name, err)
		}
	}
}

func TestWrapTwice(t *testing.T) {
	l := loop.New()
	drv := drivertest.NewSession("ks")

	first, err := Wrap(drv, l, goExecutor)
	if err != nil {
		t.Fatalf("first Wrap: %v", err)
	}

	_, err = Wrap(drv, l, goExecutor)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || !errors.Is(err, ErrAlreadyWrapped) {
		t.Fatalf("second Wrap = %v, want ErrAlreadyWrapped", err)
	}

	first.Detach()
	again, err := Wrap(drv, l, goExecutor)
	if err != nil {
		t.Fatalf("Wrap after Detach: %v", err)
	}
	if err := again.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := drv.Submit(context.Background(), driver.NewQuery("x")); err == nil {
		t.Error("Close did not close the driver session")
	}
}

func TestWithPageSize(t *testing.T) {
	f := newFixture(t, WithPageSize(25))
	f.drv.Script("SELECT 1", drivertest.Script{Pages: drivertest.Pages(1)})

	if _, err := f.sess.ExecuteFuture(context.Background(), driver.NewQuery("SELECT 1")).Await(context.Background()); err != nil {
		t.Fatalf("Await: %v", err)
	}
	q := driver.NewQuery("SELECT 1")
	q.PageSize = 7
	if _, err := f.sess.ExecuteFuture(context.Background(), q).Await(context.Background()); err != nil {
		t.Fatalf("Await: %v", err)
	}

	sub := f.drv.Submitted()
	if sub[0].PageSize != 25 || sub[1].PageSize != 7 {
		t.Errorf("page sizes = %d, %d", sub[0].PageSize, sub[1].PageSize)
	}
}
