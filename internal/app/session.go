package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/loop"
	"github.com/joacominatel/aiodb/internal/metrics"
)

// attached holds every driver session currently wrapped by a Session.
var attached sync.Map

// Session wraps a callback-style driver session and exposes its operations
// as loop futures and paginators.
type Session struct {
	driver   driver.Session
	loop     *loop.Loop
	exec     loop.Executor
	logger   *slog.Logger
	metrics  *metrics.Collector
	pageSize int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records bridge and paginator activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) {
		s.metrics = c
	}
}

// WithPageSize sets the page size for queries that do not set their own.
func WithPageSize(n int) Option {
	return func(s *Session) {
		s.pageSize = n
	}
}

// Wrap binds sess to the loop that consumes its results and to the executor
// that runs its blocking calls. A session can be wrapped only once until
// Detach is called.
func Wrap(sess driver.Session, l *loop.Loop, ex loop.Executor, opts ...Option) (*Session, error) {
	switch {
	case isNil(sess):
		return nil, &ConfigurationError{Cause: errors.New("driver session is nil")}
	case l == nil:
		return nil, &ConfigurationError{Cause: errors.New("loop is nil")}
	case isNil(ex):
		return nil, &ConfigurationError{Cause: errors.New("executor is nil")}
	case !reflect.TypeOf(sess).Comparable():
		return nil, &ConfigurationError{Cause: fmt.Errorf("driver session type %T cannot be tracked", sess)}
	}

	if _, loaded := attached.LoadOrStore(sess, struct{}{}); loaded {
		return nil, &ConfigurationError{Cause: ErrAlreadyWrapped}
	}

	s := &Session{
		driver: sess,
		loop:   l,
		exec:   ex,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Detach releases the driver session so it can be wrapped again. It does
// not close it.
func (s *Session) Detach() {
	attached.Delete(s.driver)
}

// Close detaches the session and closes the driver session.
func (s *Session) Close() error {
	s.Detach()
	return s.driver.Close()
}

// Driver returns the wrapped driver session.
func (s *Session) Driver() driver.Session {
	return s.driver
}

// Loop returns the loop the session resolves futures on.
func (s *Session) Loop() *loop.Loop {
	return s.loop
}

// Name returns the connected database or keyspace name.
func (s *Session) Name() string {
	return s.driver.Name()
}

// ExecuteFuture submits q on the executor and returns a future of its first
// page. Driver errors fail the future unchanged.
func (s *Session) ExecuteFuture(ctx context.Context, q driver.Query) *loop.Future[*driver.ResultSet] {
	q = s.withDefaults(q)
	submitted := offload(s, "submit", func() (driver.Operation, error) {
		return s.driver.Submit(ctx, q)
	})

	fut := loop.NewFuture[*driver.ResultSet](s.loop)
	err := s.loop.Post(func() {
		submitted.OnDone(func() {
			op, err := submitted.Result()
			if err != nil {
				if fut.SetError(err) {
					s.metrics.Future(metrics.OutcomeFailed)
				}
				return
			}
			s.bridge(op, fut)
		})
	})
	if err != nil {
		return loop.FailedFuture[*driver.ResultSet](s.loop, err)
	}
	return fut
}

// PrepareFuture prepares statement on the executor.
func (s *Session) PrepareFuture(ctx context.Context, statement string) *loop.Future[driver.PreparedStatement] {
	return offload(s, "prepare", func() (driver.PreparedStatement, error) {
		return s.driver.Prepare(ctx, statement)
	})
}

// ExecuteFutures returns an unopened paginator over every page of q.
// Nothing is submitted until Open.
func (s *Session) ExecuteFutures(q driver.Query) *Paginator {
	q = s.withDefaults(q)
	return newPaginator(s, func(ctx context.Context) (driver.Operation, error) {
		return s.driver.Submit(ctx, q)
	})
}

// Paginate runs fn over the rows of q inside an open paginator scope. The
// paginator is closed when fn returns, including when fn stops iterating
// early.
func (s *Session) Paginate(ctx context.Context, q driver.Query, fn func(rows iter.Seq2[driver.Row, error]) error) (err error) {
	p := s.ExecuteFutures(q)
	if err := p.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(p.Rows(ctx))
}

func (s *Session) withDefaults(q driver.Query) driver.Query {
	if q.PageSize <= 0 && s.pageSize > 0 {
		q.PageSize = s.pageSize
	}
	return q
}

// release gives back server resources held by op. It may block.
func (s *Session) release(op driver.Operation) {
	r, ok := op.(driver.Releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		s.logger.Debug("release operation", "err", err)
	}
}

func offload[T any](s *Session, call string, fn func() (T, error)) *loop.Future[T] {
	return loop.Offload(s.loop, s.exec, func() (T, error) {
		start := time.Now()
		defer func() {
			s.metrics.Offload(call, time.Since(start).Seconds())
		}()
		return fn()
	})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
