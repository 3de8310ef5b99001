// Package drivertest provides a scripted in-memory driver.Session whose
// callbacks fire on their own goroutines, the way a real driver's I/O
// goroutines do.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joacominatel/aiodb/internal/driver"
)

// ErrSyntax is what the fake reports for statements registered with Malformed.
var ErrSyntax = errors.New("line 1:7 no viable alternative at input ';'")

// Script describes how the fake answers one statement.
type Script struct {
	Columns []string
	Pages   [][][]any

	// Err is delivered through the error callback in place of page ErrAfter.
	Err      error
	ErrAfter int

	// SubmitErr makes Submit itself fail.
	SubmitErr error

	// Delay is slept before every delivery, FetchDelay inside FetchNextPage.
	Delay      time.Duration
	FetchDelay time.Duration

	// Manual disables automatic deliveries; the test drives the operation
	// through DeliverPage and DeliverError.
	Manual bool
}

// Pages builds pages holding consecutive integers, one single-column row
// per integer, starting at 1.
func Pages(sizes ...int) [][][]any {
	pages := make([][][]any, len(sizes))
	n := 0
	for i, size := range sizes {
		page := make([][]any, size)
		for j := range page {
			n++
			page[j] = []any{n}
		}
		pages[i] = page
	}
	return pages
}

// Session is a fake driver.Session. The zero value is not usable; call NewSession.
type Session struct {
	name string

	mu        sync.Mutex
	scripts   map[string]Script
	prepared  map[string]error
	submitted []driver.Query
	ops       []*Operation
	closed    bool
	tables    map[string][]string
	columns   map[string][]driver.Column
}

// NewSession creates an empty fake session.
func NewSession(name string) *Session {
	return &Session{
		name:     name,
		scripts:  make(map[string]Script),
		prepared: make(map[string]error),
	}
}

// Script registers the answer for statement.
func (s *Session) Script(statement string, sc Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[statement] = sc
}

// Malformed makes statement fail with ErrSyntax both when prepared and
// when executed. Execution reports the error through the callback.
func (s *Session) Malformed(statement string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[statement] = Script{Err: ErrSyntax}
	s.prepared[statement] = ErrSyntax
}

// Submit implements driver.Session.
func (s *Session) Submit(ctx context.Context, q driver.Query) (driver.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("session closed")
	}
	sc, ok := s.scripts[q.Text()]
	s.submitted = append(s.submitted, q)
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unknown statement %q", q.Text())
	}
	if sc.SubmitErr != nil {
		return nil, sc.SubmitErr
	}

	op := &Operation{script: sc, delivered: -1}
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()

	if !sc.Manual {
		op.deliverAsync(0)
	}
	return op, nil
}

// Prepare implements driver.Session.
func (s *Session) Prepare(ctx context.Context, statement string) (driver.PreparedStatement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prepared[statement]; err != nil {
		return nil, err
	}
	var cols []string
	if sc, ok := s.scripts[statement]; ok {
		cols = sc.Columns
	}
	return Prepared{Text: statement, Cols: cols}, nil
}

// Close implements driver.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Name implements driver.Session.
func (s *Session) Name() string {
	return s.name
}

// Submitted returns every query passed to Submit.
func (s *Session) Submitted() []driver.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driver.Query(nil), s.submitted...)
}

// LastOperation returns the most recently submitted operation, or nil.
func (s *Session) LastOperation() *Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ops) == 0 {
		return nil
	}
	return s.ops[len(s.ops)-1]
}

// SetCatalog sets the schema the Catalog methods report. columns is keyed
// by "schema.table".
func (s *Session) SetCatalog(tables map[string][]string, columns map[string][]driver.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables, s.columns = tables, columns
}

// Schemas implements driver.Catalog.
func (s *Session) Schemas(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Tables implements driver.Catalog.
func (s *Session) Tables(_ context.Context, schema string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, ok := s.tables[schema]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
	return append([]string(nil), tables...), nil
}

// Columns implements driver.Catalog.
func (s *Session) Columns(_ context.Context, schema, table string) ([]driver.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cols, ok := s.columns[schema+"."+table]
	if !ok {
		return nil, fmt.Errorf("unknown table %s.%s", schema, table)
	}
	return append([]driver.Column(nil), cols...), nil
}

// Prepared is the fake's driver.PreparedStatement.
type Prepared struct {
	Text string
	Cols []string
}

// Statement implements driver.PreparedStatement.
func (p Prepared) Statement() string { return p.Text }

// Columns implements driver.PreparedStatement.
func (p Prepared) Columns() []string { return p.Cols }

type delivery struct {
	rs  *driver.ResultSet
	err error
}

// Operation is the fake's driver.Operation.
type Operation struct {
	script Script

	mu        sync.Mutex
	onPage    func(*driver.ResultSet)
	onError   func(error)
	backlog   []delivery
	delivered int
	next      int

	fetchesStarted  atomic.Int32
	fetchesFinished atomic.Int32
	released        atomic.Bool
}

// OnComplete implements driver.Operation.
func (o *Operation) OnComplete(onPage func(*driver.ResultSet), onError func(error)) {
	o.mu.Lock()
	o.onPage, o.onError = onPage, onError
	backlog := o.backlog
	o.backlog = nil
	o.mu.Unlock()

	for _, d := range backlog {
		o.invoke(d)
	}
}

// HasMorePages implements driver.Operation.
func (o *Operation) HasMorePages() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.delivered >= 0 && o.delivered < len(o.script.Pages)-1
}

// FetchNextPage implements driver.Operation.
func (o *Operation) FetchNextPage() error {
	o.fetchesStarted.Add(1)
	defer o.fetchesFinished.Add(1)

	if o.script.FetchDelay > 0 {
		time.Sleep(o.script.FetchDelay)
	}

	o.mu.Lock()
	if o.next >= len(o.script.Pages) {
		o.mu.Unlock()
		return errors.New("no more pages")
	}
	idx := o.next
	o.mu.Unlock()

	if !o.script.Manual {
		o.deliverAsync(idx)
	}
	return nil
}

// Release implements driver.Releaser.
func (o *Operation) Release() error {
	o.released.Store(true)
	return nil
}

// Released reports whether Release was called.
func (o *Operation) Released() bool {
	return o.released.Load()
}

// FetchesStarted returns how many FetchNextPage calls began.
func (o *Operation) FetchesStarted() int {
	return int(o.fetchesStarted.Load())
}

// FetchesFinished returns how many FetchNextPage calls returned.
func (o *Operation) FetchesFinished() int {
	return int(o.fetchesFinished.Load())
}

// DeliverPage fires the page callback with page idx of the script, from the
// calling goroutine.
func (o *Operation) DeliverPage(idx int) {
	o.deliver(idx)
}

// DeliverError fires the error callback from the calling goroutine.
func (o *Operation) DeliverError(err error) {
	o.dispatch(delivery{err: err})
}

func (o *Operation) deliverAsync(idx int) {
	o.mu.Lock()
	o.next = idx + 1
	o.mu.Unlock()

	go func() {
		if o.script.Delay > 0 {
			time.Sleep(o.script.Delay)
		}
		o.deliver(idx)
	}()
}

func (o *Operation) deliver(idx int) {
	sc := o.script
	if sc.Err != nil && idx == sc.ErrAfter {
		o.dispatch(delivery{err: sc.Err})
		return
	}

	var values [][]any
	if idx < len(sc.Pages) {
		values = sc.Pages[idx]
	}
	rs := &driver.ResultSet{
		Columns: sc.Columns,
		Rows:    driver.NewRows(sc.Columns, values),
	}

	o.mu.Lock()
	if idx > o.delivered {
		o.delivered = idx
	}
	if o.next <= idx {
		o.next = idx + 1
	}
	o.mu.Unlock()

	o.dispatch(delivery{rs: rs})
}

func (o *Operation) dispatch(d delivery) {
	o.mu.Lock()
	if o.onPage == nil {
		o.backlog = append(o.backlog, d)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.invoke(d)
}

func (o *Operation) invoke(d delivery) {
	o.mu.Lock()
	onPage, onError := o.onPage, o.onError
	o.mu.Unlock()

	if d.err != nil {
		onError(d.err)
		return
	}
	onPage(d.rs)
}
