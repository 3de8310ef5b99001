package cassandra

import (
	"context"
	"sync"
	"time"

	"github.com/joacominatel/aiodb/internal/driver"
)

type page struct {
	columns []string
	values  [][]any
	next    []byte // empty on the last page
}

type pageFunc func(ctx context.Context, state []byte) (page, error)

type delivery struct {
	rs  *driver.ResultSet
	err error
}

// operation walks a query page by page. Each fetch is a separate request
// carrying the paging state of the previous one.
type operation struct {
	ctx   context.Context
	fetch pageFunc

	mu       sync.Mutex
	state    []byte
	more     bool
	released bool
	onPage   func(*driver.ResultSet)
	onError  func(error)
	backlog  []delivery
}

func newOperation(ctx context.Context, fetch pageFunc) *operation {
	return &operation{ctx: ctx, fetch: fetch}
}

func (op *operation) OnComplete(onPage func(*driver.ResultSet), onError func(error)) {
	op.mu.Lock()
	op.onPage, op.onError = onPage, onError
	backlog := op.backlog
	op.backlog = nil
	op.mu.Unlock()

	for _, d := range backlog {
		op.fire(d)
	}
}

func (op *operation) HasMorePages() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.more && !op.released
}

// FetchNextPage requests the page after the last delivered one and
// delivers it before returning.
func (op *operation) FetchNextPage() error {
	op.mu.Lock()
	if !op.more || op.released {
		op.mu.Unlock()
		return ErrNoMorePages
	}
	state := op.state
	op.mu.Unlock()

	op.deliver(op.read(state))
	return nil
}

// Release stops further paging. Cassandra keeps no cursor between pages.
func (op *operation) Release() error {
	op.mu.Lock()
	op.released = true
	op.mu.Unlock()
	return nil
}

func (op *operation) read(state []byte) delivery {
	start := time.Now()
	p, err := op.fetch(op.ctx, state)

	op.mu.Lock()
	defer op.mu.Unlock()
	if err != nil {
		op.more = false
		return delivery{err: err}
	}
	op.state = p.next
	op.more = len(p.next) > 0
	return delivery{rs: &driver.ResultSet{
		Columns:  p.columns,
		Rows:     driver.NewRows(p.columns, p.values),
		Duration: time.Since(start),
	}}
}

func (op *operation) deliver(d delivery) {
	op.mu.Lock()
	if op.onPage == nil {
		op.backlog = append(op.backlog, d)
		op.mu.Unlock()
		return
	}
	op.mu.Unlock()
	op.fire(d)
}

func (op *operation) fire(d delivery) {
	if d.err != nil {
		op.onError(d.err)
		return
	}
	op.onPage(d.rs)
}
