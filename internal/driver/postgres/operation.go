package postgres

import (
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/aiodb/internal/driver"
)

type delivery struct {
	page *driver.ResultSet
	err  error
}

// operation cuts pages of pageSize rows from one pgx.Rows. It reads one row
// ahead so HasMorePages is exact.
type operation struct {
	readMu   sync.Mutex
	rows     pgx.Rows
	columns  []string
	pageSize int
	ahead    []any
	done     bool

	mu      sync.Mutex
	onPage  func(*driver.ResultSet)
	onError func(error)
	backlog []delivery
	more    bool
}

func newOperation(rows pgx.Rows, pageSize int) *operation {
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return &operation{rows: rows, columns: cols, pageSize: pageSize}
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
	return op.more
}

// FetchNextPage reads the next page on the calling goroutine and delivers
// it before returning.
func (op *operation) FetchNextPage() error {
	if !op.HasMorePages() {
		return ErrNoMorePages
	}
	op.deliver(op.read(time.Now()))
	return nil
}

// Release closes the cursor and returns its connection to the pool.
func (op *operation) Release() error {
	op.readMu.Lock()
	defer op.readMu.Unlock()
	op.rows.Close()
	op.done = true
	return nil
}

func (op *operation) read(start time.Time) delivery {
	op.readMu.Lock()
	defer op.readMu.Unlock()

	if op.done {
		return delivery{page: &driver.ResultSet{Columns: op.columns}}
	}

	values := make([][]any, 0, op.pageSize)
	if op.ahead != nil {
		values = append(values, op.ahead)
		op.ahead = nil
	}
	for len(values) < op.pageSize && op.rows.Next() {
		v, err := op.rows.Values()
		if err != nil {
			op.finish()
			return delivery{err: err}
		}
		values = append(values, v)
	}

	more := false
	if len(values) == op.pageSize && op.rows.Next() {
		v, err := op.rows.Values()
		if err != nil {
			op.finish()
			return delivery{err: err}
		}
		op.ahead, more = v, true
	}
	if !more {
		op.finish()
		if err := op.rows.Err(); err != nil {
			return delivery{err: err}
		}
	}

	op.mu.Lock()
	op.more = more
	op.mu.Unlock()

	return delivery{page: &driver.ResultSet{
		Columns:  op.columns,
		Rows:     driver.NewRows(op.columns, values),
		Duration: time.Since(start),
	}}
}

// finish must be called with readMu held.
func (op *operation) finish() {
	if !op.done {
		op.rows.Close()
		op.done = true
	}
	op.mu.Lock()
	op.more = false
	op.mu.Unlock()
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
	op.onPage(d.page)
}
