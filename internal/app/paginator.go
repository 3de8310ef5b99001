package app

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/loop"
)

type pageState int

const (
	stateUnopened pageState = iota
	stateOpening
	stateFetching
	stateFinished
	stateFailed
	stateClosed
)

func (s pageState) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateOpening:
		return "opening"
	case stateFetching:
		return "fetching"
	case stateFinished:
		return "finished"
	case stateFailed:
		return "failed"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of paginator progress.
type Stats struct {
	State    string
	Pages    int
	Rows     int // rows accepted into the buffer so far
	Buffered int
	Inflight int
}

// Paginator streams every page of one query as a sequence of rows.
//
// It is a scope: Open submits the query, Close ends it. Rows are read with
// Next or Rows between the two. Close must always be called once Open has
// succeeded; it does not return until every background page fetch it
// started has completed, and pages arriving afterwards are dropped.
//
// All fields below the marker are owned by the loop.
type Paginator struct {
	id     uuid.UUID
	s      *Session
	submit func(context.Context) (driver.Operation, error)

	// loop only
	state    pageState
	op       driver.Operation
	buffer   []driver.Row
	head     int
	drain    *loop.Signal
	finished *loop.Signal
	err      error
	exit     bool
	inflight map[*loop.Future[struct{}]]struct{}
	columns  []string
	pages    int
	rows     int
}

func newPaginator(s *Session, submit func(context.Context) (driver.Operation, error)) *Paginator {
	return &Paginator{
		id:       uuid.New(),
		s:        s,
		submit:   submit,
		drain:    loop.NewSignal(),
		finished: loop.NewSignal(),
		inflight: make(map[*loop.Future[struct{}]]struct{}),
	}
}

// ID identifies the paginator in logs.
func (p *Paginator) ID() uuid.UUID {
	return p.id
}

// Open submits the query on the executor and starts receiving pages. If
// submission fails the paginator stays unopened and the driver error is
// returned as is. Drivers may keep using ctx for later page fetches, so it
// should outlive the scope.
func (p *Paginator) Open(ctx context.Context) error {
	var misuse error
	if err := p.s.loop.Call(func() {
		if p.state != stateUnopened {
			misuse = &MisuseError{Op: "open", State: p.state.String()}
			return
		}
		p.state = stateOpening
	}); err != nil {
		return err
	}
	if misuse != nil {
		return misuse
	}

	submitted := offload(p.s, "submit", func() (driver.Operation, error) {
		return p.submit(ctx)
	})
	op, err := submitted.Await(ctx)
	if err != nil {
		_ = p.s.loop.Call(func() {
			if p.state == stateOpening {
				p.state = stateUnopened
			}
			// A submission that lands after we stopped waiting is not ours to keep.
			submitted.OnDone(func() {
				if late, err := submitted.Result(); err == nil {
					p.s.releaseLater(late)
				}
			})
		})
		return err
	}

	var closed bool
	if err := p.s.loop.Call(func() {
		if p.state != stateOpening {
			closed = true
			return
		}
		p.op = op
		p.state = stateFetching
	}); err != nil {
		p.s.release(op)
		return err
	}
	if closed {
		p.s.release(op)
		return &MisuseError{Op: "open", State: stateClosed.String()}
	}

	op.OnComplete(p.onPage, p.onError)
	p.s.logger.Debug("paginator opened", "paginator", p.id)
	return nil
}

// Next returns the next row. It reports ok=false with a nil error once the
// last page has been consumed. A driver error is returned from the first
// call after it arrives and from every call after that; no buffered row is
// returned once an error is pending.
func (p *Paginator) Next(ctx context.Context) (row driver.Row, ok bool, err error) {
	for {
		var (
			end          bool
			wakeDrain    <-chan struct{}
			wakeFinished <-chan struct{}
		)
		if callErr := p.s.loop.Call(func() {
			switch {
			case p.state == stateUnopened, p.state == stateOpening, p.state == stateClosed:
				err = &MisuseError{Op: "next", State: p.state.String()}
			case p.err != nil:
				err = p.err
			case p.head < len(p.buffer):
				row, ok = p.pop(), true
			case p.finished.IsSet():
				end = true
			default:
				p.drain.Clear()
				wakeDrain, wakeFinished = p.drain.Wait(), p.finished.Wait()
			}
		}); callErr != nil {
			return driver.Row{}, false, callErr
		}

		if err != nil || ok || end {
			return row, ok, err
		}

		select {
		case <-wakeDrain:
		case <-wakeFinished:
		case <-ctx.Done():
			return driver.Row{}, false, ctx.Err()
		}
	}
}

// Rows returns the remaining rows as a sequence. The sequence stops after
// yielding an error. Stopping early does not close the paginator.
func (p *Paginator) Rows(ctx context.Context) iter.Seq2[driver.Row, error] {
	return func(yield func(driver.Row, error) bool) {
		for {
			row, ok, err := p.Next(ctx)
			if err != nil {
				yield(driver.Row{}, err)
				return
			}
			if !ok || !yield(row, nil) {
				return
			}
		}
	}
}

// Columns returns the column names of the first delivered page.
func (p *Paginator) Columns() []string {
	var cols []string
	_ = p.s.loop.Call(func() {
		cols = p.columns
	})
	return cols
}

// Stats returns a snapshot of the paginator.
func (p *Paginator) Stats() Stats {
	var st Stats
	_ = p.s.loop.Call(func() {
		st = Stats{
			State:    p.state.String(),
			Pages:    p.pages,
			Rows:     p.rows,
			Buffered: len(p.buffer) - p.head,
			Inflight: len(p.inflight),
		}
	})
	return st
}

// Close ends the scope. Buffered rows are dropped, later deliveries are
// ignored, and Close waits for every in-flight page fetch before releasing
// the driver operation. Closing twice is a no-op.
func (p *Paginator) Close() error {
	var (
		pending []*loop.Future[struct{}]
		op      driver.Operation
		already bool
	)
	if err := p.s.loop.Call(func() {
		if p.state == stateClosed {
			already = true
			return
		}
		p.exit = true
		p.state = stateClosed
		p.buffer, p.head = nil, 0
		for f := range p.inflight {
			pending = append(pending, f)
		}
		op = p.op
		p.drain.Set()
	}); err != nil {
		return err
	}
	if already {
		return nil
	}

	for _, f := range pending {
		select {
		case <-f.Done():
		case <-p.s.loop.Done():
			return loop.ErrClosed
		}
	}
	if op != nil {
		p.s.release(op)
	}
	p.s.logger.Debug("paginator closed", "paginator", p.id, "awaited_fetches", len(pending))
	return nil
}

func (p *Paginator) onPage(rs *driver.ResultSet) {
	_ = p.s.loop.Post(func() {
		p.acceptPage(rs)
	})
}

func (p *Paginator) onError(err error) {
	_ = p.s.loop.Post(func() {
		p.fail(err)
	})
}

// acceptPage runs on the loop, so the exit check and the append below
// cannot interleave with Close.
func (p *Paginator) acceptPage(rs *driver.ResultSet) {
	if p.exit {
		p.s.metrics.PageDiscarded()
		p.s.logger.Debug("page dropped after close", "paginator", p.id, "rows", len(rs.Rows))
		return
	}
	if p.err != nil {
		return
	}

	if p.columns == nil {
		p.columns = rs.Columns
	}
	p.buffer = append(p.buffer, rs.Rows...)
	p.pages++
	p.rows += len(rs.Rows)
	p.s.metrics.PageDelivered(len(rs.Rows))
	p.drain.Set()

	if p.op.HasMorePages() {
		p.fetchNext()
		return
	}
	p.state = stateFinished
	p.finished.Set()
}

func (p *Paginator) fetchNext() {
	op := p.op
	fut := offload(p.s, "fetch_next_page", func() (struct{}, error) {
		return struct{}{}, op.FetchNextPage()
	})
	p.inflight[fut] = struct{}{}
	p.s.metrics.FetchStarted()

	fut.OnDone(func() {
		delete(p.inflight, fut)
		p.s.metrics.FetchDone()
		if _, err := fut.Result(); err != nil {
			p.fail(err)
		}
	})
}

func (p *Paginator) fail(err error) {
	if p.exit {
		return
	}
	if p.err == nil {
		p.err = err
	}
	p.state = stateFailed
	p.finished.Set()
}

func (p *Paginator) pop() driver.Row {
	row := p.buffer[p.head]
	p.buffer[p.head] = driver.Row{}
	p.head++
	if p.head == len(p.buffer) {
		p.buffer, p.head = p.buffer[:0], 0
	}
	return row
}
