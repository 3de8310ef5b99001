package postgres

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joacominatel/aiodb/internal/driver"
)

type fakeRows struct {
	values [][]any
	pos    int
	err    error // reported once values run out
	closed bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return []pgconn.FieldDescription{{Name: "id"}}
}
func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(...any) error      { return errors.New("not supported") }
func (r *fakeRows) Values() ([]any, error) { return r.values[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func ints(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{i + 1}
	}
	return out
}

type recorder struct {
	mu    sync.Mutex
	pages []*driver.ResultSet
	errs  []error
}

func (r *recorder) onPage(rs *driver.ResultSet) {
	r.mu.Lock()
	r.pages = append(r.pages, rs)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func TestOperationCutsPages(t *testing.T) {
	rows := &fakeRows{values: ints(5)}
	op := newOperation(rows, 2)
	rec := &recorder{}

	op.deliver(op.read(time.Now()))
	op.OnComplete(rec.onPage, rec.onError)
	for op.HasMorePages() {
		if err := op.FetchNextPage(); err != nil {
			t.Fatalf("FetchNextPage: %v", err)
		}
	}

	if len(rec.errs) != 0 {
		t.Fatalf("unexpected errors: %v", rec.errs)
	}
	var sizes []int
	next := 1
	for _, p := range rec.pages {
		sizes = append(sizes, len(p.Rows))
		for _, row := range p.Rows {
			if row.Values[0] != next {
				t.Fatalf("row %v out of order, want %d", row.Values[0], next)
			}
			next++
		}
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("page sizes = %v, want [2 2 1]", sizes)
	}
	if !rows.closed {
		t.Error("cursor left open after the last page")
	}
	if err := op.FetchNextPage(); !errors.Is(err, ErrNoMorePages) {
		t.Errorf("FetchNextPage after end = %v", err)
	}
}

func TestOperationExactMultipleHasNoEmptyTail(t *testing.T) {
	op := newOperation(&fakeRows{values: ints(4)}, 2)
	rec := &recorder{}
	op.OnComplete(rec.onPage, rec.onError)

	op.deliver(op.read(time.Now()))
	if !op.HasMorePages() {
		t.Fatal("expected a second page")
	}
	if err := op.FetchNextPage(); err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}
	if op.HasMorePages() {
		t.Error("expected no third page")
	}
	if len(rec.pages) != 2 {
		t.Errorf("pages = %d, want 2", len(rec.pages))
	}
}

func TestOperationEmptyResult(t *testing.T) {
	op := newOperation(&fakeRows{}, 10)
	rec := &recorder{}
	op.OnComplete(rec.onPage, rec.onError)
	op.deliver(op.read(time.Now()))

	if len(rec.pages) != 1 || len(rec.pages[0].Rows) != 0 {
		t.Fatalf("pages = %+v", rec.pages)
	}
	if rec.pages[0].Columns[0] != "id" {
		t.Errorf("columns = %v", rec.pages[0].Columns)
	}
	if op.HasMorePages() {
		t.Error("empty result reports more pages")
	}
}

func TestOperationServerErrorPassesThrough(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42601", Message: "syntax error"}
	op := newOperation(&fakeRows{values: ints(1), err: pgErr}, 10)
	rec := &recorder{}
	op.OnComplete(rec.onPage, rec.onError)
	op.deliver(op.read(time.Now()))

	if len(rec.pages) != 0 || len(rec.errs) != 1 {
		t.Fatalf("pages=%d errs=%v", len(rec.pages), rec.errs)
	}
	if rec.errs[0] != error(pgErr) {
		t.Errorf("error = %v, want the server error unchanged", rec.errs[0])
	}
}

func TestOperationReleaseStopsReading(t *testing.T) {
	rows := &fakeRows{values: ints(10)}
	op := newOperation(rows, 3)
	rec := &recorder{}
	op.OnComplete(rec.onPage, rec.onError)
	op.deliver(op.read(time.Now()))

	if err := op.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !rows.closed {
		t.Error("Release did not close the cursor")
	}
	d := op.read(time.Now())
	if d.err != nil || len(d.page.Rows) != 0 {
		t.Errorf("read after release = %+v", d)
	}
}
