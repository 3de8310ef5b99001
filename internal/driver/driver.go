package driver

import "context"

// Session is a connected, callback-style query driver.
// All implementations must be safe for concurrent use.
type Session interface {
	// Submit starts executing q and returns the operation that will report
	// its pages. It may block on connection setup or backpressure.
	Submit(ctx context.Context, q Query) (Operation, error)

	// Prepare prepares a statement. It blocks for a server round trip.
	Prepare(ctx context.Context, statement string) (PreparedStatement, error)

	// Close releases every connection held by the session.
	Close() error

	// Name identifies the connected database or keyspace.
	Name() string
}

// Operation is a submitted query. Its callbacks fire on goroutines owned by
// the driver.
type Operation interface {
	// OnComplete registers the single callback pair of the operation. For
	// each page delivery exactly one of the two fires, exactly once. A
	// delivery that happened before registration is replayed to it.
	OnComplete(onPage func(*ResultSet), onError func(error))

	// HasMorePages reports whether the last delivered page has a successor.
	HasMorePages() bool

	// FetchNextPage requests the next page. It may block; the page itself
	// arrives through the registered callbacks.
	FetchNextPage() error
}

// Releaser is implemented by operations that hold server resources, such
// as an open cursor, until released.
type Releaser interface {
	Release() error
}

// PreparedStatement is a statement the server has already parsed.
type PreparedStatement interface {
	// Statement returns the statement text as passed to Prepare.
	Statement() string
	// Columns returns the result column names, if known.
	Columns() []string
}

// Catalog is implemented by sessions that can describe their schema.
type Catalog interface {
	// Schemas returns the user schemas, or keyspaces.
	Schemas(ctx context.Context) ([]string, error)

	// Tables returns the table names in a schema.
	Tables(ctx context.Context, schema string) ([]string, error)

	// Columns returns the columns of a table in declaration order.
	Columns(ctx context.Context, schema, table string) ([]Column, error)
}
