// Package driver defines the callback-style query driver capability and the
// values that cross it.
package driver

import (
	"fmt"
	"time"
)

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 500

// Query is a statement to submit.
type Query struct {
	Statement string
	Args      []any
	Prepared  PreparedStatement // when set, Statement is ignored
	PageSize  int
}

// NewQuery builds a query from statement text.
func NewQuery(statement string, args ...any) Query {
	return Query{Statement: statement, Args: args}
}

// Bind builds a query that executes a prepared statement.
func Bind(ps PreparedStatement, args ...any) Query {
	return Query{Prepared: ps, Args: args}
}

// Text returns the statement to send to the server.
func (q Query) Text() string {
	if q.Prepared != nil {
		return q.Prepared.Statement()
	}
	return q.Statement
}

// EffectivePageSize returns PageSize or DefaultPageSize.
func (q Query) EffectivePageSize() int {
	if q.PageSize > 0 {
		return q.PageSize
	}
	return DefaultPageSize
}

// Column describes a table column.
type Column struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPrimary  bool
	Default    string
	OrdinalPos int
}

// ResultSet is one page of a query result.
type ResultSet struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

// Row is one result row. Columns is shared by every row of a page.
type Row struct {
	Columns []string
	Values  []any
}

// NewRows pairs every value slice in values with columns.
func NewRows(columns []string, values [][]any) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{Columns: columns, Values: v}
	}
	return rows
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Strings renders the row for display. NULL values render as "NULL".
func (r Row) Strings() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		if v == nil {
			out[i] = "NULL"
		} else {
			out[i] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
