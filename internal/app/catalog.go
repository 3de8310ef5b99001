package app

import (
	"context"
	"errors"
	"sort"

	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/loop"
)

// ErrNoCatalog is returned when the driver session cannot describe its schema.
var ErrNoCatalog = errors.New("driver session has no catalog")

// SchemaTree represents the loaded schema hierarchy for the explorer.
type SchemaTree struct {
	Database string
	Schemas  []SchemaNode
}

// SchemaNode holds a schema name and its tables.
type SchemaNode struct {
	Name   string
	Tables []string
}

// TableNames returns every table name in the tree, qualified by schema
// and sorted.
func (t *SchemaTree) TableNames() []string {
	if t == nil {
		return nil
	}
	var names []string
	for _, s := range t.Schemas {
		for _, table := range s.Tables {
			names = append(names, s.Name+"."+table)
		}
	}
	sort.Strings(names)
	return names
}

// SchemaTreeFuture loads schemas and their tables on the executor.
func (s *Session) SchemaTreeFuture(ctx context.Context) *loop.Future[*SchemaTree] {
	cat, ok := s.driver.(driver.Catalog)
	if !ok {
		return loop.FailedFuture[*SchemaTree](s.loop, ErrNoCatalog)
	}
	return offload(s, "schema_tree", func() (*SchemaTree, error) {
		schemas, err := cat.Schemas(ctx)
		if err != nil {
			return nil, err
		}

		tree := &SchemaTree{Database: s.driver.Name()}
		for _, schema := range schemas {
			tables, err := cat.Tables(ctx, schema)
			if err != nil {
				return nil, err
			}
			tree.Schemas = append(tree.Schemas, SchemaNode{Name: schema, Tables: tables})
		}
		return tree, nil
	})
}

// ColumnsFuture loads the columns of one table on the executor.
func (s *Session) ColumnsFuture(ctx context.Context, schema, table string) *loop.Future[[]driver.Column] {
	cat, ok := s.driver.(driver.Catalog)
	if !ok {
		return loop.FailedFuture[[]driver.Column](s.loop, ErrNoCatalog)
	}
	return offload(s, "columns", func() ([]driver.Column, error) {
		return cat.Columns(ctx, schema, table)
	})
}
