// Package postgres adapts a pgx connection pool to the callback-style
// driver.Session. Result pages are cut from a single server-side cursor.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/aiodb/internal/driver"
)

// ErrNoMorePages is returned by FetchNextPage after the last page.
var ErrNoMorePages = errors.New("postgres: no more pages")

// Session implements driver.Session and driver.Catalog for PostgreSQL.
type Session struct {
	pool   *pgxpool.Pool
	dbName string
	logger *slog.Logger
}

// Option configures Connect.
type Option func(*pgxpool.Config, *Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(_ *pgxpool.Config, s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxConns bounds the pool. Every open paginator holds one connection.
func WithMaxConns(n int32) Option {
	return func(cfg *pgxpool.Config, _ *Session) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// Connect establishes a connection pool to PostgreSQL.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Session, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1

	s := &Session{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg, s)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s.pool = pool
	s.dbName = cfg.ConnConfig.Database
	s.logger.Debug("postgres pool ready", "database", s.dbName, "max_conns", cfg.MaxConns)
	return s, nil
}

// Submit runs q and delivers its first page from a new goroutine.
func (s *Session) Submit(ctx context.Context, q driver.Query) (driver.Operation, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, q.Text(), q.Args...)
	if err != nil {
		return nil, err
	}

	op := newOperation(rows, q.EffectivePageSize())
	go op.deliver(op.read(start))
	return op, nil
}

// Prepare parses statement on one pooled connection and reports its result
// columns. Executing the returned statement re-sends its text; pgx caches
// the parsed form per connection.
func (s *Session) Prepare(ctx context.Context, statement string) (driver.PreparedStatement, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sd, err := conn.Conn().Prepare(ctx, "", statement)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(sd.Fields))
	for i, f := range sd.Fields {
		cols[i] = f.Name
	}
	return &prepared{text: statement, columns: cols}, nil
}

// Close closes the connection pool.
func (s *Session) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Name returns the name of the connected database.
func (s *Session) Name() string {
	return s.dbName
}

// Schemas returns all user-created schemas.
func (s *Session) Schemas(ctx context.Context) ([]string, error) {
	return s.names(ctx, queryListSchemas)
}

// Tables returns all table names in a schema.
func (s *Session) Tables(ctx context.Context, schema string) ([]string, error) {
	return s.names(ctx, queryListTables, schema)
}

// Columns returns column metadata for a table.
func (s *Session) Columns(ctx context.Context, schema, table string) ([]driver.Column, error) {
	rows, err := s.pool.Query(ctx, queryGetColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	defer rows.Close()

	var columns []driver.Column
	for rows.Next() {
		var col driver.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Default, &col.OrdinalPos, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.IsNullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (s *Session) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type prepared struct {
	text    string
	columns []string
}

func (p *prepared) Statement() string { return p.text }
func (p *prepared) Columns() []string { return p.columns }
