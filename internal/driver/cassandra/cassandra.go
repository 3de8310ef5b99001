// Package cassandra adapts a gocql session to the callback-style
// driver.Session using manual paging state.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/joacominatel/aiodb/internal/driver"
)

// ErrNoMorePages is returned by FetchNextPage after the last page.
var ErrNoMorePages = errors.New("cassandra: no more pages")

var consistencies = map[string]gocql.Consistency{
	"any":          gocql.Any,
	"one":          gocql.One,
	"two":          gocql.Two,
	"three":        gocql.Three,
	"quorum":       gocql.Quorum,
	"all":          gocql.All,
	"local_quorum": gocql.LocalQuorum,
	"each_quorum":  gocql.EachQuorum,
	"local_one":    gocql.LocalOne,
}

// Config describes a cluster to connect to.
type Config struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Username    string
	Password    string
	Consistency string // defaults to local_quorum
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Session implements driver.Session and driver.Catalog for Cassandra.
type Session struct {
	session  *gocql.Session
	keyspace string
	logger   *slog.Logger
}

// ParseConsistency maps a consistency name such as "local_quorum" to its
// gocql level.
func ParseConsistency(name string) (gocql.Consistency, error) {
	if name == "" {
		return gocql.LocalQuorum, nil
	}
	c, ok := consistencies[strings.ToLower(strings.ReplaceAll(name, "-", "_"))]
	if !ok {
		return 0, fmt.Errorf("unknown consistency %q", name)
	}
	return c, nil
}

// Connect creates a session against the cluster described by cfg.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("connect: no hosts")
	}
	consistency, err := ParseConsistency(cfg.Consistency)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = consistency
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		cluster.ConnectTimeout = time.Until(deadline)
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		cluster.Logger = gocql.NewLogger(gocql.LogLevelInfo)
	}

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	logger.Debug("cassandra session ready", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace, "consistency", consistency)
	return &Session{session: sess, keyspace: cfg.Keyspace, logger: logger}, nil
}

// Submit fetches the first page of q from a new goroutine. Later pages
// reuse ctx.
func (s *Session) Submit(ctx context.Context, q driver.Query) (driver.Operation, error) {
	op := newOperation(ctx, s.pager(q))
	go op.deliver(op.read(nil))
	return op, nil
}

// Prepare records statement for later binding. gocql prepares statements
// transparently on first execution, so server-side errors surface from
// Submit instead.
func (s *Session) Prepare(_ context.Context, statement string) (driver.PreparedStatement, error) {
	if strings.TrimSpace(statement) == "" {
		return nil, errors.New("prepare: empty statement")
	}
	return &prepared{text: statement}, nil
}

// Close closes the underlying session.
func (s *Session) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

// Name returns the session keyspace.
func (s *Session) Name() string {
	return s.keyspace
}

// Schemas returns the keyspaces of the cluster.
func (s *Session) Schemas(ctx context.Context) ([]string, error) {
	return s.names(ctx, queryListKeyspaces)
}

// Tables returns the tables of a keyspace.
func (s *Session) Tables(ctx context.Context, keyspace string) ([]string, error) {
	return s.names(ctx, queryListTables, keyspace)
}

// Columns returns the columns of a table, key columns first.
func (s *Session) Columns(ctx context.Context, keyspace, table string) ([]driver.Column, error) {
	it := s.session.Query(queryGetColumns, keyspace, table).WithContext(ctx).Iter()

	type described struct {
		driver.Column
		kind string
		pos  int
	}
	var cols []described
	var (
		name, typ, kind string
		pos             int
	)
	for it.Scan(&name, &typ, &kind, &pos) {
		cols = append(cols, described{
			Column: driver.Column{
				Name:      name,
				DataType:  typ,
				IsPrimary: kind == "partition_key" || kind == "clustering",
			},
			kind: kind,
			pos:  pos,
		})
	}
	if err := it.Close(); err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	sort.SliceStable(cols, func(i, j int) bool {
		ri, rj := kindRank(cols[i].kind), kindRank(cols[j].kind)
		if ri != rj {
			return ri < rj
		}
		if cols[i].pos != cols[j].pos {
			return cols[i].pos < cols[j].pos
		}
		return cols[i].Name < cols[j].Name
	})

	out := make([]driver.Column, len(cols))
	for i, c := range cols {
		out[i] = c.Column
		out[i].OrdinalPos = i + 1
		out[i].IsNullable = !c.IsPrimary
	}
	return out, nil
}

func (s *Session) names(ctx context.Context, query string, args ...any) ([]string, error) {
	it := s.session.Query(query, args...).WithContext(ctx).Iter()
	var (
		names []string
		name  string
	)
	for it.Scan(&name) {
		names = append(names, name)
	}
	if err := it.Close(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// pager fetches single pages of q by paging state.
func (s *Session) pager(q driver.Query) pageFunc {
	stmt, args, size := q.Text(), q.Args, q.EffectivePageSize()
	return func(ctx context.Context, state []byte) (page, error) {
		it := s.session.Query(stmt, args...).
			PageSize(size).
			PageState(state).
			WithContext(ctx).
			Iter()

		infos := it.Columns()
		cols := make([]string, len(infos))
		for i, c := range infos {
			cols[i] = c.Name
		}

		var values [][]any
		for {
			m := make(map[string]any, len(cols))
			if !it.MapScan(m) {
				break
			}
			v := make([]any, len(cols))
			for i, c := range cols {
				v[i] = m[c]
			}
			values = append(values, v)
		}
		next := it.PageState()
		if err := it.Close(); err != nil {
			return page{}, err
		}
		return page{columns: cols, values: values, next: next}, nil
	}
}

func kindRank(kind string) int {
	switch kind {
	case "partition_key":
		return 0
	case "clustering":
		return 1
	case "static":
		return 2
	default:
		return 3
	}
}

type prepared struct {
	text string
}

func (p *prepared) Statement() string { return p.text }
func (p *prepared) Columns() []string { return nil }
