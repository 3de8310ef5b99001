package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joacominatel/aiodb/internal/config"
	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/driver/cassandra"
	"github.com/joacominatel/aiodb/internal/driver/postgres"
	"github.com/joacominatel/aiodb/internal/loop"
)

// Dial opens the driver named by conn and wraps it. Connection failures
// are reported as *ErrConnection.
func Dial(ctx context.Context, conn config.Connection, l *loop.Loop, ex loop.Executor, opts ...Option) (*Session, error) {
	base := &Session{logger: slog.Default()}
	for _, opt := range opts {
		opt(base)
	}

	sess, err := open(ctx, conn, base.logger)
	if err != nil {
		return nil, &ErrConnection{Driver: conn.Driver, Cause: err}
	}

	s, err := Wrap(sess, l, ex, opts...)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	s.logger.Info("connected", "driver", conn.Driver, "target", conn.DisplayString())
	return s, nil
}

func open(ctx context.Context, conn config.Connection, logger *slog.Logger) (driver.Session, error) {
	switch conn.Driver {
	case config.DriverPostgres, "":
		return postgres.Connect(ctx, conn.DSN(), postgres.WithLogger(logger))
	case config.DriverCassandra:
		return cassandra.Connect(ctx, cassandra.Config{
			Hosts:       conn.Hosts,
			Port:        conn.Port,
			Keyspace:    conn.Database,
			Username:    conn.Username,
			Password:    conn.Password,
			Consistency: conn.Consistency,
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("unsupported driver %q", conn.Driver)
	}
}
