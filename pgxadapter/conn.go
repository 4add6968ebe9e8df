package pgxadapter

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/conncache"
)

// Executor is the pgx connection surface used by Conn. *pgx.Conn implements it.
type Executor interface {
	Preparer
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

type statement = *pgconn.StatementDescription

// Conn is a pgx connection with a statement cache. Cached statements are executed by
// their server side name.
type Conn struct {
	*conncache.Conn[statement]

	exec   Executor
	mu     sync.Mutex
	closed bool
}

// Open wraps exec. Statements are retired when IsStatementInvalid reports the failure.
func Open(exec Executor, cfg cache.Config, opts ...conncache.Option) (*Conn, error) {
	if exec == nil {
		return nil, errors.New("pgxadapter: executor is required")
	}
	c, err := cache.New[statement](NewCompiler(exec), cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]conncache.Option{conncache.WithRetirePolicy(IsStatementInvalid)}, opts...)
	return &Conn{Conn: conncache.New(c, opts...), exec: exec}, nil
}

// Connect dials connString with pgx and opens a cached connection on it.
func Connect(ctx context.Context, connString string, cfg cache.Config, opts ...conncache.Option) (*Conn, error) {
	pgConn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "pgxadapter: connect")
	}
	c, err := Open(pgConn, cfg, opts...)
	if err != nil {
		_ = pgConn.Close(ctx)
		return nil, err
	}
	return c, nil
}

// Exec executes the statement cached under key, preparing sql on a miss.
func (c *Conn) Exec(ctx context.Context, key any, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.execKind(ctx, cache.KindPrepared, key, sql, args)
}

// Call executes a callable statement such as `{call proc($1)}`.
func (c *Conn) Call(ctx context.Context, key any, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.execKind(ctx, cache.KindCallable, key, sql, args)
}

func (c *Conn) execKind(ctx context.Context, kind cache.Kind, key any, sql string, args []any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := c.Do(ctx, kind, key, sql, cache.Options{}, func(ctx context.Context, sd statement) error {
		var err error
		tag, err = c.exec.Exec(ctx, sd.Name, args...)
		return err
	})
	return tag, err
}

// Query runs the statement cached under key and calls scan for every row.
func (c *Conn) Query(ctx context.Context, key any, sql string, scan func(pgx.Rows) error, args ...any) error {
	return c.Do(ctx, cache.KindPrepared, key, sql, cache.Options{}, c.queryFunc(scan, args))
}

// QueryRow runs the statement cached under key and scans the first row into dest.
func (c *Conn) QueryRow(ctx context.Context, key any, sql string, args []any, dest ...any) error {
	return c.Do(ctx, cache.KindPrepared, key, sql, cache.Options{}, func(ctx context.Context, sd statement) error {
		return c.exec.QueryRow(ctx, sd.Name, args...).Scan(dest...)
	})
}

// ExecNamed executes the catalog definition key.
func (c *Conn) ExecNamed(ctx context.Context, key string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := c.DoNamed(ctx, key, func(ctx context.Context, sd statement) error {
		var err error
		tag, err = c.exec.Exec(ctx, sd.Name, args...)
		return err
	})
	return tag, err
}

// QueryNamed queries the catalog definition key and calls scan for every row.
func (c *Conn) QueryNamed(ctx context.Context, key string, scan func(pgx.Rows) error, args ...any) error {
	return c.DoNamed(ctx, key, c.queryFunc(scan, args))
}

func (c *Conn) queryFunc(scan func(pgx.Rows) error, args []any) func(context.Context, statement) error {
	return func(ctx context.Context, sd statement) error {
		rows, err := c.exec.Query(ctx, sd.Name, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	}
}

// Close deallocates the cached statements and closes the connection. Calling Close more
// than once is a no-op.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.Conn.Close(ctx)
	return multierr.Append(err, pkgerrors.Wrap(c.exec.Close(ctx), "pgxadapter: close connection"))
}
