package sqladapter

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
	"go.uber.org/multierr"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/conncache"
)

// RetirePolicy is conncache.DefaultRetirePolicy that also keeps statements whose query
// simply returned no rows.
func RetirePolicy(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	return conncache.DefaultRetirePolicy(err)
}

// Conn is a database/sql connection with a statement cache.
type Conn struct {
	*conncache.Conn[*sql.Stmt]

	closer io.Closer
	mu     sync.Mutex
	closed bool
}

// New builds a Conn preparing statements on preparer. closer, when not nil, is closed
// after the cache in Close.
func New(preparer Preparer, closer io.Closer, cfg cache.Config, opts ...conncache.Option) (*Conn, error) {
	if preparer == nil {
		return nil, errors.New("sqladapter: preparer is required")
	}
	c, err := cache.New[*sql.Stmt](NewCompiler(preparer), cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]conncache.Option{conncache.WithRetirePolicy(RetirePolicy)}, opts...)
	return &Conn{Conn: conncache.New(c, opts...), closer: closer}, nil
}

// Open reserves a single connection from db and caches statements on it.
func Open(ctx context.Context, db *sql.DB, cfg cache.Config, opts ...conncache.Option) (*Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "sqladapter: reserve connection")
	}
	c, err := New(conn, conn, cfg, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// OpenBun reserves a single connection from a bun database.
func OpenBun(ctx context.Context, db *bun.DB, cfg cache.Config, opts ...conncache.Option) (*Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "sqladapter: reserve bun connection")
	}
	c, err := New(conn, conn, cfg, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Exec runs a prepared statement cached under key.
func (c *Conn) Exec(ctx context.Context, key any, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := c.Do(ctx, cache.KindPrepared, key, query, cache.Options{}, func(ctx context.Context, stmt *sql.Stmt) error {
		var err error
		res, err = stmt.ExecContext(ctx, args...)
		return err
	})
	return res, err
}

// Query runs a prepared statement cached under key and calls scan for every row. The
// rows are closed before the statement goes back to the cache.
func (c *Conn) Query(ctx context.Context, key any, query string, scan func(*sql.Rows) error, args ...any) error {
	return c.Do(ctx, cache.KindPrepared, key, query, cache.Options{}, queryFunc(scan, args))
}

// QueryRow runs a prepared statement cached under key and scans the first row into dest.
func (c *Conn) QueryRow(ctx context.Context, key any, query string, args []any, dest ...any) error {
	return c.Do(ctx, cache.KindPrepared, key, query, cache.Options{}, func(ctx context.Context, stmt *sql.Stmt) error {
		return stmt.QueryRowContext(ctx, args...).Scan(dest...)
	})
}

// Call executes a callable statement such as `{call proc(?)}`.
func (c *Conn) Call(ctx context.Context, key any, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := c.Do(ctx, cache.KindCallable, key, query, cache.Options{}, func(ctx context.Context, stmt *sql.Stmt) error {
		var err error
		res, err = stmt.ExecContext(ctx, args...)
		return err
	})
	return res, err
}

// CallRow executes a callable function such as `{? = call fn(?)}` and scans its result.
func (c *Conn) CallRow(ctx context.Context, key any, query string, args []any, dest ...any) error {
	return c.Do(ctx, cache.KindCallable, key, query, cache.Options{}, func(ctx context.Context, stmt *sql.Stmt) error {
		return stmt.QueryRowContext(ctx, args...).Scan(dest...)
	})
}

// ExecNamed executes the catalog definition key. Callable definitions are supported.
func (c *Conn) ExecNamed(ctx context.Context, key string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := c.DoNamed(ctx, key, func(ctx context.Context, stmt *sql.Stmt) error {
		var err error
		res, err = stmt.ExecContext(ctx, args...)
		return err
	})
	return res, err
}

// QueryNamed queries the catalog definition key and calls scan for every row.
func (c *Conn) QueryNamed(ctx context.Context, key string, scan func(*sql.Rows) error, args ...any) error {
	return c.DoNamed(ctx, key, queryFunc(scan, args))
}

func queryFunc(scan func(*sql.Rows) error, args []any) func(context.Context, *sql.Stmt) error {
	return func(ctx context.Context, stmt *sql.Stmt) (err error) {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, rows.Close())
		}()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	}
}

// Close destroys the cached statements and then closes the underlying connection.
// Calling Close more than once is a no-op.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.Conn.Close(ctx)
	if c.closer != nil {
		err = multierr.Append(err, pkgerrors.Wrap(c.closer.Close(), "sqladapter: close connection"))
	}
	return err
}
