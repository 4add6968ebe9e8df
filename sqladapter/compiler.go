package sqladapter

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/internal/sqlescape"
)

// Preparer is the statement preparation surface shared by *sql.DB, *sql.Conn, *sql.Tx
// and bun.Conn.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Compiler compiles *sql.Stmt values for a statement cache.
type Compiler struct {
	preparer Preparer
}

// NewCompiler returns a Compiler preparing statements on p.
func NewCompiler(p Preparer) *Compiler {
	return &Compiler{preparer: p}
}

// CompilePrepared prepares query as is. database/sql has no cursor options, so only the
// forward-only, read-only default is accepted. Generated keys are always available
// through sql.Result.LastInsertId.
func (c *Compiler) CompilePrepared(ctx context.Context, query string, opts cache.Options) (*sql.Stmt, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	return c.preparer.PrepareContext(ctx, query)
}

// CompileCallable prepares query after translating the call escape syntax.
func (c *Compiler) CompileCallable(ctx context.Context, query string, opts cache.Options) (*sql.Stmt, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	return c.preparer.PrepareContext(ctx, sqlescape.TranslateCall(query))
}

// Destroy closes stmt.
func (c *Compiler) Destroy(_ context.Context, stmt *sql.Stmt) error {
	if stmt == nil {
		return nil
	}
	return errors.Wrap(stmt.Close(), "sqladapter: close statement")
}

func checkOptions(opts cache.Options) error {
	if opts.ResultSetType != cache.ForwardOnly || opts.Concurrency != cache.ReadOnly {
		return errors.Wrapf(cache.ErrUnsupportedOptions, "database/sql: result set type %s, concurrency %s",
			opts.ResultSetType, opts.Concurrency)
	}
	return nil
}

var _ cache.Compiler[*sql.Stmt] = (*Compiler)(nil)
