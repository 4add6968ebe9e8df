package pgxadapter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/internal/sqlescape"
)

// Preparer creates and drops named server side statements. *pgx.Conn implements it.
type Preparer interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Deallocate(ctx context.Context, name string) error
}

// StatementName derives the server side name of the seq-th compile of sql. The sequence
// keeps a recompiled key from colliding with a dead statement that is still held.
func StatementName(sql string, seq uint64) string {
	return fmt.Sprintf("stmtcache_%016x_%d", xxhash.Sum64String(sql), seq)
}

// Compiler prepares named statements on a pgx connection.
type Compiler struct {
	preparer Preparer
	seq      atomic.Uint64
}

// NewCompiler prepares named statements through p.
func NewCompiler(p Preparer) *Compiler {
	return &Compiler{preparer: p}
}

// CompilePrepared prepares sql under a fresh statement name.
func (c *Compiler) CompilePrepared(ctx context.Context, sql string, opts cache.Options) (*pgconn.StatementDescription, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	return c.preparer.Prepare(ctx, StatementName(sql, c.seq.Add(1)), sql)
}

// CompileCallable translates the call escape syntax, `{call p($1)}` becomes `CALL p($1)`.
// The statement name is derived from the original text.
func (c *Compiler) CompileCallable(ctx context.Context, sql string, opts cache.Options) (*pgconn.StatementDescription, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	return c.preparer.Prepare(ctx, StatementName(sql, c.seq.Add(1)), sqlescape.TranslateCall(sql))
}

// Destroy deallocates the server side statement.
func (c *Compiler) Destroy(ctx context.Context, sd *pgconn.StatementDescription) error {
	if sd == nil {
		return nil
	}
	return errors.Wrapf(c.preparer.Deallocate(ctx, sd.Name), "pgxadapter: deallocate %s", sd.Name)
}

// pgx cursors are forward-only and read-only, and RETURNING replaces generated keys.
func checkOptions(opts cache.Options) error {
	if !opts.IsDefault() {
		return errors.Wrapf(cache.ErrUnsupportedOptions, "pgx: result set type %s, concurrency %s, generated keys %s",
			opts.ResultSetType, opts.Concurrency, opts.GeneratedKeys)
	}
	return nil
}

var _ cache.Compiler[*pgconn.StatementDescription] = (*Compiler)(nil)
