package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-statement-cache/cache"
)

// FakeStatement is the statement type compiled by FakeCompiler.
type FakeStatement struct {
	ID      int
	Kind    cache.Kind
	SQL     string
	Options cache.Options
}

// FakeCompiler is a cache.Compiler that records every call.
type FakeCompiler struct {
	mu sync.Mutex

	// CompileErrors maps SQL text to the error its compilation fails with.
	CompileErrors map[string]error
	// DestroyError is returned by every Destroy call.
	DestroyError error

	nextID    int
	compiled  []*FakeStatement
	destroyed []*FakeStatement
}

// NewFakeCompiler returns a compiler without configured failures.
func NewFakeCompiler() *FakeCompiler {
	return &FakeCompiler{CompileErrors: map[string]error{}}
}

func (f *FakeCompiler) CompilePrepared(ctx context.Context, sql string, opts cache.Options) (*FakeStatement, error) {
	return f.compile(ctx, cache.KindPrepared, sql, opts)
}

func (f *FakeCompiler) CompileCallable(ctx context.Context, sql string, opts cache.Options) (*FakeStatement, error) {
	return f.compile(ctx, cache.KindCallable, sql, opts)
}

func (f *FakeCompiler) compile(ctx context.Context, kind cache.Kind, sql string, opts cache.Options) (*FakeStatement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.CompileErrors[sql]; err != nil {
		return nil, err
	}
	f.nextID++
	stmt := &FakeStatement{ID: f.nextID, Kind: kind, SQL: sql, Options: opts}
	f.compiled = append(f.compiled, stmt)
	return stmt, nil
}

func (f *FakeCompiler) Destroy(_ context.Context, stmt *FakeStatement) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.destroyed = append(f.destroyed, stmt)
	return f.DestroyError
}

// Compiled returns the statements compiled so far, oldest first.
func (f *FakeCompiler) Compiled() []*FakeStatement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeStatement(nil), f.compiled...)
}

// Destroyed returns the statements destroyed so far, oldest first.
func (f *FakeCompiler) Destroyed() []*FakeStatement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeStatement(nil), f.destroyed...)
}

// IsDestroyed reports whether stmt has been destroyed.
func (f *FakeCompiler) IsDestroyed(stmt *FakeStatement) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.destroyed {
		if d == stmt {
			return true
		}
	}
	return false
}

var _ cache.Compiler[*FakeStatement] = (*FakeCompiler)(nil)
