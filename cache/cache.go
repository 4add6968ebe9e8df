package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/goliatone/go-statement-cache/internal/logging"
)

// Compiler is the statement preparation capability of the owning connection.
// CompileCallable receives callable SQL exactly as it was passed to PrepareCall.
type Compiler[S any] interface {
	CompilePrepared(ctx context.Context, sql string, opts Options) (S, error)
	CompileCallable(ctx context.Context, sql string, opts Options) (S, error)
	Destroy(ctx context.Context, stmt S) error
}

type state uint8

const (
	stateAvailable state = iota
	stateCheckedOut
	stateDead
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateAvailable:
		return "available"
	case stateCheckedOut:
		return "checked-out"
	case stateDead:
		return "dead"
	case stateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type entry[S any] struct {
	key   any
	id    string
	kind  Kind
	sql   string
	opts  Options
	stmt  S
	state state
}

// Cache maps application keys to compiled statements of one connection. Prepared and
// callable statements live in separate maps; a key can be bound to only one of them.
//
// A single mutex guards the maps, every entry's state and the idle list. Compile and
// destroy calls are made while holding it.
type Cache[S any] struct {
	mu         sync.Mutex
	compiler   Compiler[S]
	serializer KeySerializer
	logger     logging.Logger
	strict     bool

	entries [2]map[string]*entry[S]
	idle    *simplelru.LRU[*entry[S], struct{}]
	evicted []*entry[S]
	closed  bool
	stats   Stats
}

// New creates a cache that compiles statements through compiler.
func New[S any](compiler Compiler[S], cfg Config) (*Cache[S], error) {
	if compiler == nil {
		return nil, errors.New("cache: compiler is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	serializer := cfg.KeySerializer
	if serializer == nil {
		serializer = NewDefaultKeySerializer()
	}

	c := &Cache[S]{
		compiler:   compiler,
		serializer: serializer,
		logger:     logging.FromSlog(cfg.Logger).With("component", "stmtcache"),
		strict:     cfg.StrictSQL,
		entries:    [2]map[string]*entry[S]{{}, {}},
	}

	if cfg.MaxIdle > 0 {
		idle, err := simplelru.NewLRU[*entry[S], struct{}](cfg.MaxIdle, c.onIdleEvict)
		if err != nil {
			return nil, err
		}
		c.idle = idle
	}

	return c, nil
}

// onIdleEvict runs for every entry leaving the idle list. Only entries still available
// were pushed out by capacity; the others left because they were checked out or removed.
func (c *Cache[S]) onIdleEvict(e *entry[S], _ struct{}) {
	if e.state == stateAvailable {
		c.evicted = append(c.evicted, e)
	}
}

// PrepareStatement is Prepare for KindPrepared.
func (c *Cache[S]) PrepareStatement(ctx context.Context, key any, sql string, opts Options) (*Handle[S], error) {
	return c.Prepare(ctx, KindPrepared, key, sql, opts)
}

// PrepareCall is Prepare for KindCallable.
func (c *Cache[S]) PrepareCall(ctx context.Context, key any, sql string, opts Options) (*Handle[S], error) {
	return c.Prepare(ctx, KindCallable, key, sql, opts)
}

// Prepare returns a checked out handle for key, compiling sql on a miss.
//
// A key bound to the other kind fails with *KeyKindCollisionError. A key whose statement
// is checked out fails with *StatementInUseError. A hit never recompiles; when sql or
// opts differ from the cached ones the cached statement is returned anyway, or
// *SQLMismatchError is returned if the cache is strict. Compile errors are returned as is.
func (c *Cache[S]) Prepare(ctx context.Context, kind Kind, key any, sql string, opts Options) (*Handle[S], error) {
	if !kind.Valid() {
		return nil, &OptionsError{Field: "Kind", Message: "unknown value " + kind.String()}
	}
	if err := opts.Validate(kind); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCacheClosed
	}

	id, err := c.serializer.SerializeKey(key)
	if err != nil {
		return nil, err
	}

	if other, ok := c.entries[kind.other().index()][id]; ok {
		return nil, &KeyKindCollisionError{Key: key, Existing: other.kind, Requested: kind}
	}

	if e, ok := c.entries[kind.index()][id]; ok {
		if e.state == stateCheckedOut {
			return nil, &StatementInUseError{Key: key, Kind: kind}
		}
		if e.sql != sql || e.opts != opts {
			if c.strict {
				return nil, &SQLMismatchError{Key: key, CachedSQL: e.sql, SQL: sql}
			}
			c.logger.Warn("prepare with different sql, returning cached statement",
				"key", id, "kind", kind, "cached_sql", e.sql, "sql", sql)
		}
		c.stats.Hits++
		return c.checkout(e), nil
	}

	c.stats.Misses++
	stmt, err := c.compile(ctx, kind, sql, opts)
	if err != nil {
		c.stats.CompileErrors++
		c.logger.Debug("statement compile failed", "key", id, "kind", kind, "error", err)
		return nil, err
	}
	c.stats.Compiles++

	e := &entry[S]{key: key, id: id, kind: kind, sql: sql, opts: opts, stmt: stmt}
	c.entries[kind.index()][id] = e
	c.logger.Debug("statement compiled", "key", id, "kind", kind)

	return c.checkout(e), nil
}

func (c *Cache[S]) compile(ctx context.Context, kind Kind, sql string, opts Options) (S, error) {
	if kind == KindCallable {
		return c.compiler.CompileCallable(ctx, sql, opts)
	}
	return c.compiler.CompilePrepared(ctx, sql, opts)
}

// LookupStatement is Lookup for KindPrepared.
func (c *Cache[S]) LookupStatement(key any) (*Handle[S], bool, error) {
	return c.Lookup(KindPrepared, key)
}

// LookupCall is Lookup for KindCallable.
func (c *Cache[S]) LookupCall(key any) (*Handle[S], bool, error) {
	return c.Lookup(KindCallable, key)
}

// Lookup checks out the statement cached under key without compiling anything.
// A missing key, or one bound to the other kind, reports (nil, false, nil).
func (c *Cache[S]) Lookup(kind Kind, key any) (*Handle[S], bool, error) {
	if !kind.Valid() {
		return nil, false, &OptionsError{Field: "Kind", Message: "unknown value " + kind.String()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrCacheClosed
	}

	id, err := c.serializer.SerializeKey(key)
	if err != nil {
		return nil, false, err
	}

	e, ok := c.entries[kind.index()][id]
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}
	if e.state == stateCheckedOut {
		return nil, false, &StatementInUseError{Key: key, Kind: kind}
	}

	c.stats.Hits++
	return c.checkout(e), true, nil
}

func (c *Cache[S]) checkout(e *entry[S]) *Handle[S] {
	e.state = stateCheckedOut
	if c.idle != nil {
		c.idle.Remove(e)
	}
	return &Handle[S]{cache: c, entry: e}
}

// CachedSQL returns the SQL text h was prepared with. It keeps working after the
// statement has been released, removed or destroyed.
func (c *Cache[S]) CachedSQL(h *Handle[S]) (string, error) {
	if h == nil || h.cache != c || h.entry == nil {
		return "", ErrInvalidHandle
	}
	return h.entry.sql, nil
}

// Remove unlinks key. An available statement is destroyed right away; a checked out one
// is marked dead and destroyed when its holder releases it. Removing an absent key is a
// no-op, and so is removing a key that could never have been cached (nil, NaN, funcs).
// The outcome is decided by the entry state observed under the cache lock.
func (c *Cache[S]) Remove(ctx context.Context, key any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.serializer.SerializeKey(key)
	if errors.Is(err, ErrInvalidKey) {
		return nil
	}
	if err != nil {
		return err
	}

	for i := range c.entries {
		e, ok := c.entries[i][id]
		if !ok {
			continue
		}
		delete(c.entries[i], id)
		c.stats.Retired++

		if e.state == stateCheckedOut {
			e.state = stateDead
			c.logger.Debug("checked out statement marked dead", "key", id, "kind", e.kind)
			return nil
		}
		return c.destroy(ctx, e)
	}
	return nil
}

// release is the single transition taken when a holder gives its handle back.
func (c *Cache[S]) release(ctx context.Context, h *Handle[S]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	c.stats.Releases++

	e := h.entry
	switch e.state {
	case stateCheckedOut:
		e.state = stateAvailable
		if c.idle == nil {
			return nil
		}
		c.idle.Add(e, struct{}{})
		return c.destroyEvicted(ctx)
	case stateDead:
		return c.destroy(ctx, e)
	default:
		return nil
	}
}

func (c *Cache[S]) destroyEvicted(ctx context.Context) error {
	evicted := c.evicted
	c.evicted = nil

	var errs error
	for _, e := range evicted {
		if c.entries[e.kind.index()][e.id] == e {
			delete(c.entries[e.kind.index()], e.id)
		}
		c.stats.Evicted++
		c.logger.Debug("idle statement evicted", "key", e.id, "kind", e.kind)
		errs = multierr.Append(errs, c.destroy(ctx, e))
	}
	return errs
}

func (c *Cache[S]) destroy(ctx context.Context, e *entry[S]) error {
	e.state = stateDestroyed
	if c.idle != nil {
		c.idle.Remove(e)
	}
	c.stats.Destroyed++

	if err := c.compiler.Destroy(ctx, e.stmt); err != nil {
		c.stats.DestroyErrors++
		c.logger.Error("statement destroy failed", "key", e.id, "kind", e.kind, "error", err)
		return pkgerrors.Wrapf(err, "cache: destroy %s statement %s", e.kind, e.id)
	}
	return nil
}

// Close destroys every available statement and marks checked out ones dead so their
// holders destroy them on release. Prepare and Lookup fail with ErrCacheClosed afterwards.
// Close is idempotent.
func (c *Cache[S]) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs error
	for i := range c.entries {
		for id, e := range c.entries[i] {
			delete(c.entries[i], id)
			if e.state == stateCheckedOut {
				e.state = stateDead
				continue
			}
			errs = multierr.Append(errs, c.destroy(ctx, e))
		}
	}
	if c.idle != nil {
		c.idle.Purge()
	}
	c.evicted = nil

	return errs
}

// Len reports the number of statements linked to a key.
func (c *Cache[S]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries[0]) + len(c.entries[1])
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[S]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries[0]) + len(c.entries[1])
	for i := range c.entries {
		for _, e := range c.entries[i] {
			if e.state == stateCheckedOut {
				s.CheckedOut++
			}
		}
	}
	if c.idle != nil {
		s.Idle = c.idle.Len()
	} else {
		s.Idle = s.Entries - s.CheckedOut
	}
	return s
}
