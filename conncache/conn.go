package conncache

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/internal/logging"
)

const instrumentationName = "github.com/goliatone/go-statement-cache/conncache"

// SpanName is the name of the span wrapping every Do and DoNamed execution.
const SpanName = "stmtcache.execute"

// ErrNoCatalog is returned by the named operations when no catalog was configured.
var ErrNoCatalog = errors.New("conncache: no statement catalog configured")

// Conn decorates a statement cache with catalog lookups, tracing and retirement of
// statements whose execution failed.
type Conn[S any] struct {
	cache   *cache.Cache[S]
	catalog cache.Catalog
	logger  logging.Logger
	tracer  trace.Tracer
	retire  RetirePolicy
}

// New wraps c. The Conn owns c from now on and closes it in Close.
func New[S any](c *cache.Cache[S], opts ...Option) *Conn[S] {
	o := options{retire: DefaultRetirePolicy}
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = otel.GetTracerProvider()
	}
	if o.retire == nil {
		o.retire = DefaultRetirePolicy
	}

	return &Conn[S]{
		cache:   c,
		catalog: o.catalog,
		logger:  logging.FromSlog(o.logger).With("component", "conncache"),
		tracer:  o.provider.Tracer(instrumentationName),
		retire:  o.retire,
	}
}

// Cache returns the decorated cache.
func (c *Conn[S]) Cache() *cache.Cache[S] { return c.cache }

// Prepare checks out key from the cache, compiling sql on a miss.
func (c *Conn[S]) Prepare(ctx context.Context, kind cache.Kind, key any, sql string, opts cache.Options) (*cache.Handle[S], error) {
	return c.cache.Prepare(ctx, kind, key, sql, opts)
}

// PrepareStatement is Prepare for a plain prepared statement.
func (c *Conn[S]) PrepareStatement(ctx context.Context, key any, sql string, opts cache.Options) (*cache.Handle[S], error) {
	return c.cache.PrepareStatement(ctx, key, sql, opts)
}

// PrepareCall is Prepare for a callable statement.
func (c *Conn[S]) PrepareCall(ctx context.Context, key any, sql string, opts cache.Options) (*cache.Handle[S], error) {
	return c.cache.PrepareCall(ctx, key, sql, opts)
}

// PrepareNamed resolves key through the catalog and prepares the definition under it.
func (c *Conn[S]) PrepareNamed(ctx context.Context, key string) (*cache.Handle[S], error) {
	def, err := c.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.cache.Prepare(ctx, def.StatementKind(), def.Key, def.SQL, def.Options)
}

// Lookup checks out a cached statement without compiling.
func (c *Conn[S]) Lookup(kind cache.Kind, key any) (*cache.Handle[S], bool, error) {
	return c.cache.Lookup(kind, key)
}

// LookupStatement is Lookup for a plain prepared statement.
func (c *Conn[S]) LookupStatement(key any) (*cache.Handle[S], bool, error) {
	return c.cache.LookupStatement(key)
}

// LookupCall is Lookup for a callable statement.
func (c *Conn[S]) LookupCall(key any) (*cache.Handle[S], bool, error) {
	return c.cache.LookupCall(key)
}

// CachedSQL returns the SQL text h was compiled from.
func (c *Conn[S]) CachedSQL(h *cache.Handle[S]) (string, error) {
	return c.cache.CachedSQL(h)
}

// Remove retires key; a checked out statement is destroyed on release.
func (c *Conn[S]) Remove(ctx context.Context, key any) error {
	return c.cache.Remove(ctx, key)
}

// Stats returns the cache counters.
func (c *Conn[S]) Stats() cache.Stats { return c.cache.Stats() }

// Close closes the cache, destroying idle statements.
func (c *Conn[S]) Close(ctx context.Context) error {
	return c.cache.Close(ctx)
}

// Do prepares key, runs fn with the checked out statement and releases it. When fn fails
// and the retire policy agrees, the key is removed before the release so the statement
// is destroyed instead of pooled. Errors from fn, Remove and Release are combined.
func (c *Conn[S]) Do(ctx context.Context, kind cache.Kind, key any, sql string, opts cache.Options, fn func(ctx context.Context, stmt S) error) error {
	h, err := c.cache.Prepare(ctx, kind, key, sql, opts)
	if err != nil {
		return err
	}
	return c.run(ctx, h, fn)
}

// DoNamed is Do for a catalog definition.
func (c *Conn[S]) DoNamed(ctx context.Context, key string, fn func(ctx context.Context, stmt S) error) error {
	h, err := c.PrepareNamed(ctx, key)
	if err != nil {
		return err
	}
	return c.run(ctx, h, fn)
}

func (c *Conn[S]) run(ctx context.Context, h *cache.Handle[S], fn func(context.Context, S) error) (err error) {
	query, sqlErr := c.cache.CachedSQL(h)
	if sqlErr != nil {
		query = h.SQL()
	}

	ctx, span := c.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.statement", query),
			attribute.String("stmtcache.key", fmt.Sprint(h.Key())),
			attribute.String("stmtcache.kind", h.Kind().String()),
		),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// cleanup must run even when the caller's context is already done
	cleanupCtx := context.WithoutCancel(ctx)

	if runErr := fn(ctx, h.Statement()); runErr != nil {
		span.RecordError(runErr)
		err = runErr
		if c.retire(runErr) {
			span.SetAttributes(attribute.Bool("stmtcache.retired", true))
			c.logger.Warn("retiring statement after execution error",
				"key", h.Key(), "kind", h.Kind(), "sql", query, "error", runErr)
			err = multierr.Append(err, c.cache.Remove(cleanupCtx, h.Key()))
		}
	}

	return multierr.Append(err, h.Release(cleanupCtx))
}

func (c *Conn[S]) resolve(ctx context.Context, key string) (cache.Definition, error) {
	if c.catalog == nil {
		return cache.Definition{}, ErrNoCatalog
	}
	return c.catalog.Resolve(ctx, key)
}
