package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/conncache"
	"github.com/goliatone/go-statement-cache/internal/logging"
	"github.com/goliatone/go-statement-cache/pgxadapter"
	"github.com/goliatone/go-statement-cache/sqladapter"
)

// ErrUnknownConn is returned by CloseConn for ids the container does not track.
var ErrUnknownConn = errors.New("di: unknown connection id")

type managed interface {
	Stats() cache.Stats
	Close(ctx context.Context) error
}

// Container wires the shared statement catalog, logger and tracer provider into every
// cached connection it opens, and tracks those connections until they are closed.
type Container struct {
	config   Config
	logger   *slog.Logger
	provider trace.TracerProvider
	source   cache.DefinitionSource
	catalog  cache.Catalog
	conns    *xsync.MapOf[string, managed]
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger handed to every cache and connection.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithTracerProvider sets the provider used for execution spans.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *Container) { c.provider = provider }
}

// WithDefinitionSource replaces the definitions listed in the configuration.
func WithDefinitionSource(source cache.DefinitionSource) Option {
	return func(c *Container) { c.source = source }
}

// NewContainer validates config and builds the shared catalog.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config: config,
		source: config.Definitions,
		conns:  xsync.NewMapOf[string, managed](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.New(logging.Options{})
	}

	catalog, err := cache.NewCatalog(config.Catalog, c.source)
	if err != nil {
		return nil, err
	}
	c.catalog = catalog

	return c, nil
}

// NewContainerWithDefaults creates a container with DefaultConfig and no definitions.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config { return c.config }

// Catalog returns the catalog shared by every connection.
func (c *Container) Catalog() cache.Catalog { return c.catalog }

// Logger returns the container logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

func (c *Container) cacheConfig() cache.Config {
	cfg := c.config.Statements
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return cfg
}

func (c *Container) connOptions() []conncache.Option {
	opts := []conncache.Option{
		conncache.WithLogger(c.logger),
		conncache.WithCatalog(c.catalog),
	}
	if c.provider != nil {
		opts = append(opts, conncache.WithTracerProvider(c.provider))
	}
	return opts
}

func (c *Container) track(conn managed, driver string) string {
	id := uuid.NewString()
	c.conns.Store(id, conn)
	c.logger.Debug("cached connection opened", "id", id, "driver", driver)
	return id
}

// OpenSQL reserves a connection from db and returns its id and the cached connection.
func (c *Container) OpenSQL(ctx context.Context, db *sql.DB) (string, *sqladapter.Conn, error) {
	conn, err := sqladapter.Open(ctx, db, c.cacheConfig(), c.connOptions()...)
	if err != nil {
		return "", nil, err
	}
	return c.track(conn, "database/sql"), conn, nil
}

// OpenBun reserves a connection from a bun database.
func (c *Container) OpenBun(ctx context.Context, db *bun.DB) (string, *sqladapter.Conn, error) {
	conn, err := sqladapter.OpenBun(ctx, db, c.cacheConfig(), c.connOptions()...)
	if err != nil {
		return "", nil, err
	}
	return c.track(conn, "bun"), conn, nil
}

// OpenPgx dials connString with pgx.
func (c *Container) OpenPgx(ctx context.Context, connString string) (string, *pgxadapter.Conn, error) {
	conn, err := pgxadapter.Connect(ctx, connString, c.cacheConfig(), c.connOptions()...)
	if err != nil {
		return "", nil, err
	}
	return c.track(conn, "pgx"), conn, nil
}

// AttachPgx caches statements on an already established pgx connection.
func (c *Container) AttachPgx(exec pgxadapter.Executor) (string, *pgxadapter.Conn, error) {
	conn, err := pgxadapter.Open(exec, c.cacheConfig(), c.connOptions()...)
	if err != nil {
		return "", nil, err
	}
	return c.track(conn, "pgx"), conn, nil
}

// CloseConn closes and forgets the connection registered under id.
func (c *Container) CloseConn(ctx context.Context, id string) error {
	conn, ok := c.conns.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConn, id)
	}
	c.logger.Debug("cached connection closed", "id", id)
	return conn.Close(ctx)
}

// Stats returns the cache counters of every open connection by id.
func (c *Container) Stats() map[string]cache.Stats {
	out := make(map[string]cache.Stats, c.conns.Size())
	c.conns.Range(func(id string, conn managed) bool {
		out[id] = conn.Stats()
		return true
	})
	return out
}

// Close closes every tracked connection and combines their errors.
func (c *Container) Close(ctx context.Context) error {
	var errs error
	c.conns.Range(func(id string, _ managed) bool {
		errs = multierr.Append(errs, c.CloseConn(ctx, id))
		return true
	})
	return errs
}
