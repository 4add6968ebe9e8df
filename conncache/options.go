package conncache

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-statement-cache/cache"
)

// RetirePolicy decides whether an execution error makes a statement unsafe for reuse.
type RetirePolicy func(err error) bool

// DefaultRetirePolicy retires on every error except context cancellation and deadlines,
// which say nothing about the statement itself.
func DefaultRetirePolicy(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Option configures a Conn.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	provider trace.TracerProvider
	catalog  cache.Catalog
	retire   RetirePolicy
}

// WithLogger sets the logger used for retirement warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracerProvider sets where execution spans are reported. Defaults to the global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithCatalog enables PrepareNamed and DoNamed.
func WithCatalog(catalog cache.Catalog) Option {
	return func(o *options) { o.catalog = catalog }
}

// WithRetirePolicy decides which execution errors retire the statement.
func WithRetirePolicy(policy RetirePolicy) Option {
	return func(o *options) { o.retire = policy }
}
