package cache

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-statement-cache/internal/cacheinfra"
)

// Definition is a named statement: the catalog key doubles as the cache key.
type Definition struct {
	Key     string  `yaml:"key" json:"key"`
	Kind    Kind    `yaml:"kind,omitempty" json:"kind,omitempty"`
	SQL     string  `yaml:"sql" json:"sql"`
	Options Options `yaml:"options,omitempty" json:"options,omitempty"`
}

// StatementKind returns Kind, treating the zero value as KindPrepared.
func (d Definition) StatementKind() Kind {
	if d.Kind == 0 {
		return KindPrepared
	}
	return d.Kind
}

// Validate checks the definition fields and its options.
func (d Definition) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Key, validation.Required.Error("is required")),
		validation.Field(&d.SQL, validation.Required.Error("is required")),
		validation.Field(&d.Kind, validation.By(func(any) error {
			if d.Kind != 0 && !d.Kind.Valid() {
				return errors.New("must be prepared or callable")
			}
			return nil
		})),
	)
	if err != nil {
		return cacheinfra.FirstConfigError("", err)
	}
	return d.Options.Validate(d.StatementKind())
}

// DefinitionSource looks up statement definitions. Unknown keys must be reported with
// ErrDefinitionNotFound.
type DefinitionSource interface {
	Definition(ctx context.Context, key string) (Definition, error)
}

// DefinitionSourceFunc adapts a function to DefinitionSource.
type DefinitionSourceFunc func(ctx context.Context, key string) (Definition, error)

// Definition calls f.
func (f DefinitionSourceFunc) Definition(ctx context.Context, key string) (Definition, error) {
	return f(ctx, key)
}

// Definitions is an in-memory DefinitionSource.
type Definitions []Definition

// Definition returns the entry with key or ErrDefinitionNotFound.
func (d Definitions) Definition(_ context.Context, key string) (Definition, error) {
	for _, def := range d {
		if def.Key == key {
			return def, nil
		}
	}
	return Definition{}, ErrDefinitionNotFound
}

// Validate checks every definition and rejects duplicate keys.
func (d Definitions) Validate() error {
	seen := make(map[string]struct{}, len(d))
	for i, def := range d {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("definition %d (%q): %w", i, def.Key, err)
		}
		if _, dup := seen[def.Key]; dup {
			return fmt.Errorf("definition %d: duplicate key %q", i, def.Key)
		}
		seen[def.Key] = struct{}{}
	}
	return nil
}

// Catalog resolves statement definitions by key, shared across connections.
type Catalog interface {
	Resolve(ctx context.Context, key string) (Definition, error)
	Invalidate(ctx context.Context, keys ...string)
}

type catalog struct {
	source DefinitionSource
	store  *cacheinfra.Store[Definition]
}

// NewCatalog memoizes source lookups in a sturdyc store configured by cfg.
func NewCatalog(cfg CatalogConfig, source DefinitionSource) (Catalog, error) {
	if source == nil {
		return nil, errors.New("cache: definition source is required")
	}
	store, err := cacheinfra.NewStore[Definition](cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return &catalog{source: source, store: store}, nil
}

func (c *catalog) Resolve(ctx context.Context, key string) (Definition, error) {
	def, err := c.store.GetOrFetch(ctx, key, func(ctx context.Context) (Definition, error) {
		def, err := c.source.Definition(ctx, key)
		if errors.Is(err, ErrDefinitionNotFound) {
			return Definition{}, cacheinfra.ErrNotFound
		}
		if err != nil {
			return Definition{}, err
		}
		if def.Key == "" {
			def.Key = key
		}
		def.Kind = def.StatementKind()
		if err := def.Validate(); err != nil {
			return Definition{}, err
		}
		return def, nil
	})
	if errors.Is(err, cacheinfra.ErrNotFound) {
		return Definition{}, fmt.Errorf("%w: %q", ErrDefinitionNotFound, key)
	}
	return def, err
}

func (c *catalog) Invalidate(_ context.Context, keys ...string) {
	c.store.Delete(keys...)
}
