package cacheinfra

import (
	"context"
	"errors"

	"github.com/viccon/sturdyc"
)

// ErrNotFound is returned by a fetch function, and by the store, when the source has no
// value for a key. It is sturdyc.ErrNotFound, which is what triggers missing-record storage.
var ErrNotFound = sturdyc.ErrNotFound

// Store is a read-through cache over sturdyc for values of type V.
type Store[V any] struct {
	client *sturdyc.Client[V]
}

// NewStore validates cfg and builds the underlying sturdyc client.
func NewStore[V any](cfg Config) (*Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[V](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &Store[V]{client: client}, nil
}

// GetOrFetch returns the cached value for key or calls fetch and caches its result.
// Both a fresh and a remembered "not found" are reported as ErrNotFound.
func (s *Store[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	value, err := s.client.GetOrFetch(ctx, key, fetch)
	if err != nil {
		var zero V
		if errors.Is(err, sturdyc.ErrMissingRecord) || errors.Is(err, sturdyc.ErrNotFound) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return value, nil
}

// Get returns a cached value without fetching.
func (s *Store[V]) Get(key string) (V, bool) {
	return s.client.Get(key)
}

// Delete drops the given keys.
func (s *Store[V]) Delete(keys ...string) {
	for _, key := range keys {
		s.client.Delete(key)
	}
}
