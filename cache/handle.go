package cache

import "context"

// Handle is one checkout of a cached statement. Its only lifecycle operation is giving
// the statement back; the cache decides whether that pools or destroys it.
type Handle[S any] struct {
	cache    *Cache[S]
	entry    *entry[S]
	released bool
}

// Statement returns the compiled statement. It must not be used after Release.
func (h *Handle[S]) Statement() S { return h.entry.stmt }

// Key returns the caller key the statement was prepared under.
func (h *Handle[S]) Key() any { return h.entry.key }

// Kind reports whether the statement is prepared or callable.
func (h *Handle[S]) Kind() Kind { return h.entry.kind }

// SQL returns the text the statement was prepared with.
func (h *Handle[S]) SQL() string { return h.entry.sql }

// Options returns the options the statement was compiled with.
func (h *Handle[S]) Options() Options { return h.entry.opts }

// Release returns the statement to the cache. A statement removed while checked out is
// destroyed instead and the destroy error is returned. Releasing twice is a no-op.
func (h *Handle[S]) Release(ctx context.Context) error {
	if h == nil || h.cache == nil {
		return ErrInvalidHandle
	}
	return h.cache.release(ctx, h)
}

// Close implements io.Closer by releasing with a background context.
func (h *Handle[S]) Close() error {
	return h.Release(context.Background())
}
