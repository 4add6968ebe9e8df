// Package cache implements a keyed cache of compiled statements bound to one database
// connection.
//
// # Overview
//
// A Cache lets callers reuse a compiled statement by an application key instead of its
// SQL text. Compilation and teardown are delegated to a Compiler, usually an adapter
// around the connection (see the sqladapter and pgxadapter packages):
//
//	c, err := cache.New[*sql.Stmt](compiler, cache.DefaultConfig())
//	h, err := c.PrepareStatement(ctx, "user.by_id", "SELECT name FROM users WHERE id = ?", cache.Options{})
//	defer h.Release(ctx)
//	row := h.Statement().QueryRowContext(ctx, 42)
//
// # Entry lifecycle
//
// Every entry is in one of four states:
//
//	compile ─► available ⇄ checked-out
//	available ──Remove/evict/Close──► destroyed
//	checked-out ──Remove/Close──► dead ──Release──► destroyed
//
// Prepare and Lookup check an entry out and return a Handle. Releasing the handle makes
// the entry available again, unless it was removed in the meantime, in which case the
// statement is destroyed. A dead entry is never handed out again and a later Prepare
// with the same key compiles a new statement. Callers cannot destroy statements directly.
//
// # Statement kinds
//
// Prepared and callable statements are kept in separate maps. Preparing a key that is
// bound to the other kind fails with *KeyKindCollisionError, and Lookup with the wrong
// kind reports the key as not found.
//
// # Keys
//
// Keys are normalized by a KeySerializer. The default serializer qualifies every value
// with its dynamic type, so "1" and 1 are different keys, compares pointers by identity
// and accepts slices, maps and structs. Encoded values are self-delimiting, so distinct
// keys never share an id. Nil, function and NaN keys are rejected.
//
// # Catalog
//
// A Catalog resolves named Definitions from a DefinitionSource and memoizes them with
// sturdyc so several connections can prepare the same statements by name.
package cache
