// Package conncache decorates a statement cache the way a connection wrapper uses it.
//
// Do and DoNamed check a statement out, run the caller's function inside an
// OpenTelemetry span carrying the cached SQL text, and give the statement back. When the
// function fails and the RetirePolicy agrees, the key is removed before the handle is
// released, so the failed statement is destroyed instead of returning to the pool:
//
//	conn := conncache.New(c, conncache.WithCatalog(catalog), conncache.WithLogger(logger))
//	err := conn.DoNamed(ctx, "user.by_id", func(ctx context.Context, stmt *sql.Stmt) error {
//		return stmt.QueryRowContext(ctx, id).Scan(&name)
//	})
package conncache
