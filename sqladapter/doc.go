// Package sqladapter caches *sql.Stmt values on a single database/sql connection.
//
// Open reserves one connection from a *sql.DB and OpenBun does the same for a bun.DB.
// Callable statements written in the call escape syntax are translated before they are
// prepared:
//
//	{call touch_user(?)}   ->  CALL touch_user(?)
//	{? = call abs(?)}      ->  SELECT abs(?)
package sqladapter
