// Package pgxadapter caches named server side statements on a pgx v5 connection.
//
// Every compile gets a fresh statement name derived from the SQL text and a sequence
// number, so a key recompiled after retirement never collides with a statement that a
// caller still holds. Destroying a statement deallocates it on the server. Execution
// errors that invalidate a prepared statement (see IsStatementInvalid) retire it.
package pgxadapter
