package pgxadapter

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeFeatureNotSupported     = "0A000"
	codeInvalidSQLStatementName = "26000"
)

// IsStatementInvalid reports whether err means a prepared statement can no longer be
// executed: a cached plan whose result type changed (reported as 0A000) or a statement
// the server no longer knows (26000).
func IsStatementInvalid(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeFeatureNotSupported || pgErr.Code == codeInvalidSQLStatementName
}
