package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for keys the KeySerializer cannot normalize.
	ErrInvalidKey = errors.New("cache: invalid statement key")

	// ErrInvalidOptions is matched by every *OptionsError.
	ErrInvalidOptions = errors.New("cache: invalid statement options")

	// ErrKeyKindCollision is matched by every *KeyKindCollisionError.
	ErrKeyKindCollision = errors.New("cache: key already bound to another statement kind")

	// ErrStatementInUse is matched by every *StatementInUseError.
	ErrStatementInUse = errors.New("cache: statement is checked out")

	// ErrSQLMismatch is matched by every *SQLMismatchError.
	ErrSQLMismatch = errors.New("cache: key already bound to different SQL")

	// ErrInvalidHandle is returned when a handle was not obtained from the cache it is passed to.
	ErrInvalidHandle = errors.New("cache: handle not tracked by this cache")

	// ErrCacheClosed is returned by Prepare and Lookup after Close.
	ErrCacheClosed = errors.New("cache: closed")

	// ErrUnsupportedOptions is returned by compilers that cannot honour a valid Options value.
	ErrUnsupportedOptions = errors.New("cache: options not supported by driver")

	// ErrDefinitionNotFound is returned by a Catalog for unknown statement keys.
	ErrDefinitionNotFound = errors.New("cache: statement definition not found")
)

// KeyKindCollisionError reports a key that is already bound to the other statement kind.
type KeyKindCollisionError struct {
	Key       any
	Existing  Kind
	Requested Kind
}

func (e *KeyKindCollisionError) Error() string {
	return fmt.Sprintf("cache: key %v is bound to a %s statement, cannot prepare it as %s",
		e.Key, e.Existing, e.Requested)
}

func (e *KeyKindCollisionError) Unwrap() error { return ErrKeyKindCollision }

// StatementInUseError reports a key whose statement is checked out by another caller.
type StatementInUseError struct {
	Key  any
	Kind Kind
}

func (e *StatementInUseError) Error() string {
	return fmt.Sprintf("cache: %s statement %v is checked out", e.Kind, e.Key)
}

func (e *StatementInUseError) Unwrap() error { return ErrStatementInUse }

// SQLMismatchError is returned in strict mode when a key is prepared again with
// different SQL text or options.
type SQLMismatchError struct {
	Key       any
	CachedSQL string
	SQL       string
}

func (e *SQLMismatchError) Error() string {
	return fmt.Sprintf("cache: key %v is bound to %q, refusing %q", e.Key, e.CachedSQL, e.SQL)
}

func (e *SQLMismatchError) Unwrap() error { return ErrSQLMismatch }

// OptionsError reports an invalid Options field.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "cache: invalid options field " + e.Field + ": " + e.Message
}

func (e *OptionsError) Is(target error) bool { return target == ErrInvalidOptions }
