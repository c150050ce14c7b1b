package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

type errorKind int

const (
	kindInternal errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// Error classifies SQLite failures for the service layer.
type Error struct {
	op   string
	kind errorKind
	err  error
}

var _ repositories.RepositoryError = (*Error)(nil)

func (e *Error) Error() string {
	if e.err == nil {
		return "sqlite: " + e.op
	}
	return fmt.Sprintf("sqlite: %s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e.kind == kindUnavailable }

func notFound(op string) error {
	return &Error{op: op, kind: kindNotFound, err: sql.ErrNoRows}
}

// wrapError classifies err; context errors pass through untouched.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	wrapped := &Error{op: op, kind: kindInternal, err: err}
	if errors.Is(err, sql.ErrNoRows) {
		wrapped.kind = kindNotFound
		return wrapped
	}
	if errors.Is(err, sql.ErrConnDone) {
		wrapped.kind = kindUnavailable
		return wrapped
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		code := sqlErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			wrapped.kind = kindConflict
		case isTransient(code & 0xff):
			wrapped.kind = kindUnavailable
		}
	}
	return wrapped
}

// isTransient reports primary result codes worth retrying.
func isTransient(code int) bool {
	switch code {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL:
		return true
	}
	return false
}
