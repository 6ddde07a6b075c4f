package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Error wraps a failed store operation so callers can tell storage failures
// apart from validation and query problems.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OpenError means the database file could not be opened or prepared.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("store: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// IsConstraint reports whether err is a SQLite constraint violation, such as
// a duplicate identity tuple or a rent row without its area.
func IsConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}
