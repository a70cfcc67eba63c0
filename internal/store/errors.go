package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrConstraint matches any [ConstraintError] via errors.Is.
var ErrConstraint = errors.New("constraint violation")

// ConstraintError reports a foreign-key or uniqueness violation on write.
// The write is rolled back; nothing is dropped silently.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: constraint violation: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrConstraint and the driver error.
func (e *ConstraintError) Unwrap() []error {
	return []error{ErrConstraint, e.Err}
}

// classify turns driver constraint failures into *ConstraintError and wraps
// everything else with op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return &ConstraintError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
