// Package tables implements the uniqueness-constrained table record store.
package tables

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound indicates no table exists with the given ID.
	ErrTableNotFound = errors.New("table not found")

	// ErrRecordNotFound indicates no record exists with the given ID.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnauthorized indicates the caller does not own the table. The
	// message is part of the handler contract surfaced to flow owners.
	ErrUnauthorized = errors.New("Unauthorized access to table")

	// ErrMissingRequired indicates a required field has no value.
	ErrMissingRequired = errors.New("missing required field")

	// ErrDuplicateValue indicates a prevent-duplicates field already holds
	// the value on another record.
	ErrDuplicateValue = errors.New("value must be unique")
)

// TableError wraps record-store errors with operation context.
type TableError struct {
	Op      string
	TableID string
	Err     error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s failed for table %s: %v", e.Op, e.TableID, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

func (e *TableError) Is(target error) bool { return errors.Is(e.Err, target) }

// IsDuplicate checks whether an error is a uniqueness conflict.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateValue)
}

// IsNotFound checks whether an error is a table or record miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound) || errors.Is(err, ErrRecordNotFound)
}
