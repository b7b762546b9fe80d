package core

import (
	"errors"
	"fmt"
)

// ErrUnknownTable is returned when an adapter references a table that is not
// registered for the active product. This is a configuration bug, not a data
// problem, so it fails the record rather than producing a rejection status.
var ErrUnknownTable = errors.New("unknown table")

// RecordShapeError reports an incoming record that the product adapter could
// not decompose: an unrecognized field prefix, a missing natural-key field,
// or an unsatisfied cross-table requirement. The row fails before any
// transaction is opened.
type RecordShapeError struct {
	Product string
	Reason  string
}

func (e *RecordShapeError) Error() string {
	return fmt.Sprintf("record shape invalid for product %s: %s", e.Product, e.Reason)
}

// NewRecordShapeError builds a RecordShapeError with a formatted reason.
func NewRecordShapeError(product, format string, args ...any) *RecordShapeError {
	return &RecordShapeError{Product: product, Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a lower-level data-access fault (constraint
// violation, connectivity loss). It is propagated to the coordinator, which
// rolls back and marks the row FAILED; it is never swallowed.
type PersistenceError struct {
	Table string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %s (%s): %v", e.Table, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
