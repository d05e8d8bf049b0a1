package table

import "errors"

var (
	// ErrColumnNotFound is returned when a requested column does not exist.
	ErrColumnNotFound = errors.New("column not found")
	// ErrNonNumeric is returned when a value cannot be read as a number.
	ErrNonNumeric = errors.New("non-numeric value")
	// ErrShape is returned when columns disagree on length or names repeat.
	ErrShape = errors.New("malformed table")
)
