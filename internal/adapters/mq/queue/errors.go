package queue

import "errors"

var (
	// ErrFull is returned when the trials do not fit in the remaining capacity.
	ErrFull = errors.New("queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("queue closed")
)
