package spark

import "errors"

var (
	// ErrNoResult is returned when a statement printed no JSON result line.
	ErrNoResult = errors.New("no result in statement output")
	// ErrAlgorithm is returned for an unsupported regressor name.
	ErrAlgorithm = errors.New("unsupported algorithm")
)
