package sweep

import "errors"

// Sentinel kinds for sweep errors.
var (
	ErrInvalidRange = errors.New("invalid sweep range")
	ErrEmptyResult  = errors.New("empty sweep result")
)
