package regression

import "errors"

// Sentinel kinds for regression errors.
var (
	ErrEmpty     = errors.New("empty training set")
	ErrShape     = errors.New("inconsistent feature shape")
	ErrSingular  = errors.New("singular design matrix")
	ErrEstimator = errors.New("estimator count must be positive")
)
