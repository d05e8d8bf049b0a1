package metrics

import "errors"

// Sentinel kinds for metrics errors.
var (
	ErrUnknownState = errors.New("unknown breaker state")
)
