package service

import "errors"

var (
	// ErrNotStarted is returned by calls that need Start to have succeeded.
	ErrNotStarted = errors.New("service not started")
	// ErrUnsupported reports a backend and algorithm pairing that cannot run.
	ErrUnsupported = errors.New("unsupported backend configuration")
	// ErrTrialsFailed fails a run when any of its trials could not be evaluated.
	ErrTrialsFailed = errors.New("sweep trials failed")
)
