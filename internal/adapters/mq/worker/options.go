// Package worker evaluates queued sweep trials concurrently.
package worker

import (
	"time"

	"github.com/okian/elbow/pkg/logger"
)

// Option applies a configuration option to a Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTrialTimeout bounds each evaluation. Zero means no bound.
func WithTrialTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.trialTimeout = d
		}
	}
}
