package registry

import (
	"time"

	"github.com/okian/elbow/pkg/logger"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithInMemoryIndex keeps the index in memory; artifacts still go to disk.
func WithInMemoryIndex() Option {
	return func(r *Registry) {
		r.inMemory = true
	}
}

// WithClock overrides the time source used for creation stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}
