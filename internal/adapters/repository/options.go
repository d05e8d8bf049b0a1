package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxRuns bounds how many runs are kept. When exceeded the oldest
// finished run is dropped. Zero or less keeps every run.
func WithMaxRuns(n int) Option {
	return func(s *MemoryStore) {
		s.maxRuns = n
	}
}
