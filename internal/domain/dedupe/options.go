package dedupe

// Option configures the in-memory Deduper.
type Option func(*tracker)

// WithCapacity sets how many request IDs are remembered.
// Zero or less keeps every ID.
func WithCapacity(n int) Option {
	return func(t *tracker) {
		t.capacity = n
	}
}
