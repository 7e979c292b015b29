package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// If maxSize > 0: bounded, the oldest ID is forgotten first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
