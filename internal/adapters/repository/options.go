package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxRecords bounds the number of retained records; the oldest
// submission is evicted first.
func WithMaxRecords(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}
