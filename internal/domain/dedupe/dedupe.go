// Package dedupe tracks detection run IDs so a resubmitted run is evaluated
// at most once.
package dedupe

import (
	"context"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 100_000

// Deduper records seen run IDs.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. It returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the run can be submitted again, e.g. after
	// the queue refused it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps IDs in an LRU cache. A duplicate lookup does not
// refresh an ID, so the oldest recorded ID is forgotten first.
type inMemoryDeduper struct {
	seen    *lru.Cache[string, struct{}]
	maxSize int // <= 0 means unbounded
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	size := d.maxSize
	if size <= 0 {
		size = math.MaxInt
	}
	// size is always positive here, the only error New returns
	d.seen, _ = lru.New[string, struct{}](size)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.seen.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Remove(id)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.seen.Len())
}
