package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/okian/exposurerisk/pkg/metrics"
)

const defaultMaxRecords = 50_000

// MemoryStore is a bounded in-memory Store. Records are only ever read with
// Peek, so the LRU order stays the submission order and eviction always
// drops the oldest run.
type MemoryStore struct {
	mu         sync.RWMutex
	records    *simplelru.LRU[string, *Record]
	maxRecords int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{maxRecords: defaultMaxRecords}
	for _, opt := range opts {
		opt(s)
	}
	// WithMaxRecords keeps maxRecords positive, the only error NewLRU returns
	s.records, _ = simplelru.NewLRU[string, *Record](s.maxRecords, nil)
	metrics.UpdateResultsStored(0)
	return s
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, rec Record) error { //nolint:gocritic // hugeParam: records are stored by value
	if rec.RunID == "" {
		return ErrEmptyRunID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records.Peek(rec.RunID); ok {
		*cur = rec
		return nil
	}

	if evicted := s.records.Add(rec.RunID, &rec); evicted {
		metrics.RecordResultEvicted()
	}
	metrics.UpdateResultsStored(s.records.Len())
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records.Peek(runID)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return *rec, nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.records.Keys() // oldest first
	out := make([]Record, 0, min(n, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if rec, ok := s.records.Peek(keys[i]); ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records.Remove(runID) {
		metrics.UpdateResultsStored(s.records.Len())
	}
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Len()
}
