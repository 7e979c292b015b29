package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/exposurerisk/internal/domain/detection"
)

func TestMemoryStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Save(ctx, Record{RunID: "run1", Status: StatusQueued}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := store.Get(ctx, "run1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusQueued {
		t.Errorf("expected queued, got %s", rec.Status)
	}

	res := &detection.Result{RunID: "run1", ConfigurationVersion: "v1"}
	if err := store.Save(ctx, Record{RunID: "run1", Status: StatusCompleted, Result: res}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ = store.Get(ctx, "run1")
	if rec.Status != StatusCompleted || rec.Result.ConfigurationVersion != "v1" {
		t.Errorf("expected completed record with result, got %+v", rec)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1 after replace, got %d", count)
	}

	if err := store.Delete(ctx, "run1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, "run1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "run1"); err != nil {
		t.Errorf("deleting twice should not fail: %v", err)
	}
}

func TestMemoryStore_Eviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithMaxRecords(3))

	for i := 1; i <= 3; i++ {
		_ = store.Save(ctx, Record{RunID: fmt.Sprintf("run%d", i), Status: StatusQueued})
	}
	// replacing run1 keeps it oldest
	_ = store.Save(ctx, Record{RunID: "run1", Status: StatusCompleted})
	_ = store.Save(ctx, Record{RunID: "run4", Status: StatusQueued})

	if count := store.Count(ctx); count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
	if _, err := store.Get(ctx, "run1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected run1 evicted, got %v", err)
	}
	if _, err := store.Get(ctx, "run4"); err != nil {
		t.Errorf("expected run4 retained, got %v", err)
	}
}

func TestMemoryStore_Recent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 1; i <= 5; i++ {
		_ = store.Save(ctx, Record{RunID: fmt.Sprintf("run%d", i)})
	}

	recs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].RunID != "run5" || recs[1].RunID != "run4" {
		t.Errorf("expected run5, run4; got %+v", recs)
	}

	recs, _ = store.Recent(ctx, 100)
	if len(recs) != 5 {
		t.Errorf("expected all 5 records, got %d", len(recs))
	}

	if _, err := store.Recent(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestMemoryStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Save(ctx, Record{}); !errors.Is(err, ErrEmptyRunID) {
		t.Errorf("expected ErrEmptyRunID, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithMaxRecords(500))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("run%d_%d", g, i)
				_ = store.Save(ctx, Record{RunID: id, Status: StatusQueued})
				_, _ = store.Get(ctx, id)
				_, _ = store.Recent(ctx, 10)
			}
		}(g)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 500 {
		t.Errorf("expected bounded count 500, got %d", count)
	}
}
