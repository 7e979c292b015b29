package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/exposurerisk/internal/domain/model"
)

func run(id string) model.DetectionRun {
	return model.DetectionRun{RunID: id, Windows: []model.ExposureWindow{{ReportType: model.ReportTypeConfirmedTest}}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}

	if err := q.Enqueue(ctx, run("run1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.RunID != "run1" {
		t.Errorf("expected run1, got %v", got.RunID)
	}
	if len(got.Windows) != 1 {
		t.Errorf("expected windows to travel with the run, got %d", len(got.Windows))
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"run1", "run2"} {
		if err := q.Enqueue(ctx, run(id)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}

	if err := q.Enqueue(ctx, run("run3")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, run("run1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	producers, perProducer := 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for q.Enqueue(ctx, run(fmt.Sprintf("run%d_%d", id, j))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	consumed := make(chan string, producers*perProducer)
	for i := 0; i < 4; i++ {
		go func() {
			for r := range q.Dequeue(ctx) {
				consumed <- r.RunID
			}
		}()
	}

	wg.Wait()

	seen := make(map[string]bool)
	timeout := time.After(5 * time.Second)
	for len(seen) < producers*perProducer {
		select {
		case id := <-consumed:
			if seen[id] {
				t.Fatalf("run %s delivered twice", id)
			}
			seen[id] = true
		case <-timeout:
			t.Fatalf("consumed %d of %d runs", len(seen), producers*perProducer)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for _, id := range []string{"run1", "run2"} {
		if err := q.Enqueue(ctx, run(id)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	if err := q.Enqueue(ctx, run("run3")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}

	// queued runs drain before the channel closes
	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected 2 drained runs, got %v", drained)
				}
				return
			}
			drained = append(drained, r.RunID)
		case <-timeout:
			t.Fatal("dequeue channel was not closed")
		}
	}
}
