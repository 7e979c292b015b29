// Package queue holds detection runs between submission and evaluation.
//
// The only implementation is an in-memory bounded queue; a broker backed
// one can replace it behind the same interface.
package queue

import (
	"context"
	"sync"

	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Run is the payload type flowing through the queue.
type Run = model.DetectionRun

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a run without blocking. It fails with ErrQueueFull when
	// the queue is at capacity and ErrQueueClosed after Close.
	Enqueue(ctx context.Context, r Run) error

	// Dequeue returns a channel receiving runs as they become available.
	// The channel is closed once the queue is closed and drained, or ctx ends.
	Dequeue(ctx context.Context) <-chan Run

	// Len returns the current number of queued runs.
	Len(ctx context.Context) int

	// Capacity returns the maximum number of queued runs.
	Capacity() int

	// Close stops accepting runs; queued runs remain dequeueable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	runs     chan Run
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.runs = make(chan Run, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue adds a run to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Run) error { //nolint:gocritic // hugeParam: runs travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.runs <- r:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrQueueFull
	}
}

// Dequeue returns a channel that will receive runs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Run {
	out := make(chan Run)
	go func() {
		defer close(out)
		for {
			select {
			case r, ok := <-q.runs:
				if !ok {
					return
				}
				select {
				case out <- r:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued runs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.runs)
}

// Capacity returns the queue capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.runs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.runs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
