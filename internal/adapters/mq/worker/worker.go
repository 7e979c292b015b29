// Package worker evaluates queued detection runs and stores their results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/exposurerisk/internal/adapters/mq/publisher"
	"github.com/okian/exposurerisk/internal/adapters/mq/queue"
	"github.com/okian/exposurerisk/internal/adapters/repository"
	"github.com/okian/exposurerisk/internal/domain/detection"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/okian/exposurerisk/pkg/logger"
	"github.com/okian/exposurerisk/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Error codes stored on failed records.
const (
	CodeInvalidConfiguration = "invalid_configuration"
	CodeTooManyWindows       = "too_many_windows"
	CodeEvaluationFailed     = "evaluation_failed"
)

// Run is what workers read off the queue.
type Run = queue.Run

// Evaluator scores a run under a configuration snapshot.
type Evaluator interface {
	Evaluate(ctx context.Context, run Run, cfg *scoring.Configuration) (detection.Result, error)
}

// ConfigSource hands out the active scoring configuration.
type ConfigSource interface {
	Current() *scoring.Configuration
}

// Saver persists the outcome of a run.
type Saver interface {
	Save(ctx context.Context, rec repository.Record) error
}

// Queue defines how workers receive runs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Run
}

// Worker processes runs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	configs   ConfigSource
	store     Saver
	publisher publisher.Publisher
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, evaluator Evaluator, configs ConfigSource, store Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		evaluator: evaluator,
		configs:   configs,
		store:     store,
		publisher: publisher.Nop{},
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. It returns once the queue channel is closed
// and drained, ctx is done, or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	runs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case run, ok := <-runs:
			if !ok {
				return
			}
			if err := w.processRun(ctx, run); err != nil {
				w.logger.Error(ctx, "error processing detection run", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processRun evaluates one run against the configuration active at dequeue
// time, stores the outcome and publishes completed results.
func (w *InMemoryWorker) processRun(ctx context.Context, run Run) error { //nolint:gocritic // hugeParam: runs travel by value over the queue
	metrics.AddWorkerActive(1)
	start := time.Now()
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	// the record must land even when shutdown cancels ctx mid-run
	saveCtx := context.WithoutCancel(ctx)
	rec := repository.Record{RunID: run.RunID, SubmittedAt: run.ReceivedAt}

	evalStart := time.Now()
	res, err := w.evaluator.Evaluate(ctx, run, w.configs.Current())
	metrics.RecordEvaluationLatency(float64(time.Since(evalStart).Milliseconds()))
	rec.CompletedAt = time.Now()

	if err != nil {
		rec.Status = repository.StatusFailed
		rec.Error = err.Error()
		rec.ErrorCode = errorCode(err)
		metrics.RecordDetectionRun("failed")
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", rec.ErrorCode)
		w.logger.Error(ctx, "detection run failed",
			logger.String("run_id", run.RunID),
			logger.String("code", rec.ErrorCode),
			logger.Error(err))
		if serr := w.store.Save(saveCtx, rec); serr != nil {
			return fmt.Errorf("save failed run %s: %w", run.RunID, serr)
		}
		return fmt.Errorf("evaluate run %s: %w", run.RunID, err)
	}

	rec.Status = repository.StatusCompleted
	rec.Result = &res
	metrics.RecordDetectionRun(res.Overall.RiskLevel.String())
	if err := w.store.Save(saveCtx, rec); err != nil {
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	w.logger.Debug(ctx, "detection run completed",
		logger.String("run_id", run.RunID),
		logger.String("risk_level", res.Overall.RiskLevel.String()),
		logger.Int("windows", len(res.Windows)))

	if err := w.publisher.Publish(saveCtx, &res); err != nil {
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish run %s: %w", run.RunID, err)
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, scoring.ErrInvalidConfiguration):
		return CodeInvalidConfiguration
	case errors.Is(err, detection.ErrTooManyWindows):
		return CodeTooManyWindows
	default:
		return CodeEvaluationFailed
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	// cancel aborts in-flight evaluations once a drain times out.
	cancel context.CancelFunc
}

// NewPool creates a pool of workerCount workers sharing opts.
func NewPool(workerCount int, q Queue, evaluator Evaluator, configs ConfigSource, store Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, evaluator, configs, store, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. Workers outlive ctx: they stop only
// through Shutdown, so runs accepted before a signal are still evaluated.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and lets workers drain what is already queued.
// Workers still busy when ctx (capped at poolShutdownTimeout) expires are
// told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			close(w.shutdown)
			timedOut++
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
