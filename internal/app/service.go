// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/exposurerisk/internal/adapters/mq/publisher"
	runqueue "github.com/okian/exposurerisk/internal/adapters/mq/queue"
	workerpool "github.com/okian/exposurerisk/internal/adapters/mq/worker"
	"github.com/okian/exposurerisk/internal/adapters/repository"
	"github.com/okian/exposurerisk/internal/domain/dedupe"
	"github.com/okian/exposurerisk/internal/domain/detection"
	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/okian/exposurerisk/pkg/logger"
	"github.com/okian/exposurerisk/pkg/metrics"
)

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrNilConfiguration is returned when activating a nil configuration.
	ErrNilConfiguration = errors.New("nil scoring configuration")
)

// Service evaluates detection runs asynchronously and on demand.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	queue     runqueue.Queue
	evaluator *detection.Evaluator
	pool      *workerpool.Pool
	publisher publisher.Publisher

	active atomic.Pointer[scoring.Configuration]

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	resultRetention int
	maxWindows      int
	now             func() time.Time

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many run IDs are remembered for idempotency.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithResultRetention sets how many run records are kept for polling.
func WithResultRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.resultRetention = n
		}
	}
}

// WithMaxWindowsPerRun caps the windows accepted in one run; 0 disables the
// cap.
func WithMaxWindowsPerRun(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxWindows = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher forwards completed results downstream.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithConfiguration sets the initial scoring configuration.
func WithConfiguration(cfg *scoring.Configuration) Option {
	return func(s *Service) {
		if cfg != nil {
			s.active.Store(cfg)
		}
	}
}

// WithClock overrides the time source used for reference times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      100_000,
		resultRetention: 50_000,
		maxWindows:      2_000,
		now:             time.Now,
		publisher:       publisher.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.active.Load() == nil {
		s.active.Store(scoring.Default())
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.store = repository.NewMemoryStore(repository.WithMaxRecords(s.resultRetention))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = runqueue.NewInMemoryQueue(runqueue.WithCapacity(s.queueSize))
	s.evaluator = detection.NewEvaluator(
		detection.WithClock(s.now),
		detection.WithMaxWindows(s.maxWindows),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.evaluator, s, s.store,
		workerpool.WithPublisher(s.publisher))
	s.pool.Start(ctx)

	cfg := s.active.Load()
	metrics.SetActiveConfiguration(cfg.Version(), cfg.AggregationRule())

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "exposure risk service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("configuration", cfg.Version()),
	)
	return nil
}

// Stop drains queued runs, then closes the publisher.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping exposure risk service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "exposure risk service stopped")
	return errors.Join(errs...)
}

// Current returns the active scoring configuration.
func (s *Service) Current() *scoring.Configuration {
	return s.active.Load()
}

// SetConfiguration atomically activates cfg. Runs already being evaluated
// keep the snapshot they started with.
func (s *Service) SetConfiguration(ctx context.Context, cfg *scoring.Configuration) error {
	if cfg == nil {
		return ErrNilConfiguration
	}
	prev := s.active.Swap(cfg)
	metrics.SetActiveConfiguration(cfg.Version(), cfg.AggregationRule())
	if s.logger != nil {
		s.logger.Info(ctx, "scoring configuration activated",
			logger.String("version", cfg.Version()),
			logger.String("previous", prev.Version()),
			logger.String("aggregation_rule", cfg.AggregationRule()))
	}
	return nil
}

// Submit queues run for asynchronous evaluation. A run without an ID gets a
// generated one. A run ID seen before is reported as a duplicate and not
// evaluated again.
func (s *Service) Submit(ctx context.Context, run model.DetectionRun) (runID string, duplicate bool, err error) { //nolint:gocritic // hugeParam: runs are value snapshots
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", false, ErrNotStarted
	}

	run.RunID = strings.TrimSpace(run.RunID)
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if s.deduper.SeenAndRecord(ctx, run.RunID) {
		metrics.RecordDetectionDuplicate()
		return run.RunID, true, nil
	}
	run.ReceivedAt = s.now()

	queued := repository.Record{RunID: run.RunID, Status: repository.StatusQueued, SubmittedAt: run.ReceivedAt}
	if err := s.store.Save(ctx, queued); err != nil {
		s.deduper.Unrecord(ctx, run.RunID)
		return "", false, fmt.Errorf("store queued run %s: %w", run.RunID, err)
	}
	if err := s.queue.Enqueue(ctx, run); err != nil {
		s.deduper.Unrecord(ctx, run.RunID)
		_ = s.store.Delete(ctx, run.RunID)
		s.logger.Warn(ctx, "run rejected", logger.String("run_id", run.RunID), logger.Error(err))
		return "", false, fmt.Errorf("enqueue run %s: %w", run.RunID, err)
	}
	s.logger.Debug(ctx, "run queued",
		logger.String("run_id", run.RunID),
		logger.Int("windows", len(run.Windows)))
	return run.RunID, false, nil
}

// Result returns the stored state of a run.
func (s *Service) Result(ctx context.Context, runID string) (repository.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return repository.Record{}, ErrNotStarted
	}
	return s.store.Get(ctx, runID)
}

// Recent returns up to n runs, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]repository.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.Recent(ctx, n)
}

// Evaluate scores run synchronously under the active configuration without
// storing or publishing the result.
func (s *Service) Evaluate(ctx context.Context, run model.DetectionRun) (detection.Result, error) { //nolint:gocritic // hugeParam: runs are value snapshots
	s.mu.RLock()
	evaluator := s.evaluator
	s.mu.RUnlock()
	if evaluator == nil {
		evaluator = detection.NewEvaluator(detection.WithClock(s.now), detection.WithMaxWindows(s.maxWindows))
	}

	start := time.Now()
	res, err := evaluator.Evaluate(ctx, run, s.Current())
	metrics.RecordEvaluationLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordDetectionRun("failed")
		return detection.Result{}, err
	}
	metrics.RecordDetectionRun(res.Overall.RiskLevel.String())
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	cfg := s.Current()
	stats := map[string]interface{}{
		"started":              s.started,
		"workerCount":          s.workerCount,
		"queueSize":            s.queueSize,
		"dedupeSize":           s.dedupeSize,
		"resultRetention":      s.resultRetention,
		"configurationVersion": cfg.Version(),
		"aggregationRule":      cfg.AggregationRule(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["resultsStored"] = s.store.Count(ctx)
		stats["runsRemembered"] = s.deduper.Size()
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())

		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// Size returns the number of run IDs remembered for idempotency.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
