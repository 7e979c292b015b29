// Package metrics provides Prometheus metrics for the exposure risk service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace             string
	subsystem             string
	histogramBuckets      []float64
	normalizedTimeBuckets []float64
	constLabels           prometheus.Labels
	registry              prometheus.Registerer

	// Scoring
	windowsScored        *prometheus.CounterVec
	windowsDropped       *prometheus.CounterVec
	windowsExpired       prometheus.Counter
	normalizedTime       prometheus.Histogram
	invalidConfiguration prometheus.Counter

	// Detection runs
	detectionRuns       *prometheus.CounterVec
	detectionsDuplicate prometheus.Counter
	evaluationLatency   prometheus.Histogram

	// Scoring configuration
	configurationInfo    *prometheus.GaugeVec
	configurationReloads *prometheus.CounterVec

	// Result publishing
	publishedResults *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Result store
	resultsStored  prometheus.Gauge
	resultsEvicted prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:             "exposurerisk",
		subsystem:             "riskd",
		histogramBuckets:      prometheus.DefBuckets,
		normalizedTimeBuckets: []float64{0, 1, 2.5, 5, 10, 15, 20, 30, 50, 100},
		constLabels:           prometheus.Labels{},
		registry:              prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.windowsScored = m.counterVec("windows_scored_total", "Exposure windows scored, by per-window risk level", "risk_level")
	m.windowsDropped = m.counterVec("windows_dropped_total", "Exposure windows dropped, by filter", "reason")
	m.windowsExpired = m.counter("windows_expired_total", "Exposure windows older than the encounter age limit")
	m.normalizedTime = m.histogram("window_normalized_time", "Normalized exposure time per window", m.normalizedTimeBuckets)
	m.invalidConfiguration = m.counter("invalid_configuration_total",
		"Risk level lookups not covered by the active configuration")

	m.detectionRuns = m.counterVec("detection_runs_total", "Detection runs evaluated, by outcome", "outcome")
	m.detectionsDuplicate = m.counter("detection_runs_duplicate_total", "Detection runs rejected as duplicates")
	m.evaluationLatency = m.histogram("evaluation_latency_milliseconds", "Detection run evaluation latency in milliseconds",
		m.histogramBuckets)

	m.configurationInfo = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "configuration_info",
		Help: "Active scoring configuration (value is always 1)", ConstLabels: m.constLabels,
	}, []string{"version", "aggregation_rule"})
	m.configurationReloads = m.counterVec("configuration_reloads_total", "Scoring configuration reloads, by result", "result")

	m.publishedResults = m.counterVec("results_published_total", "Detection results handed to the publisher, by result", "result")

	m.queueSize = m.gauge("queue_size", "Current size of the detection queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of runs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of runs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently evaluating a run")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.resultsStored = m.gauge("results_stored", "Detection results currently retained")
	m.resultsEvicted = m.counter("results_evicted_total", "Detection results evicted to respect retention")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Scoring.

// RecordWindowScored counts one scored window by its risk level name.
func RecordWindowScored(riskLevel string, normalizedTime float64) {
	globalManager.windowsScored.WithLabelValues(riskLevel).Inc()
	globalManager.normalizedTime.Observe(normalizedTime)
}

// RecordWindowDropped counts a window dropped by the named filter.
func RecordWindowDropped(reason string) {
	globalManager.windowsDropped.WithLabelValues(reason).Inc()
}

// RecordWindowsExpired counts windows skipped for their age.
func RecordWindowsExpired(n int) {
	globalManager.windowsExpired.Add(float64(n))
}

// RecordInvalidConfiguration counts an uncovered risk level lookup.
func RecordInvalidConfiguration() {
	globalManager.invalidConfiguration.Inc()
}

// Detection runs.

// RecordDetectionRun counts a finished run by outcome (low, high or failed).
func RecordDetectionRun(outcome string) {
	globalManager.detectionRuns.WithLabelValues(outcome).Inc()
}

// RecordDetectionDuplicate increments the duplicate runs counter.
func RecordDetectionDuplicate() {
	globalManager.detectionsDuplicate.Inc()
}

// RecordEvaluationLatency records evaluation latency in milliseconds.
func RecordEvaluationLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

// Scoring configuration.

// SetActiveConfiguration marks version as the only active configuration.
func SetActiveConfiguration(version, rule string) {
	globalManager.configurationInfo.Reset()
	globalManager.configurationInfo.WithLabelValues(version, rule).Set(1)
}

// RecordConfigurationReload counts a reload attempt by result (ok or rejected).
func RecordConfigurationReload(result string) {
	globalManager.configurationReloads.WithLabelValues(result).Inc()
}

// RecordPublish counts a publish attempt by result (ok or failed).
func RecordPublish(result string) {
	globalManager.publishedResults.WithLabelValues(result).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the number of busy workers by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Result store.

// UpdateResultsStored sets the number of retained results.
func UpdateResultsStored(count int) {
	globalManager.resultsStored.Set(float64(count))
}

// RecordResultEvicted increments the eviction counter.
func RecordResultEvicted() {
	globalManager.resultsEvicted.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// Register adds an extra collector to the custom registry.
func Register(c prometheus.Collector) error {
	if err := customRegistry.Register(c); err != nil {
		return fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}
	return nil
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
