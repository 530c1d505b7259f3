// Package metrics provides Prometheus metrics for the leakcoach service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scheduler business metrics
	batchesBuilt        prometheus.Counter
	batchesSkipped      *prometheus.CounterVec
	itemsCreated        *prometheus.CounterVec
	focusMixModes       *prometheus.CounterVec
	answers             *prometheus.CounterVec
	attemptRecordErrors prometheus.Counter
	scheduleConflicts   prometheus.Counter
	degradedReads       *prometheus.CounterVec
	dueItems            prometheus.Gauge
	refillRuns          prometheus.Counter
	refillBatches       prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leakcoach",
		subsystem:        "scheduler",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.batchesBuilt = m.counter("batches_built_total", "Queue batches created for learners with no pending work")
	m.batchesSkipped = m.counterVec("batches_skipped_total", "Batch build requests that created nothing", "reason")
	m.itemsCreated = m.counterVec("queue_items_created_total", "Queue items created by drill type", "drill_type")
	m.focusMixModes = m.counterVec("focus_mix_total", "Focus mix decisions by mode", "mode")
	m.answers = m.counterVec("answers_total", "Answered queue items by outcome", "result")
	m.attemptRecordErrors = m.counter("attempt_record_errors_total", "Attempt records that failed to persist")
	m.scheduleConflicts = m.counter("schedule_conflicts_total", "Answer submissions that lost a concurrent update")
	m.degradedReads = m.counterVec("degraded_reads_total", "Reads that failed and fell back to defaults", "source")
	m.dueItems = m.gauge("due_items", "Queue items currently due across all learners")
	m.refillRuns = m.counter("refill_runs_total", "Scheduled refill job executions")
	m.refillBatches = m.counter("refill_batches_total", "Batches created by the refill job")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "op")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("http_errors_total", "HTTP errors by endpoint and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordBatchBuilt counts a created batch.
func RecordBatchBuilt() { globalManager.batchesBuilt.Inc() }

// RecordBatchSkipped counts a build request that created nothing.
func RecordBatchSkipped(reason string) { globalManager.batchesSkipped.WithLabelValues(reason).Inc() }

// RecordItemsCreated adds n created items of a drill type.
func RecordItemsCreated(drillType string, n int) {
	globalManager.itemsCreated.WithLabelValues(drillType).Add(float64(n))
}

// RecordFocusMix counts a focus mix decision.
func RecordFocusMix(mode string) { globalManager.focusMixModes.WithLabelValues(mode).Inc() }

// RecordAnswer counts an answered item.
func RecordAnswer(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	globalManager.answers.WithLabelValues(result).Inc()
}

// RecordAttemptRecordError counts a swallowed attempt-record failure.
func RecordAttemptRecordError() { globalManager.attemptRecordErrors.Inc() }

// RecordScheduleConflict counts a lost conditional schedule update.
func RecordScheduleConflict() { globalManager.scheduleConflicts.Inc() }

// RecordDegradedRead counts a read that fell back to its default.
func RecordDegradedRead(source string) { globalManager.degradedReads.WithLabelValues(source).Inc() }

// UpdateDueItems sets the due items gauge.
func UpdateDueItems(n int) { globalManager.dueItems.Set(float64(n)) }

// RecordRefillRun counts one refill job run and the batches it created.
func RecordRefillRun(batches int) {
	globalManager.refillRuns.Inc()
	globalManager.refillBatches.Add(float64(batches))
}

// RecordStoreLatency observes a store operation latency.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) { globalManager.storeErrors.WithLabelValues(op).Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method string, statusCode int) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method string, statusCode int, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Observe(durationMs)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
