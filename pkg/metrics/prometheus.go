// Package metrics provides Prometheus metrics for the elbow sweep service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Trial latencies are dominated by remote fits, so buckets reach into minutes.
var defaultLatencyBuckets = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000}

// Manager owns every collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Sweeps
	sweepsSubmitted prometheus.Counter
	sweepsDuplicate prometheus.Counter
	sweepsCompleted prometheus.Counter
	sweepsFailed    prometheus.Counter
	trials          *prometheus.CounterVec
	trialLatency    prometheus.Histogram

	// Elbow selection
	elbowSelections prometheus.Counter
	elbowFailures   *prometheus.CounterVec
	elbowParam      prometheus.Gauge

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected *prometheus.CounterVec
	workerCount   prometheus.Gauge
	workerBusy    prometheus.Gauge

	// Remote session
	livyRequests     *prometheus.CounterVec
	livyLatency      *prometheus.HistogramVec
	livyBreakerState prometheus.Gauge
	livySessions     prometheus.Gauge

	// Storage and registry
	storageTransfers *prometheus.CounterVec
	storageBytes     *prometheus.CounterVec
	modelsSaved      prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "elbow",
		subsystem:      "sweep",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.sweepsSubmitted = m.counter("sweeps_submitted_total", "Sweeps accepted for processing")
	m.sweepsDuplicate = m.counter("sweeps_duplicate_total", "Sweep submissions rejected as duplicates")
	m.sweepsCompleted = m.counter("sweeps_completed_total", "Sweeps that produced a recommendation")
	m.sweepsFailed = m.counter("sweeps_failed_total", "Sweeps that ended in failure")
	m.trials = m.counterVec("trials_total", "Trials evaluated by outcome", "status")
	m.trialLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trial_latency_milliseconds",
		Help:      "Time to fit and evaluate one trial",
		Buckets:   m.latencyBuckets,
	})

	m.elbowSelections = m.counter("elbow_selections_total", "Successful elbow selections")
	m.elbowFailures = m.counterVec("elbow_failures_total", "Rejected elbow selections by kind", "kind")
	m.elbowParam = m.gauge("elbow_last_param", "Most recently recommended parameter value")

	m.queueSize = m.gauge("queue_size", "Trials waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum trials the queue accepts")
	m.queueRejected = m.counterVec("queue_rejected_total", "Trials the queue refused", "reason")
	m.workerCount = m.gauge("worker_count", "Configured trial workers")
	m.workerBusy = m.gauge("worker_busy", "Workers currently evaluating a trial")

	m.livyRequests = m.counterVec("livy_requests_total", "Livy REST calls by operation and outcome", "op", "status")
	m.livyLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "livy_request_duration_milliseconds",
		Help:      "Livy REST call latency",
		Buckets:   m.latencyBuckets,
	}, []string{"op"})
	m.livyBreakerState = m.gauge("livy_breaker_state", "Livy circuit breaker state (0 closed, 1 half-open, 2 open)")
	m.livySessions = m.gauge("livy_sessions_open", "Livy sessions currently held open")

	m.storageTransfers = m.counterVec("storage_transfers_total", "Files moved to or from distributed storage", "direction")
	m.storageBytes = m.counterVec("storage_bytes_total", "Bytes moved to or from distributed storage", "direction")
	m.modelsSaved = m.counter("models_saved_total", "Models written to the registry")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordSweepSubmitted increments the submitted sweeps counter.
func RecordSweepSubmitted() { globalManager.sweepsSubmitted.Inc() }

// RecordSweepDuplicate increments the duplicate sweeps counter.
func RecordSweepDuplicate() { globalManager.sweepsDuplicate.Inc() }

// RecordSweepCompleted increments the completed sweeps counter.
func RecordSweepCompleted() { globalManager.sweepsCompleted.Inc() }

// RecordSweepFailed increments the failed sweeps counter.
func RecordSweepFailed() { globalManager.sweepsFailed.Inc() }

// RecordTrial counts a trial with status "ok" or "error" and records its latency.
func RecordTrial(status string, latencyMs float64) {
	globalManager.trials.WithLabelValues(status).Inc()
	globalManager.trialLatency.Observe(latencyMs)
}

// RecordElbowSelection counts a successful selection and exposes the chosen value.
func RecordElbowSelection(param float64) {
	globalManager.elbowSelections.Inc()
	globalManager.elbowParam.Set(param)
}

// RecordElbowFailure counts a rejected selection ("invalid" or "degenerate").
func RecordElbowFailure(kind string) {
	globalManager.elbowFailures.WithLabelValues(kind).Inc()
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueRejected counts a refused enqueue.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) { globalManager.workerBusy.Add(float64(delta)) }

// RecordLivyRequest records one Livy REST call.
func RecordLivyRequest(op, status string, latencyMs float64) {
	globalManager.livyRequests.WithLabelValues(op, status).Inc()
	globalManager.livyLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateLivyBreakerState exposes the circuit breaker state by name.
func UpdateLivyBreakerState(state string) error {
	switch state {
	case "closed":
		globalManager.livyBreakerState.Set(0)
	case "half-open":
		globalManager.livyBreakerState.Set(1)
	case "open":
		globalManager.livyBreakerState.Set(2)
	default:
		return ErrUnknownState
	}
	return nil
}

// AddLivySessions adjusts the open session gauge by delta.
func AddLivySessions(delta int) { globalManager.livySessions.Add(float64(delta)) }

// RecordStorageTransfer records a file moved "put" or "get" and its size.
func RecordStorageTransfer(direction string, bytes int64) {
	globalManager.storageTransfers.WithLabelValues(direction).Inc()
	if bytes > 0 {
		globalManager.storageBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}

// RecordModelSaved increments the saved models counter.
func RecordModelSaved() { globalManager.modelsSaved.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the heap usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
