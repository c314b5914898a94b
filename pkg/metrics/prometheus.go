// Package metrics provides Prometheus metrics for the clickrank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Business metrics
	visitorIncrements prometheus.Counter
	adminActions      *prometheus.CounterVec
	forbidden         *prometheus.CounterVec
	identitiesMinted  prometheus.Counter
	leaderboardSize   prometheus.Gauge
	globalCount       prometheus.Gauge

	// Store metrics
	storeLatency     *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	storeConnections prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Stream metrics
	streamSubscribers prometheus.Gauge
	streamQueueSize   prometheus.Gauge
	streamDropped     prometheus.Counter
	streamDelivered   prometheus.Counter

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "clickrank",
		subsystem:        "service",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.visitorIncrements = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "visitor_increments_total",
		Help:      "Visitor increments that completed all three store operations",
	})

	m.adminActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "admin_actions_total",
		Help:      "Administrative mutations by action",
	}, []string{"action"})

	m.forbidden = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "forbidden_total",
		Help:      "Requests rejected by the authorization gate by reason",
	}, []string{"reason"})

	m.identitiesMinted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "identities_minted_total",
		Help:      "Client ids minted for callers without one",
	})

	m.leaderboardSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_size",
		Help:      "Last observed leaderboard cardinality",
	})

	m.globalCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "global_count",
		Help:      "Last observed global counter value",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_operation_duration_milliseconds",
		Help:      "Store round-trip latency by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"op"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Failed store operations by operation",
	}, []string{"op"})

	m.storeConnections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_connects_total",
		Help:      "Store client handles created (initial connect and reconnects)",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Error responses by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_type_total",
		Help:      "Error responses by error type and severity",
	}, []string{"error_type", "severity"})

	m.streamSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_subscribers",
		Help:      "Connected count stream subscribers (SSE and WebSocket)",
	})

	m.streamQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_queue_size",
		Help:      "Pending count updates waiting for broadcast",
	})

	m.streamDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_dropped_total",
		Help:      "Count updates dropped because the broadcast queue was full",
	})

	m.streamDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_delivered_total",
		Help:      "Count updates handed to the stream hub",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordVisitorIncrement counts a completed visitor increment.
func RecordVisitorIncrement() {
	globalManager.visitorIncrements.Inc()
}

// RecordAdminAction counts an administrative mutation.
func RecordAdminAction(action string) {
	globalManager.adminActions.WithLabelValues(action).Inc()
}

// RecordForbidden counts a request denied by the authorization gate.
func RecordForbidden(reason string) {
	globalManager.forbidden.WithLabelValues(reason).Inc()
}

// RecordIdentityMinted counts a freshly issued client id.
func RecordIdentityMinted() {
	globalManager.identitiesMinted.Inc()
}

// UpdateLeaderboardSize sets the observed leaderboard cardinality.
func UpdateLeaderboardSize(size int64) {
	globalManager.leaderboardSize.Set(float64(size))
}

// UpdateGlobalCount sets the observed global counter.
func UpdateGlobalCount(count int64) {
	globalManager.globalCount.Set(float64(count))
}

// RecordStoreLatency records a store round trip in milliseconds.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordStoreConnect counts a store handle creation.
func RecordStoreConnect() {
	globalManager.storeConnections.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint increments the error counter for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType increments the error counter for a type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateStreamSubscribers sets the number of connected stream subscribers.
func UpdateStreamSubscribers(count int) {
	globalManager.streamSubscribers.Set(float64(count))
}

// UpdateStreamQueueSize sets the broadcast queue depth.
func UpdateStreamQueueSize(size int) {
	globalManager.streamQueueSize.Set(float64(size))
}

// RecordStreamDropped counts an update dropped on a full queue.
func RecordStreamDropped() {
	globalManager.streamDropped.Inc()
}

// RecordStreamDelivered counts an update handed to the hub.
func RecordStreamDelivered() {
	globalManager.streamDelivered.Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
