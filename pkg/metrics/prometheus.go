// Package metrics provides Prometheus metrics for the standings service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	snapshotRows  *prometheus.GaugeVec
	cachedEntries prometheus.Gauge

	// Change detection and fan-out
	changesTotal        *prometheus.CounterVec
	listenerErrors      *prometheus.CounterVec
	listenersRegistered prometheus.Gauge
	publishErrors       *prometheus.CounterVec

	// Poller
	pollCycles        prometheus.Counter
	pollCycleDuration prometheus.Histogram
	pollerRunning     prometheus.Gauge

	// Aggregation
	aggregationDuration prometheus.Histogram
	aggregationFailures *prometheus.CounterVec
	teamsRanked         prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	websocketClients    prometheus.Gauge
	websocketMessages   prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry avoids the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "standings",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.fetchesTotal = auto.NewCounterVec(
		m.counterOpts("fetches_total", "Leaderboard fetches by competition, source kind and outcome"),
		[]string{"competition", "source", "outcome"},
	)
	m.fetchLatency = auto.NewHistogramVec(
		m.histogramOpts("fetch_latency_milliseconds", "Leaderboard fetch latency in milliseconds", m.histogramBuckets),
		[]string{"source"},
	)
	m.snapshotRows = auto.NewGaugeVec(
		m.gaugeOpts("snapshot_rows", "Rows in the latest cached snapshot per competition"),
		[]string{"competition"},
	)
	m.cachedEntries = auto.NewGauge(
		m.gaugeOpts("cached_competitions", "Number of competitions with a cached snapshot"),
	)

	m.changesTotal = auto.NewCounterVec(
		m.counterOpts("changes_total", "Detected change events by competition and kind"),
		[]string{"competition", "kind"},
	)
	m.listenerErrors = auto.NewCounterVec(
		m.counterOpts("listener_errors_total", "Listener failures during notification"),
		[]string{"listener"},
	)
	m.listenersRegistered = auto.NewGauge(
		m.gaugeOpts("listeners_registered", "Number of subscribed change listeners"),
	)
	m.publishErrors = auto.NewCounterVec(
		m.counterOpts("publish_errors_total", "Failures writing change events to external sinks"),
		[]string{"sink"},
	)

	m.pollCycles = auto.NewCounter(
		m.counterOpts("poll_cycles_total", "Completed poll cycles"),
	)
	m.pollCycleDuration = auto.NewHistogram(
		m.histogramOpts("poll_cycle_duration_milliseconds", "Duration of a full poll cycle in milliseconds",
			[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}),
	)
	m.pollerRunning = auto.NewGauge(
		m.gaugeOpts("poller_running", "1 while the background poller runs"),
	)

	m.aggregationDuration = auto.NewHistogram(
		m.histogramOpts("aggregation_duration_milliseconds", "Duration of a leaderboard aggregation in milliseconds", m.histogramBuckets),
	)
	m.aggregationFailures = auto.NewCounterVec(
		m.counterOpts("aggregation_source_failures_total", "Competitions skipped during aggregation because their snapshot could not be read"),
		[]string{"competition"},
	)
	m.teamsRanked = auto.NewGauge(
		m.gaugeOpts("teams_ranked", "Teams in the most recent aggregated leaderboard"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.websocketClients = auto.NewGauge(
		m.gaugeOpts("websocket_clients", "Connected websocket clients"),
	)
	m.websocketMessages = auto.NewCounter(
		m.counterOpts("websocket_messages_total", "Messages broadcast to websocket clients"),
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordFetch counts one fetch attempt and its latency.
func RecordFetch(competition, source, outcome string, latencyMs float64) {
	globalManager.fetchesTotal.WithLabelValues(competition, source, outcome).Inc()
	globalManager.fetchLatency.WithLabelValues(source).Observe(latencyMs)
}

// UpdateSnapshotRows sets the row count of a cached snapshot.
func UpdateSnapshotRows(competition string, rows int) {
	globalManager.snapshotRows.WithLabelValues(competition).Set(float64(rows))
}

// UpdateCachedCompetitions sets the number of cached competitions.
func UpdateCachedCompetitions(count int) {
	globalManager.cachedEntries.Set(float64(count))
}

// RecordChange counts one change event.
func RecordChange(competition, kind string) {
	globalManager.changesTotal.WithLabelValues(competition, kind).Inc()
}

// RecordListenerError counts a failed or panicking listener invocation.
func RecordListenerError(listener string) {
	globalManager.listenerErrors.WithLabelValues(listener).Inc()
}

// UpdateListenersRegistered sets the number of subscribed listeners.
func UpdateListenersRegistered(count int) {
	globalManager.listenersRegistered.Set(float64(count))
}

// RecordPublishError counts a failed write to an external sink.
func RecordPublishError(sink string) {
	globalManager.publishErrors.WithLabelValues(sink).Inc()
}

// RecordPollCycle counts a finished poll cycle.
func RecordPollCycle(durationMs float64) {
	globalManager.pollCycles.Inc()
	globalManager.pollCycleDuration.Observe(durationMs)
}

// SetPollerRunning flips the poller state gauge.
func SetPollerRunning(running bool) {
	if running {
		globalManager.pollerRunning.Set(1)
		return
	}
	globalManager.pollerRunning.Set(0)
}

// RecordAggregation records one aggregation and the size of its result.
func RecordAggregation(durationMs float64, teams int) {
	globalManager.aggregationDuration.Observe(durationMs)
	globalManager.teamsRanked.Set(float64(teams))
}

// RecordAggregationFailure counts a competition skipped during aggregation.
func RecordAggregationFailure(competition string) {
	globalManager.aggregationFailures.WithLabelValues(competition).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateWebsocketClients sets the number of connected websocket clients.
func UpdateWebsocketClients(count int) {
	globalManager.websocketClients.Set(float64(count))
}

// RecordWebsocketMessage counts one broadcast message.
func RecordWebsocketMessage() {
	globalManager.websocketMessages.Inc()
}

// UpdateSystemMemoryUsage sets system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
