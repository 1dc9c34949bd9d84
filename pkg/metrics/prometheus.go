// Package metrics provides Prometheus metrics for the Four-Sigma game service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// scoreBuckets split the 0-100 score range into tens.
var scoreBuckets = prometheus.LinearBuckets(10, 10, 10) //nolint:gochecknoglobals // fixed bucket layout

// Manager owns every metric the service exports.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Game
	answersScored       prometheus.Counter
	answersCaptured     prometheus.Counter
	answerScore         prometheus.Histogram
	scoringLatency      prometheus.Histogram
	submissionDuplicate prometheus.Counter
	sessionsStarted     *prometheus.CounterVec
	sessionsFinished    *prometheus.CounterVec
	authAttempts        *prometheus.CounterVec

	// Leaderboard
	leaderboardUpdates       prometheus.Counter
	leaderboardPlayers       prometheus.Gauge
	leaderboardUpdateLatency prometheus.Histogram
	leaderboardQueryLatency  prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers and event publishing
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	eventsPublished         *prometheus.CounterVec
	eventsPublishErrors     *prometheus.CounterVec

	// Store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "foursigma",
		subsystem:      "game",
		latencyBuckets: prometheus.ExponentialBuckets(0.05, 2.5, 12),
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.latencyBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.answersScored = m.counter("answers_scored_total", "Answers scored and stored")
	m.answersCaptured = m.counter("answers_captured_total", "Answers whose interval contained the true value")
	m.answerScore = m.histogram("answer_score", "Distribution of calibration scores", scoreBuckets)
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Time spent computing a score", m.latencyBuckets)
	m.submissionDuplicate = m.counter("submissions_duplicate_total", "Repeated submissions for an already answered question")
	m.sessionsStarted = m.counterVec("sessions_started_total", "Game sessions started by mode", "mode")
	m.sessionsFinished = m.counterVec("sessions_finished_total", "Game sessions finished by mode", "mode")
	m.authAttempts = m.counterVec("auth_attempts_total", "Sign-up and sign-in attempts by outcome", "action", "result")

	m.leaderboardUpdates = m.counter("leaderboard_updates_total", "Leaderboard best-score improvements")
	m.leaderboardPlayers = m.gauge("leaderboard_players", "Players ranked on the leaderboard")
	m.leaderboardUpdateLatency = m.histogram("leaderboard_update_latency_milliseconds",
		"Leaderboard update latency", m.latencyBuckets)
	m.leaderboardQueryLatency = m.histogram("leaderboard_query_latency_milliseconds",
		"Leaderboard read latency", m.latencyBuckets)

	m.queueSize = m.gauge("queue_size", "Events waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Event queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Events enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Events rejected by a full or closed queue")

	m.workerCount = m.gauge("worker_count", "Running event workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time to apply one event", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Events a worker failed to apply")
	m.eventsPublished = m.counterVec("events_published_total", "Events published to the message bus", "kind")
	m.eventsPublishErrors = m.counterVec("events_publish_errors_total", "Failed event publications", "kind")

	m.storeQueryLatency = m.histogramVec("store_query_duration_milliseconds", "Database call latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Database call failures", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		"endpoint", "method", "status_code")
	m.httpInFlight = m.gauge("http_requests_in_flight", "HTTP requests currently being served")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause", m.latencyBuckets)
}

// RecordAnswerScored observes a stored score and how long it took to compute.
func (m *Manager) RecordAnswerScored(score float64, captured bool, latencyMs float64) {
	m.answersScored.Inc()
	if captured {
		m.answersCaptured.Inc()
	}
	m.answerScore.Observe(score)
	m.scoringLatency.Observe(latencyMs)
}

func (m *Manager) RecordSubmissionDuplicate()        { m.submissionDuplicate.Inc() }
func (m *Manager) RecordSessionStarted(mode string)  { m.sessionsStarted.WithLabelValues(mode).Inc() }
func (m *Manager) RecordSessionFinished(mode string) { m.sessionsFinished.WithLabelValues(mode).Inc() }
func (m *Manager) RecordAuthAttempt(action, result string) {
	m.authAttempts.WithLabelValues(action, result).Inc()
}

func (m *Manager) RecordLeaderboardUpdate()           { m.leaderboardUpdates.Inc() }
func (m *Manager) UpdateLeaderboardPlayers(count int) { m.leaderboardPlayers.Set(float64(count)) }
func (m *Manager) RecordLeaderboardUpdateLatency(latency float64) {
	m.leaderboardUpdateLatency.Observe(latency)
}
func (m *Manager) RecordLeaderboardQueryLatency(latency float64) {
	m.leaderboardQueryLatency.Observe(latency)
}

func (m *Manager) UpdateQueueSize(size int)         { m.queueSize.Set(float64(size)) }
func (m *Manager) UpdateQueueCapacity(capacity int) { m.queueCapacity.Set(float64(capacity)) }
func (m *Manager) RecordQueueEnqueue()              { m.queueEnqueued.Inc() }
func (m *Manager) RecordQueueDequeue()              { m.queueDequeued.Inc() }
func (m *Manager) RecordQueueEnqueueError()         { m.queueEnqueueErrors.Inc() }

func (m *Manager) UpdateWorkerCount(count int) { m.workerCount.Set(float64(count)) }
func (m *Manager) RecordWorkerProcessingLatency(latency float64) {
	m.workerProcessingLatency.Observe(latency)
}
func (m *Manager) RecordWorkerError()               { m.workerErrors.Inc() }
func (m *Manager) RecordEventPublished(kind string) { m.eventsPublished.WithLabelValues(kind).Inc() }
func (m *Manager) RecordEventPublishError(kind string) {
	m.eventsPublishErrors.WithLabelValues(kind).Inc()
}

// RecordStoreQuery observes one database call; failed calls are also counted.
func (m *Manager) RecordStoreQuery(operation string, latencyMs float64, err error) {
	m.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		m.storeErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) IncHTTPInFlight() { m.httpInFlight.Inc() }
func (m *Manager) DecHTTPInFlight() { m.httpInFlight.Dec() }

func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func (m *Manager) RecordErrorByType(errorType, severity string) {
	m.errorsByType.WithLabelValues(errorType, severity).Inc()
}

func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

func (m *Manager) UpdateSystemMemoryUsage(bytes uint64)  { m.systemMemoryUsage.Set(float64(bytes)) }
func (m *Manager) UpdateSystemGoroutineCount(count int)  { m.systemGoroutineCount.Set(float64(count)) }
func (m *Manager) RecordSystemGCPauseTime(pause float64) { m.systemGCPauseTime.Observe(pause) }

// Package-level helpers record on the global manager.

func RecordAnswerScored(score float64, captured bool, latencyMs float64) {
	globalManager.RecordAnswerScored(score, captured, latencyMs)
}
func RecordSubmissionDuplicate()               { globalManager.RecordSubmissionDuplicate() }
func RecordSessionStarted(mode string)         { globalManager.RecordSessionStarted(mode) }
func RecordSessionFinished(mode string)        { globalManager.RecordSessionFinished(mode) }
func RecordAuthAttempt(action, result string)  { globalManager.RecordAuthAttempt(action, result) }
func RecordLeaderboardUpdate()                 { globalManager.RecordLeaderboardUpdate() }
func UpdateLeaderboardPlayers(count int)       { globalManager.UpdateLeaderboardPlayers(count) }
func RecordLeaderboardUpdateLatency(l float64) { globalManager.RecordLeaderboardUpdateLatency(l) }
func RecordLeaderboardQueryLatency(l float64)  { globalManager.RecordLeaderboardQueryLatency(l) }
func UpdateQueueSize(size int)                 { globalManager.UpdateQueueSize(size) }
func UpdateQueueCapacity(capacity int)         { globalManager.UpdateQueueCapacity(capacity) }
func RecordQueueEnqueue()                      { globalManager.RecordQueueEnqueue() }
func RecordQueueDequeue()                      { globalManager.RecordQueueDequeue() }
func RecordQueueEnqueueError()                 { globalManager.RecordQueueEnqueueError() }
func UpdateWorkerCount(count int)              { globalManager.UpdateWorkerCount(count) }
func RecordWorkerProcessingLatency(l float64)  { globalManager.RecordWorkerProcessingLatency(l) }
func RecordWorkerError()                       { globalManager.RecordWorkerError() }
func RecordEventPublished(kind string)         { globalManager.RecordEventPublished(kind) }
func RecordEventPublishError(kind string)      { globalManager.RecordEventPublishError(kind) }
func RecordStoreQuery(op string, l float64, err error) {
	globalManager.RecordStoreQuery(op, l, err)
}
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}
func IncHTTPInFlight() { globalManager.IncHTTPInFlight() }
func DecHTTPInFlight() { globalManager.DecHTTPInFlight() }
func RecordErrorByComponent(component, errType string) {
	globalManager.RecordErrorByComponent(component, errType)
}
func RecordErrorByType(errType, severity string) { globalManager.RecordErrorByType(errType, severity) }
func RecordErrorByEndpoint(endpoint, method, errType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errType)
}
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }
func RecordSystemGCPauseTime(pause float64) {
	globalManager.RecordSystemGCPauseTime(pause)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
