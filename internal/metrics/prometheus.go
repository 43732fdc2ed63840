// Package metrics provides Prometheus metrics for the screenshot scoring service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	scans          *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	confidence     prometheus.Histogram
	warnings       prometheus.Histogram
	preparedBytes  prometheus.Histogram
	resizedImages  prometheus.Counter
	rateLimited    prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDurationMs *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager

// Custom registry to avoid colliding with anything else on the default one.
var customRegistry = prometheus.NewRegistry()

func init() {
	customRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "wingspan",
		subsystem:      "scores",
		latencyBuckets: []float64{5, 25, 100, 250, 1000, 5000, 15000, 30000, 60000, 120000},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scans = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scans_total",
		Help:      "Screenshot scans by outcome (ok or an error code)",
	}, []string{"outcome"})

	m.stageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_latency_milliseconds",
		Help:      "Latency of each pipeline stage in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"stage"})

	m.confidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "confidence",
		Help:      "Confidence of successful extractions",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	m.warnings = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warnings_per_scan",
		Help:      "Number of review warnings per successful extraction",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	m.preparedBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prepared_image_bytes",
		Help:      "Size of the image sent to the vision service",
		Buckets:   prometheus.ExponentialBuckets(64<<10, 2, 8),
	})

	m.resizedImages = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "resized_images_total",
		Help:      "Uploads that had to be shrunk to fit the transport ceiling",
	})

	m.rateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limited_total",
		Help:      "Uploads rejected by the per-caller rate limit",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"route", "method", "status"})

	m.httpDurationMs = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"route", "method"})
}

// RecordScan counts one finished scan; outcome is "ok" or an error code.
func RecordScan(outcome string) {
	globalManager.scans.WithLabelValues(outcome).Inc()
}

// RecordStageLatency records one stage's latency in milliseconds.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordConfidence records the confidence of a successful extraction.
func RecordConfidence(confidence float64) {
	globalManager.confidence.Observe(confidence)
}

// RecordWarnings records how many warnings an extraction produced.
func RecordWarnings(count int) {
	globalManager.warnings.Observe(float64(count))
}

// RecordPreparedImage records the outgoing image size and whether it was resized.
func RecordPreparedImage(bytes int, resized bool) {
	globalManager.preparedBytes.Observe(float64(bytes))
	if resized {
		globalManager.resizedImages.Inc()
	}
}

// RecordRateLimited increments the rate-limited uploads counter.
func RecordRateLimited() {
	globalManager.rateLimited.Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, method, status string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(route, method, status).Inc()
	globalManager.httpDurationMs.WithLabelValues(route, method).Observe(durationMs)
}

// GetRegistry returns the registry the global collectors live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the global registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
