// Package observability provides Prometheus metrics, OpenTelemetry
// tracing, and in-memory operation tracking for the server.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Namespace defaults to "mcp".
	Namespace string

	// HistogramBuckets for request latency, in milliseconds.
	HistogramBuckets []float64
}

// Metrics holds the server's Prometheus collectors. It registers on
// its own registry so tests can create providers independently.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	batchSize        prometheus.Histogram
	toolCallDuration *prometheus.HistogramVec
	toolCallTotal    *prometheus.CounterVec
	resourceOpTotal  *prometheus.CounterVec
	errorTotal       *prometheus.CounterVec
	sseClients       prometheus.Gauge
	activeSessions   prometheus.Gauge
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}

	constLabels := prometheus.Labels{
		"service":     config.ServiceName,
		"version":     config.ServiceVersion,
		"environment": config.Environment,
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Name:        "request_duration_milliseconds",
		Help:        "Duration of JSON-RPC requests in milliseconds",
		Buckets:     config.HistogramBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "status"})

	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "request_total",
		Help:        "Total number of JSON-RPC requests",
		ConstLabels: constLabels,
	}, []string{"method", "status"})

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Name:        "batch_duration_milliseconds",
		Help:        "Duration of JSON-RPC batch requests in milliseconds",
		Buckets:     config.HistogramBuckets,
		ConstLabels: constLabels,
	})

	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Name:        "batch_size",
		Help:        "Size of JSON-RPC batch requests",
		Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
		ConstLabels: constLabels,
	})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Name:        "tool_call_duration_milliseconds",
		Help:        "Duration of tool executions in milliseconds",
		Buckets:     config.HistogramBuckets,
		ConstLabels: constLabels,
	}, []string{"tool", "status"})

	m.toolCallTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "tool_call_total",
		Help:        "Total number of tool executions",
		ConstLabels: constLabels,
	}, []string{"tool", "status"})

	m.resourceOpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "resource_operation_total",
		Help:        "Total number of resource store operations",
		ConstLabels: constLabels,
	}, []string{"operation", "status"})

	m.errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "error_total",
		Help:        "Total number of errors by code",
		ConstLabels: constLabels,
	}, []string{"code"})

	m.sseClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Name:        "sse_clients",
		Help:        "Number of connected SSE clients",
		ConstLabels: constLabels,
	})

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Name:        "active_sessions",
		Help:        "Number of live sessions",
		ConstLabels: constLabels,
	})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Name:        "http_request_duration_milliseconds",
		Help:        "Duration of HTTP requests in milliseconds",
		Buckets:     config.HistogramBuckets,
		ConstLabels: constLabels,
	}, []string{"path", "method", "status"})

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.batchDuration, m.batchSize,
		m.toolCallDuration, m.toolCallTotal,
		m.resourceOpTotal, m.errorTotal,
		m.sseClients, m.activeSessions,
		m.httpDuration,
	)
	return m
}

// RecordRequest records one JSON-RPC method dispatch.
func (m *Metrics) RecordRequest(_ context.Context, method, status string, duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000
	m.requestDuration.WithLabelValues(method, status).Observe(ms)
	m.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordBatch records one JSON-RPC batch.
func (m *Metrics) RecordBatch(_ context.Context, size int, duration time.Duration) {
	m.batchDuration.Observe(float64(duration.Microseconds()) / 1000)
	m.batchSize.Observe(float64(size))
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(_ context.Context, tool, status string, duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000
	m.toolCallDuration.WithLabelValues(tool, status).Observe(ms)
	m.toolCallTotal.WithLabelValues(tool, status).Inc()
}

// RecordResourceOperation records one store/get/delete on the resource
// manager.
func (m *Metrics) RecordResourceOperation(_ context.Context, operation, status string) {
	m.resourceOpTotal.WithLabelValues(operation, status).Inc()
}

// RecordError counts an error by its code.
func (m *Metrics) RecordError(_ context.Context, code string) {
	m.errorTotal.WithLabelValues(code).Inc()
}

// SetSSEClients updates the connected client gauge.
func (m *Metrics) SetSSEClients(n int) {
	m.sseClients.Set(float64(n))
}

// SetActiveSessions updates the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// RecordHTTPRequest records one HTTP request by route.
func (m *Metrics) RecordHTTPRequest(path, method, status string, duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000
	m.httpDuration.WithLabelValues(path, method, status).Observe(ms)
}

// Handler returns the /metrics endpoint for this provider's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
