// Package metrics provides Prometheus instrumentation for Researchy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for Researchy.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ToolInvocations *prometheus.CounterVec
	ModelTurns      *prometheus.HistogramVec
	PapersRendered  prometheus.Counter
	ActiveRequests  prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all Researchy metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// Include default Go and process collectors
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchy_requests_total",
				Help: "Total HTTP requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "researchy_request_duration_seconds",
				Help:    "HTTP request latency distribution.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		ToolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchy_tool_invocations_total",
				Help: "Total agent tool invocations by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		ModelTurns: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "researchy_model_turns",
				Help:    "Model round trips taken per chat request.",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
			[]string{"endpoint"},
		),
		PapersRendered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "researchy_papers_rendered_total",
				Help: "Total PDFs successfully rendered.",
			},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "researchy_active_requests",
				Help: "Number of requests currently being processed.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ToolInvocations,
		m.ModelTurns,
		m.PapersRendered,
		m.ActiveRequests,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request's metrics.
func (m *Metrics) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTool records one tool invocation.
func (m *Metrics) RecordTool(tool string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ToolInvocations.WithLabelValues(tool, outcome).Inc()
}

// RecordChat records agent loop stats for a completed chat request.
func (m *Metrics) RecordChat(endpoint string, turns int) {
	m.ModelTurns.WithLabelValues(endpoint).Observe(float64(turns))
}

// Middleware returns an HTTP middleware that instruments requests.
func (m *Metrics) Middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r)

		m.RecordRequest(endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
// Flush is forwarded so SSE streaming keeps working when wrapped.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
