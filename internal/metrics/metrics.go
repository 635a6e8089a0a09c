// Package metrics exposes Prometheus instrumentation for search sessions and
// the HTTP transport.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "treefind"

// Metrics records search session activity. It implements search.Observer.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	matchesTotal      *prometheus.CounterVec
	nodesScanned      prometheus.Counter
	nodesSkipped      *prometheus.CounterVec
	replacementsTotal *prometheus.CounterVec
	activeSessions    prometheus.Gauge

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of search operations",
			},
			[]string{"op", "outcome"}, // outcome: match / none / cancelled
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Search operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_total",
				Help:      "Total number of reported matches",
			},
			[]string{"op"},
		),
		nodesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_scanned_total",
			Help:      "Total number of nodes searched",
		}),
		nodesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_skipped_total",
				Help:      "Total number of nodes or objects left out of a search",
			},
			[]string{"reason"},
		),
		replacementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replacements_total",
				Help:      "Total number of applied replacements",
			},
			[]string{"kind"},
		),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open search sessions",
		}),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.matchesTotal,
		m.nodesScanned,
		m.nodesSkipped,
		m.replacementsTotal,
		m.activeSessions,
		m.httpRequestDuration,
		m.httpRequestsTotal,
	)
	return m
}

// OperationDone records a finished session operation.
func (m *Metrics) OperationDone(op string, matches int, elapsed time.Duration, cancelled bool) {
	outcome := "none"
	switch {
	case cancelled:
		outcome = "cancelled"
	case matches > 0:
		outcome = "match"
	}
	m.operationsTotal.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	m.matchesTotal.WithLabelValues(op).Add(float64(matches))
}

func (m *Metrics) NodeScanned() {
	m.nodesScanned.Inc()
}

func (m *Metrics) NodeSkipped(reason string) {
	m.nodesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Replaced(kind string) {
	m.replacementsTotal.WithLabelValues(kind).Inc()
}

// SessionOpened and SessionClosed track the number of live sessions.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// Middleware records HTTP request duration and count.
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.status)

			// Use chi route pattern for path normalization
			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
			m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush lets streaming responses through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
