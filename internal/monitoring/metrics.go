// Package monitoring holds the Prometheus metrics for enrichment batches, workspace
// storage and the HTTP API.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	LeadsEnriched  *prometheus.CounterVec
	EnrichDuration prometheus.Histogram
	Batches        *prometheus.CounterVec
	WorkspaceOps   *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// NewMetrics registers every metric on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LeadsEnriched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zuno_leads_enriched_total",
			Help: "Leads processed, by derived AI status",
		}, []string{"status"}), // success, no_match, error
		EnrichDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "zuno_enrich_duration_seconds",
			Help:    "Wall time of one enrichment call including retries",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
		}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zuno_batches_total",
			Help: "Batch runs, by outcome",
		}, []string{"outcome"}), // completed, aborted
		WorkspaceOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zuno_workspace_ops_total",
			Help: "Workspace store operations",
		}, []string{"op", "result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zuno_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zuno_http_request_duration_seconds",
			Help:    "HTTP API latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ObserveLead(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.LeadsEnriched.WithLabelValues(status).Inc()
	m.EnrichDuration.Observe(d.Seconds())
}

func (m *Metrics) IncBatch(outcome string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncWorkspaceOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WorkspaceOps.WithLabelValues(op, result).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
