// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the "handler" label value used to partition metrics by
// the logical endpoint name rather than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests, partitioned by
	// outcome: "ok" or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records the wall-clock duration of each successful
	// /api/ask request: retrieval, analysis, and answer generation combined.
	askDurationSeconds prometheus.Histogram

	// researchRequestsTotal counts completed /api/research requests,
	// partitioned by outcome: "ok" or "error".
	researchRequestsTotal *prometheus.CounterVec

	// researchDurationSeconds records the wall-clock duration of each
	// successful /api/research run, searches and embedding included.
	researchDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curio",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "curio",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful /api/ask requests.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		researchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curio",
			Subsystem: "research",
			Name:      "requests_total",
			Help:      "Total number of /api/research requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		researchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "curio",
			Subsystem: "research",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful /api/research runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "curio",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps next so every request updates the per-handler HTTP
// counters and latency histogram under the given logical name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
