// Package metrics provides Prometheus instrumentation for the analytics engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AggregationsTotal counts dashboard computations, partitioned by view.
	AggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelens_aggregations_total",
		Help: "Total number of aggregations computed",
	}, []string{"view"})

	// AggregationLatency tracks how long one aggregation pass takes.
	AggregationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradelens_aggregation_latency_seconds",
		Help:    "Aggregation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})

	// CacheHits counts dashboard results served from the cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelens_cache_hits_total",
		Help: "Dashboard results served from the cache",
	})

	// CacheMisses counts dashboard results that had to be computed.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelens_cache_misses_total",
		Help: "Dashboard results computed on a cache miss",
	})

	// DatasetRecords is the number of records loaded at startup.
	DatasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradelens_dataset_records",
		Help: "Number of trade records in the loaded dataset",
	})

	// WebSocketSessions tracks open dashboard WebSocket sessions.
	WebSocketSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradelens_websocket_sessions",
		Help: "Number of open WebSocket dashboard sessions",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelens_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradelens_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveAggregation records one computation of view started at start.
func ObserveAggregation(view string, start time.Time) {
	AggregationsTotal.WithLabelValues(view).Inc()
	AggregationLatency.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over connections behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
