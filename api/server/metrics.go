package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exoplanet_api_http_requests_total",
		Help: "HTTP requests by method, path pattern, and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exoplanet_api_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	wsConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "exoplanet_api_ws_connections",
		Help: "Open WebSocket connections per group.",
	}, []string{"group"})

	wsMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exoplanet_api_ws_messages_total",
		Help: "WebSocket messages processed per group.",
	}, []string{"group"})
)

// MetricsHandler serves the prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Metrics records request counts and latency per route pattern. The pattern
// is read after routing so parameterized paths like /planets/{name} stay one
// label value instead of one per planet.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
