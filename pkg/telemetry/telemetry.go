// Package telemetry exposes Prometheus metrics for the HTTP surface and
// the fan-out/outbox pipelines, plus the middleware that feeds them.
// Slow requests additionally get a structured log line.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"parley/pkg/logger"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_http_requests_total",
		Help: "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parley_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_sent_total",
		Help: "Messages accepted into rooms.",
	})

	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_notifications_delivered_total",
		Help: "Notifications handed to subscriber buffers.",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_notifications_dropped_total",
		Help: "Notifications dropped on full subscriber buffers.",
	})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_live_subscribers",
		Help: "Currently connected notification subscribers.",
	})

	OutboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_outbox_queue_depth",
		Help: "Records staged in the outbox queue.",
	})
)

var slowThreshold = 200 * time.Millisecond

// SetSlowThreshold sets the duration above which a request gets a
// structured slow log line.
func SetSlowThreshold(d time.Duration) {
	if d > 0 {
		slowThreshold = d
	}
}

// Middleware records request counts and latency per route. Route should
// be the mux route template, not the raw path, to keep cardinality flat.
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		requestsTotal.WithLabelValues(r.Method, route, statusClass(srw.status)).Inc()
		requestDuration.WithLabelValues(route).Observe(dur.Seconds())
		if dur > slowThreshold {
			logger.Warn("slow_request", "method", r.Method, "route", route, "duration_ms", dur.Milliseconds(), "status", srw.status)
		}
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
