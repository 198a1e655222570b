package http

import (
	"net/http"
	"strconv"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code
// written, since the standard library does not expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware records request counts and durations. Skips /metrics
// and /health to avoid polluting request metrics with scraping traffic.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start).Seconds()
			metrics.RequestsTotal.WithLabelValues(r.Method, routeLabel(r), strconv.Itoa(rec.status)).Inc()
			metrics.RequestDuration.WithLabelValues(r.Method, routeLabel(r)).Observe(duration)
		})
	}
}

// routeLabel collapses dataset paths into a single cardinality-bounded
// label rather than one Prometheus series per table name.
func routeLabel(r *http.Request) string {
	switch r.URL.Path {
	case "/", "/login", "/health":
		return r.URL.Path
	default:
		return "/{dataset}"
	}
}
