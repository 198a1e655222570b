package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway. Pass to
// components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	DecisionsTotal  *prometheus.CounterVec
	AuditDropsTotal prometheus.Counter
	AuditQueueDepth prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datagate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datagate",
				Name:      "active_sessions",
				Help:      "Number of live sessions in the registry",
			},
		),
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "decisions_total",
				Help:      "Total Decision Engine verdicts",
			},
			[]string{"decision", "rule_source"}, // decision=allow/block
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "audit_drops_total",
				Help:      "Total audit events dropped due to a full queue",
			},
		),
		AuditQueueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datagate",
				Name:      "audit_queue_depth",
				Help:      "Current depth of the async audit write queue",
			},
		),
	}
}
