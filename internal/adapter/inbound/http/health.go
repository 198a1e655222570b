package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ridgeline-io/datagate/internal/adapter/outbound/dataset"
	"github.com/ridgeline-io/datagate/internal/adapter/outbound/memory"
	"github.com/ridgeline-io/datagate/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status          string            `json:"status"` // "healthy" or "unhealthy"
	Checks          map[string]string `json:"checks"`
	Version         string            `json:"version,omitempty"`
	RecentDecisions []decisionRecord  `json:"recent_decisions,omitempty"`
}

// HealthChecker verifies component health: the session registry, the
// audit queue, and a trivial read against the data store.
type HealthChecker struct {
	sessions *memory.SessionStore
	audit    *service.AuditService
	data     *dataset.Gateway
	version  string
	timeout  time.Duration
	debug    *DecisionDebugLog
}

// NewHealthChecker creates a HealthChecker. Pass nil for components
// not wired (tests).
func NewHealthChecker(sessions *memory.SessionStore, audit *service.AuditService, data *dataset.Gateway, version string) *HealthChecker {
	return &HealthChecker{
		sessions: sessions,
		audit:    audit,
		data:     data,
		version:  version,
		timeout:  2 * time.Second,
		debug:    NewDecisionDebugLog(),
	}
}

// DebugLog returns the health checker's decision debug log, for the
// Gate Middleware to record into.
func (h *HealthChecker) DebugLog() *DecisionDebugLog {
	return h.debug
}

// Check performs health checks on all components.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.sessions != nil {
		checks["session_store"] = fmt.Sprintf("ok: %d sessions", h.sessions.Size())
	} else {
		checks["session_store"] = "not configured"
	}

	if h.audit != nil {
		depth := h.audit.QueueDepth()
		capacity := h.audit.QueueCapacity()
		percentFull := 0
		if capacity > 0 {
			percentFull = depth * 100 / capacity
		}
		if percentFull > 90 {
			checks["audit"] = fmt.Sprintf("degraded: %d/%d (%d%%)", depth, capacity, percentFull)
			healthy = false
		} else {
			checks["audit"] = fmt.Sprintf("ok: %d/%d (%d%%)", depth, capacity, percentFull)
		}
		if drops := h.audit.DroppedEvents(); drops > 0 {
			checks["audit_drops"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["audit"] = "not configured"
	}

	if h.data != nil {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := h.data.Ping(pingCtx); err != nil {
			checks["data_store"] = "unreachable: " + err.Error()
			healthy = false
		} else {
			checks["data_store"] = "ok"
		}
	} else {
		checks["data_store"] = "not configured"
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return HealthResponse{Status: status, Checks: checks, Version: h.version}
}

// Gauges returns the current session count, audit queue depth, and
// cumulative dropped-event count, for the transport's periodic
// Prometheus gauge updates.
func (h *HealthChecker) Gauges() (sessions, auditDepth int, auditDrops int64) {
	if h.sessions != nil {
		sessions = h.sessions.Size()
	}
	if h.audit != nil {
		auditDepth = h.audit.QueueDepth()
		auditDrops = h.audit.DroppedEvents()
	}
	return sessions, auditDepth, auditDrops
}

// Handler returns an HTTP handler for the unguarded /health endpoint.
// Passing ?debug=1 additionally includes the most recent per-user
// decisions recorded by the Gate Middleware.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())
		if r.URL.Query().Get("debug") != "" && h.debug != nil {
			health.RecentDecisions = h.debug.Recent(20)
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
}
