package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridgeline-io/datagate/internal/service"
)

// HTTPTransport is the inbound adapter that serves the gated dataset
// surface, login, and health/metrics over HTTP.
type HTTPTransport struct {
	handler       *Handler
	sessions      *service.SessionService
	engine        *service.DecisionEngine
	server        *http.Server
	addr          string
	logger        *slog.Logger
	metrics       *Metrics
	healthChecker *HealthChecker
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server. Default is
// "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) { t.addr = addr }
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) { t.logger = logger }
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) { t.healthChecker = hc }
}

// NewHTTPTransport creates an HTTP transport adapter wiring handler,
// sessions (for the Gate Middleware), and the Decision Engine.
func NewHTTPTransport(handler *Handler, sessions *service.SessionService, engine *service.DecisionEngine, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		handler:  handler,
		sessions: sessions,
		engine:   engine,
		addr:     "127.0.0.1:8080",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins accepting HTTP connections. It blocks until the context
// is cancelled or an error occurs.
func (t *HTTPTransport) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(reg)

	// Middleware order (outermost first): metrics wraps everything so
	// duration includes request-ID assignment and the gate; the gate is
	// innermost, wrapping the mux directly, and runs before mux dispatch
	// using the raw request path.
	var debugLog *DecisionDebugLog
	if t.healthChecker != nil {
		debugLog = t.healthChecker.DebugLog()
	}

	guarded := t.handler.Mux()
	var root http.Handler = guarded
	root = GateMiddleware(t.sessions, t.engine, t.metrics, debugLog)(root)
	root = RequestIDMiddleware(t.logger)(root)
	root = MetricsMiddleware(t.metrics)(root)

	if t.healthChecker != nil {
		go t.reportGaugesUntil(ctx)
	}

	mux := http.NewServeMux()
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", root)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// reportGaugesUntil periodically samples the session count and audit
// queue depth into their Prometheus gauges, until ctx is cancelled.
func (t *HTTPTransport) reportGaugesUntil(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var lastDrops int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions, auditDepth, drops := t.healthChecker.Gauges()
			t.metrics.ActiveSessions.Set(float64(sessions))
			t.metrics.AuditQueueDepth.Set(float64(auditDepth))
			if delta := drops - lastDrops; delta > 0 {
				t.metrics.AuditDropsTotal.Add(float64(delta))
			}
			lastDrops = drops
		}
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}
	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
