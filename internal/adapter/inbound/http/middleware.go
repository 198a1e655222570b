package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ridgeline-io/datagate/internal/ctxkey"
	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
	"github.com/ridgeline-io/datagate/internal/domain/session"
	"github.com/ridgeline-io/datagate/internal/service"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// LoggerKey is the context key for the enriched logger.
// Uses shared key type from ctxkey package to allow cross-package access without import cycles.
var LoggerKey = ctxkey.LoggerKey{}

// sessionContextKey is the context key under which the Gate Middleware
// stores the resolved session for guarded requests.
type sessionContextKey struct{}

// SessionKey is the context key for the resolved session.
var SessionKey = sessionContextKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the logger.
// The request ID is stored in context using RequestIDKey.
// An enriched logger with request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// SessionFromContext retrieves the session the Gate Middleware resolved
// for this request. Only set on guarded paths.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*session.Session)
	return sess, ok
}

// defaultUnguardedPaths is the skip-list of endpoints that require
// neither a bearer token nor a Decision Engine call.
var defaultUnguardedPaths = map[string]bool{
	"/":       true,
	"/health": true,
	"/login":  true,
}

// GateMiddleware implements the Gate Middleware (C7): bearer token
// extraction and resolution, then the Decision Engine verdict, for
// every request outside the unguarded skip-list.
func GateMiddleware(sessions *service.SessionService, engine *service.DecisionEngine, metrics *Metrics, debugLog *DecisionDebugLog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if defaultUnguardedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeFailure(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}

			sess, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				detail := "invalid token"
				if errors.Is(err, service.ErrExpiredToken) {
					detail = "token expired"
				}
				writeFailure(w, http.StatusUnauthorized, detail, "")
				return
			}

			verdict, err := engine.Decide(r.Context(), sess.Username, string(sess.Role), r.URL.Path)
			if err != nil {
				LoggerFromContext(r.Context()).Error("decision engine error", "error", err, "username", sess.Username, "endpoint", r.URL.Path)
				writeFailure(w, http.StatusInternalServerError, "internal error", "")
				return
			}

			if metrics != nil {
				metrics.DecisionsTotal.WithLabelValues(string(verdict.Decision), verdict.RuleSource).Inc()
			}
			if debugLog != nil {
				debugLog.Record(sess.Username, r.URL.Path, string(verdict.Decision), verdict.RuleSource, time.Now())
			}

			if verdict.Decision == ratelimit.DecisionBlock {
				status := http.StatusTooManyRequests
				if verdict.Kind == ratelimit.KindKVUnavailable {
					status = http.StatusServiceUnavailable
				}
				writeFailure(w, status, http.StatusText(status), blockDetail(verdict))
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// blockDetail renders a human-readable reason including the remaining
// block duration, per spec's "detail describing remaining seconds".
func blockDetail(v *service.Verdict) string {
	if v.Kind == ratelimit.KindKVUnavailable {
		return "rate limit store unavailable"
	}
	if v.RuleSource == "manual_block" {
		return "manually blocked, retry after " + strconv.Itoa(v.RetryAfterSec) + "s"
	}
	return "rate limited, retry after " + strconv.Itoa(v.RetryAfterSec) + "s"
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
