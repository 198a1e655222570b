package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alexedwards/argon2id"

	"github.com/ridgeline-io/datagate/internal/adapter/outbound/dataset"
	"github.com/ridgeline-io/datagate/internal/adapter/outbound/memory"
	"github.com/ridgeline-io/datagate/internal/domain/auth"
	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
	"github.com/ridgeline-io/datagate/internal/domain/session"
	"github.com/ridgeline-io/datagate/internal/service"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDatasetGateway(t *testing.T) *dataset.Gateway {
	t.Helper()
	dsn := "file::memory:?cache=shared"

	seed, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open seed connection: %v", err)
	}
	t.Cleanup(func() { _ = seed.Close() })

	if _, err := seed.Exec(`CREATE TABLE CARTEIRA_LOGISTICA (ID INTEGER, STATUS TEXT, QTY REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := seed.Exec(`INSERT INTO CARTEIRA_LOGISTICA (ID, STATUS, QTY) VALUES (1, 'OPEN', 10.5), (2, 'CLOSED', 3)`); err != nil {
		t.Fatalf("seed rows: %v", err)
	}

	g, err := dataset.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

type testEnv struct {
	mux          http.Handler
	sessions     *service.SessionService
	sessionStore *memory.SessionStore
	creds        *memory.CredentialStore
}

func newTestEnv(t *testing.T, policies []ratelimit.Policy) *testEnv {
	t.Helper()

	creds := memory.NewCredentialStore()
	hash, err := argon2id.CreateHash("correct horse", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("CreateHash() error: %v", err)
	}
	creds.Put(auth.Credential{Username: "alice", PasswordHash: hash, Role: auth.RoleUser, Active: true})

	sessionStore := memory.NewSessionStore()
	sessions := service.NewSessionService(creds, sessionStore, silentLogger())

	policyStore := memory.NewPolicyStore()
	policyStore.SetPolicies(policies)
	counters := memory.NewCounterStore()
	conditions, err := ratelimit.NewConditionEvaluator()
	if err != nil {
		t.Fatalf("NewConditionEvaluator() error: %v", err)
	}
	audit := service.NewAuditService(&noopAuditWriter{}, silentLogger())
	fallback := ratelimit.FallbackPolicy{Enabled: true, WindowSec: 3600, MaxCalls: 1, BlockSec: 10800}
	engine := service.NewDecisionEngine(policyStore, service.NewPolicyCache(policyStore, time.Minute, silentLogger()), counters, conditions, audit, fallback, silentLogger())

	gw := newTestDatasetGateway(t)
	handler := NewHandler("test", sessions, gw, silentLogger())

	var root http.Handler = handler.Mux()
	root = GateMiddleware(sessions, engine, nil, nil)(root)
	root = RequestIDMiddleware(silentLogger())(root)

	return &testEnv{mux: root, sessions: sessions, sessionStore: sessionStore, creds: creds}
}

type noopAuditWriter struct{}

func (noopAuditWriter) AppendEvent(ctx context.Context, event ratelimit.AuditEvent) error { return nil }

func (e *testEnv) login(t *testing.T, username, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec.Result()
}

func TestHandler_Descriptor_Unguarded(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var desc serviceDescriptor
	if err := json.NewDecoder(rec.Body).Decode(&desc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(desc.Datasets) != len(dataset.Names) {
		t.Errorf("len(Datasets) = %d, want %d", len(desc.Datasets), len(dataset.Names))
	}
}

func TestHandler_Login_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.login(t, "alice", "correct horse")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AccessToken == "" {
		t.Error("AccessToken is empty")
	}
	if body.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want bearer", body.TokenType)
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.login(t, "alice", "wrong password")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var body failureResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success {
		t.Error("Success = true, want false")
	}
}

func TestHandler_Dataset_NoToken(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/carteira-logistica", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandler_Dataset_ValidToken_Success(t *testing.T) {
	env := newTestEnv(t, []ratelimit.Policy{
		{ID: 1, Level: ratelimit.LevelUser, Username: "alice", WindowSec: 60, MaxCalls: 10, BlockSec: 60, Enabled: true, Priority: 10, UpdatedAt: time.Now()},
	})
	loginResp := env.login(t, "alice", "correct horse")
	var login loginResponse
	_ = json.NewDecoder(loginResp.Body).Decode(&login)
	loginResp.Body.Close()

	req := httptest.NewRequest(http.MethodGet, "/carteira-logistica", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var body datasetResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success {
		t.Error("Success = false, want true")
	}
	if body.Count != 2 {
		t.Errorf("Count = %d, want 2", body.Count)
	}
	if body.StrategyUsed != "robust_cleaning" {
		t.Errorf("StrategyUsed = %q, want robust_cleaning", body.StrategyUsed)
	}
}

func TestHandler_Dataset_RateLimited(t *testing.T) {
	env := newTestEnv(t, []ratelimit.Policy{
		{ID: 1, Level: ratelimit.LevelUser, Username: "alice", WindowSec: 60, MaxCalls: 1, BlockSec: 120, Enabled: true, Priority: 10, UpdatedAt: time.Now()},
	})
	loginResp := env.login(t, "alice", "correct horse")
	var login loginResponse
	_ = json.NewDecoder(loginResp.Body).Decode(&login)
	loginResp.Body.Close()

	authed := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/carteira-logistica", nil)
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		return rec
	}

	if rec := authed(); rec.Code != http.StatusOK {
		t.Fatalf("request 1: status = %d, want 200", rec.Code)
	}
	rec := authed()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request 2: status = %d, want 429, body=%s", rec.Code, rec.Body.String())
	}
	var body failureResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success {
		t.Error("Success = true, want false")
	}
}

func TestHandler_Dataset_ExpiredToken(t *testing.T) {
	env := newTestEnv(t, nil)

	expired := &session.Session{
		Token:     "tok-expired",
		Username:  "alice",
		Role:      auth.RoleUser,
		CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := env.sessionStore.Create(context.Background(), expired); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/carteira-logistica", nil)
	req.Header.Set("Authorization", "Bearer tok-expired")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
