// Package http provides the HTTP transport adapter: the gated dataset
// surface, login, health, and the service descriptor.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ridgeline-io/datagate/internal/adapter/outbound/dataset"
	"github.com/ridgeline-io/datagate/internal/service"
)

// serviceDescriptor is the JSON body served at GET /.
type serviceDescriptor struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Datasets []string `json:"datasets"`
}

// loginRequest is the body of POST /login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the success body of POST /login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// dataInfo is the data_info block of a successful dataset response.
type dataInfo struct {
	ColumnsCount       int      `json:"columns_count"`
	ProblematicColumns []string `json:"problematic_columns"`
	OriginalRowCount   int      `json:"original_row_count"`
}

// datasetResponse is the success envelope for GET /<dataset>.
type datasetResponse struct {
	Success       bool                     `json:"success"`
	Table         string                   `json:"table"`
	Data          []map[string]interface{} `json:"data"`
	Count         int                      `json:"count"`
	ExecutionTime float64                  `json:"execution_time"`
	Timestamp     string                   `json:"timestamp"`
	StrategyUsed  string                   `json:"strategy_used"`
	DataInfo      dataInfo                 `json:"data_info"`
}

// failureResponse is the envelope returned on any endpoint failure.
type failureResponse struct {
	Success       bool    `json:"success"`
	Error         string  `json:"error"`
	Details       string  `json:"details"`
	ExecutionTime float64 `json:"execution_time"`
}

// Handler wires the guarded dataset surface and the unguarded
// descriptor/login endpoints into an http.Handler. Health is mounted
// separately by the transport, which owns the HealthChecker.
type Handler struct {
	version  string
	sessions *service.SessionService
	data     *dataset.Gateway
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(version string, sessions *service.SessionService, data *dataset.Gateway, logger *slog.Logger) *Handler {
	return &Handler{version: version, sessions: sessions, data: data, logger: logger}
}

// Mux builds the routed http.Handler, minus /health which the
// transport mounts itself. The caller wraps this with middleware
// (request ID, metrics, gate) before serving.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleDescriptor)
	mux.HandleFunc("POST /login", h.handleLogin)
	for _, name := range dataset.Names {
		mux.HandleFunc("GET /"+name, h.handleDataset(name))
	}
	return mux
}

func (h *Handler) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serviceDescriptor{
		Name:     "datagate",
		Version:  h.version,
		Datasets: dataset.Names,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed request body", err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeFailure(w, http.StatusUnauthorized, "bad credentials", "")
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrBadCredentials) {
			writeFailure(w, http.StatusUnauthorized, "bad credentials", "")
			return
		}
		h.logger.Error("login failed", "error", err, "username", req.Username)
		writeFailure(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		Role:        string(result.Role),
		ExpiresAt:   result.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) handleDataset(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		q, err := parseQuery(r)
		if err != nil {
			writeDatasetFailure(w, http.StatusBadRequest, "invalid query parameters", err.Error(), start)
			return
		}

		rows, err := h.data.Fetch(r.Context(), name, q)
		if err != nil {
			h.logger.Error("dataset read failed", "error", err, "table", name)
			writeDatasetFailure(w, http.StatusInternalServerError, "data read failed", err.Error(), start)
			return
		}

		data := make([]map[string]interface{}, len(rows))
		columns := map[string]struct{}{}
		for i, row := range rows {
			out := make(map[string]interface{}, len(row))
			for col, c := range row {
				out[col] = c.ToJSON()
				columns[col] = struct{}{}
			}
			data[i] = out
		}

		writeJSON(w, http.StatusOK, datasetResponse{
			Success:       true,
			Table:         name,
			Data:          data,
			Count:         len(data),
			ExecutionTime: time.Since(start).Seconds(),
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			StrategyUsed:  "robust_cleaning",
			DataInfo: dataInfo{
				ColumnsCount:       len(columns),
				ProblematicColumns: []string{},
				OriginalRowCount:   len(rows),
			},
		})
	}
}

// parseQuery reads limit/offset/status_filter query parameters.
func parseQuery(r *http.Request) (dataset.Query, error) {
	q := r.URL.Query()
	var query dataset.Query

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return query, errors.New("limit must be a non-negative integer")
		}
		query.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return query, errors.New("offset must be a non-negative integer")
		}
		query.Offset = n
	}
	query.StatusFilter = q.Get("status_filter")
	return query, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeFailure writes the generic {success:false, error, details} envelope
// used by /login and by the Gate Middleware for auth/rate-limit failures.
func writeFailure(w http.ResponseWriter, status int, errMsg, details string) {
	writeJSON(w, status, failureResponse{Success: false, Error: errMsg, Details: details})
}

// writeDatasetFailure is the same envelope with execution_time populated,
// for the GET /<dataset> handlers.
func writeDatasetFailure(w http.ResponseWriter, status int, errMsg, details string, start time.Time) {
	writeJSON(w, status, failureResponse{
		Success:       false,
		Error:         errMsg,
		Details:       details,
		ExecutionTime: time.Since(start).Seconds(),
	})
}
