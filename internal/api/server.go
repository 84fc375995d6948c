// Package api exposes the HTTP surface: the chainhook webhook, the activity
// feed, the 7-day summary, and health.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"cypher-activity/internal/chainhook"
	"cypher-activity/internal/domain"
	"cypher-activity/internal/ingest"
	"cypher-activity/internal/observability"
	"cypher-activity/internal/storage"
)

const (
	secretHeader = "x-chainhook-secret"

	defaultFeedLimit = 50
	summaryWindow    = 7 * 24 * time.Hour
)

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	store     storage.ActivityStore
	processor *ingest.Processor
	secret    string
	logger    *zap.Logger
}

// Options contains configuration for creating a Server.
type Options struct {
	Store     storage.ActivityStore
	Processor *ingest.Processor
	Secret    string
	Logger    *zap.Logger
}

// New creates the API server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		store:     opts.Store,
		processor: opts.Processor,
		secret:    opts.Secret,
		logger:    logger,
	}
}

// Handler returns the instrumented route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/chainhook", s.handleChainhookWebhook)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/activity/summary/{address}", s.handleActivitySummary)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())

	return instrument(mux)
}

// handleChainhookWebhook ingests one chainhook delivery. The secret check
// runs before the body is touched; validation and processing failures both
// surface as a generic 500, which existing webhook senders rely on for
// retries.
func (s *Server) handleChainhookWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(secretHeader) != s.secret {
		s.logger.Warn("invalid chainhook secret")
		observability.RecordWebhook("unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("read webhook body", zap.Error(err))
		observability.RecordWebhook("error")
		writeInternalError(w)
		return
	}

	payload, err := chainhook.DecodePayload(body)
	if err != nil {
		s.logger.Error("invalid webhook payload", zap.Error(err))
		observability.RecordWebhook("invalid")
		writeInternalError(w)
		return
	}

	if err := s.processor.Process(r.Context(), payload); err != nil {
		s.logger.Error("process webhook payload", zap.Error(err))
		observability.RecordWebhook("error")
		writeInternalError(w)
		return
	}

	observability.RecordWebhook("ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleActivity returns the recent activity feed, optionally scoped to one
// address.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")

	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events, err := s.store.ListRecent(r.Context(), address, limit)
	if err != nil {
		s.logger.Error("fetch activity", zap.Error(err), zap.String("address", address))
		writeInternalError(w)
		return
	}
	if events == nil {
		events = []*domain.ActivityEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

// handleActivitySummary returns 7-day activity counts for one address.
func (s *Server) handleActivitySummary(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	since := time.Now().Add(-summaryWindow)

	summary, err := s.store.Summarize(r.Context(), address, since)
	if err != nil {
		s.logger.Error("fetch activity summary", zap.Error(err), zap.String("address", address))
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// healthResponse keeps the legacy "mongodb" field name for wire
// compatibility regardless of which backend serves the store.
type healthResponse struct {
	Status  string `json:"status"`
	MongoDB string `json:"mongodb"`
}

// handleHealth reports store reachability as data, never as an error
// response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", MongoDB: "ok"}
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("store health check failed", zap.Error(err))
		resp = healthResponse{Status: "unhealthy", MongoDB: "error"}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and latency per method and route.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
