// Package server exposes the research agent over HTTP: JSON chat,
// SSE streaming chat, title generation, and paper listing/download.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/history"
	"github.com/shahryar908/researchy/pkg/logging"
	"github.com/shahryar908/researchy/pkg/metrics"
	"github.com/shahryar908/researchy/pkg/papers"
	"github.com/shahryar908/researchy/pkg/telemetry"
)

// Version reported by the root endpoint.
const Version = "0.1.0"

// Config holds the server's collaborators.
type Config struct {
	// Agent drives chat requests.
	Agent *agent.Agent

	// ModelName is reported in traces and the root endpoint.
	ModelName string

	// TitleModel generates conversation titles. Optional; the fallback
	// title is used without it.
	TitleModel agent.TextModel

	// History loads prior conversation turns. Optional.
	History *history.Loader

	// Index records rendered papers. Optional.
	Index *papers.Index

	// PaperDirs are scanned for listing and download.
	PaperDirs []string

	// Metrics instruments requests. Optional.
	Metrics *metrics.Metrics

	// Tracer spans requests. Optional.
	Tracer *telemetry.Provider

	// CORSOrigins allowed for browser clients. Empty means "*".
	CORSOrigins []string

	// Logger for request handling.
	Logger *slog.Logger
}

// Server handles the research agent's HTTP API.
type Server struct {
	cfg Config
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Server{cfg: cfg}
}

// Handler returns the routed HTTP handler with CORS and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/chat", s.instrument("/api/chat", s.handleChat))
	mux.HandleFunc("/api/chat/stream", s.instrument("/api/chat/stream", s.handleChatStream))
	mux.HandleFunc("/api/generate-title", s.instrument("/api/generate-title", s.handleGenerateTitle))
	mux.HandleFunc("/api/papers/list", s.instrument("/api/papers/list", s.handlePapersList))
	mux.HandleFunc("/api/papers/download/", s.instrument("/api/papers/download", s.handlePapersDownload))
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics.Handler())
	}

	return s.corsMiddleware(mux)
}

// instrument wraps a handler with metrics when configured.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	if s.cfg.Metrics == nil {
		return h
	}
	return s.cfg.Metrics.Middleware(endpoint, h)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := "*"
	if len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] != "" {
		origin = s.cfg.CORSOrigins[0]
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Researchy API",
		"version": Version,
		"model":   s.cfg.ModelName,
		"endpoints": map[string]string{
			"chat":           "POST /api/chat",
			"chat_stream":    "POST /api/chat/stream",
			"generate_title": "POST /api/generate-title",
			"papers_list":    "GET /api/papers/list",
			"paper_download": "GET /api/papers/download/{filename}",
			"health":         "GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "research-agent",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "status_code": status})
}
