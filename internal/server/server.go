// Package server provides the HTTP REST API for the transcription service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
	"github.com/jonathan/sheet-transcriber/internal/jobs"
	"github.com/jonathan/sheet-transcriber/internal/server/middleware"
	"github.com/jonathan/sheet-transcriber/internal/server/ratelimit"
)

// Lifecycle is the set of job operations the API exposes.
type Lifecycle interface {
	Submit(ctx context.Context, name string, content []byte) (jobs.Snapshot, error)
	Process(ctx context.Context, id string) (jobs.Snapshot, error)
	Inspect(ctx context.Context, id string) (jobs.Snapshot, error)
	Dispose(ctx context.Context, id string) error
	RetrieveArtifact(ctx context.Context, id string, role artifacts.Role) (*jobs.Artifact, error)
	Stats() jobs.Stats
}

// Pinger reports whether an optional dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	jobs           Lifecycle
	history        Pinger
	rateLimiter    *ratelimit.Limiter
	logger         *slog.Logger
	maxUploadBytes int64
	startedAt      time.Time
}

// Config holds server configuration
type Config struct {
	Port           int
	CORSOrigins    []string
	MaxUploadBytes int64
	RateLimit      *ratelimit.Config
	// History is reported on the health endpoint when set.
	History Pinger
	Logger  *slog.Logger
}

// New creates a new server instance
func New(lc Lifecycle, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = artifacts.DefaultMaxUploadBytes
	}

	s := &Server{
		jobs:           lc,
		history:        cfg.History,
		rateLimiter:    ratelimit.NewLimiter(cfg.RateLimit),
		logger:         logger,
		maxUploadBytes: maxUpload,
		startedAt:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/transcribe/{id}", s.handleTranscribe)
	mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/download/{id}/{file_type}", s.handleDownload)
	mux.HandleFunc("DELETE /api/transcription/{id}", s.handleDelete)

	handler := middleware.RequestID(s.withRateLimit(s.withLogging(s.withCORS(mux, cfg.CORSOrigins))))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,  // Large uploads
		WriteTimeout:      30 * time.Minute, // Process blocks until the conversion finishes
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	defer s.rateLimiter.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) withCORS(next http.Handler, origins []string) http.Handler {
	return middleware.CORS(origins)(next)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return middleware.Logging(s.logger)(next)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID uses the connection's IP address. Forwarded headers are
// ignored since they are client controlled.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.logger.Warn("rate limit exceeded",
		"client", s.extractClientID(r),
		"path", r.URL.Path,
		"limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// handleRoot returns a banner
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"message":   "Audio-to-Sheet-Music Transcription API",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Timestamp string     `json:"timestamp"`
	Uptime    string     `json:"uptime"`
	Host      string     `json:"host,omitempty"`
	History   string     `json:"history"`
	Stats     jobs.Stats `json:"stats"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "healthy",
		Message:   "API is operational",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Host:      host,
		History:   "disabled",
		Stats:     s.jobs.Stats(),
	}

	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.history.Ping(ctx); err != nil {
			s.logger.Warn("event history unreachable", "error", err)
			resp.History = "unavailable"
		} else {
			resp.History = "ok"
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
