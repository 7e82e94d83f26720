// Package httpadapter exposes the daemon's HTTP surface: health, readiness,
// metrics, and the location endpoints.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/whereami/internal/domain"
)

// LocationResolver is the resolver surface the server needs.
type LocationResolver interface {
	Resolve(ctx context.Context, useCache, forceRefresh bool) (domain.LocationResult, error)
	ClearCache()
	CheckReadiness(ctx context.Context) error
}

// Server exposes health, readiness, metrics, and location HTTP endpoints.
type Server struct {
	httpServer *http.Server
	resolver   LocationResolver
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, resolver LocationResolver, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		resolver: resolver,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /location", s.handleLocation)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /cache", s.handleClearCache)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.resolver.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLocation serves the current location, from cache when fresh.
// ?cache=false forces a full resolution cycle.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	useCache := r.URL.Query().Get("cache") != "false"
	s.resolve(w, r, useCache, false)
}

// handleRefresh bypasses the cache and runs a fresh cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, false, true)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, useCache, forceRefresh bool) {
	res, err := s.resolver.Resolve(r.Context(), useCache, forceRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrAllProvidersExhausted) {
			// The failure result still carries the reason and consulted list.
			writeJSON(w, http.StatusServiceUnavailable, res)
			return
		}
		s.logger.Error("resolve request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.resolver.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
