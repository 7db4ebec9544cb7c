package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/keyservice/internal/api/handler"
	"github.com/edvin/keyservice/internal/api/request"
	"github.com/edvin/keyservice/internal/api/response"
	mw "github.com/edvin/keyservice/internal/api/middleware"
	"github.com/edvin/keyservice/internal/config"
	"github.com/edvin/keyservice/internal/core"
)

type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	store       core.KeyStore
	keys        *core.KeyService
	cfg         *config.Config
	auditLogger *mw.AuditLogger
}

func NewServer(logger zerolog.Logger, store core.KeyStore, cfg *config.Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		store:       store,
		keys:        core.NewKeyService(store, cfg.KeyTTL),
		cfg:         cfg,
		auditLogger: mw.NewAuditLogger(logger),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Served by the dedicated metrics listener when one is configured.
	if s.cfg.MetricsListenAddr == "" {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(request.MaxBodyBytes))
		r.Use(s.auditLogger.Middleware)
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			response.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		})

		key := handler.NewKey(s.keys)
		r.Post("/generate-key", key.Generate)
		r.Post("/verify-key", key.Verify)
	})

	static := staticHandler{staticDir: s.cfg.StaticDir}
	s.router.Method(http.MethodGet, "/*", static)
	s.router.Method(http.MethodHead, "/*", static)

	// Outside /api there are only static files, so any other method is a miss.
	s.router.MethodNotAllowed(http.NotFound)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReadyz reports whether the key table can be read. A missing file is
// fine; it is created on the first generate.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if _, err := s.store.Load(ctx); err != nil && !errors.Is(err, fs.ErrNotExist) {
		checks["key_store"] = err.Error()
		healthy = false
	} else {
		checks["key_store"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Close flushes the audit log. Call it after the HTTP server has shut down.
func (s *Server) Close() {
	s.auditLogger.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
