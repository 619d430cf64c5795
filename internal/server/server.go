package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/config"
	apperrors "github.com/searchprobe/searchprobe/internal/errors"
	"github.com/searchprobe/searchprobe/internal/observability"
	servermw "github.com/searchprobe/searchprobe/internal/server/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Config   config.ServerConfig
	Sessions *SessionManager
	// CountryCode and LocationBased are the search defaults for the session API.
	CountryCode   string
	LocationBased bool
	// AdminToken enables POST /admin/signal when set.
	AdminToken string
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	opts     Options
	sessions *SessionManager
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	s := &Server{
		router:   r,
		opts:     opts,
		sessions: opts.Sessions,
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	cfg := s.opts.Config
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 60*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 120*time.Second),
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	if s.sessions != nil {
		defer s.sessions.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured server port
func (s *Server) Port() int {
	return s.opts.Config.Port
}

func notFound(w http.ResponseWriter, r *http.Request) {
	apperrors.RespondWithError(w, r, apperrors.NewNotFoundError("no route for "+r.URL.Path))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apperrors.RespondWithError(w, r, apperrors.NewMethodNotAllowedError(r.Method+" is not allowed on "+r.URL.Path))
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
