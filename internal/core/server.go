package core

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rollcall/internal/config"
)

// Server is the HTTP chassis for the admin API. It owns the middleware chain,
// the health endpoint, and the versioned route tree; handlers register their
// routes through V1RouteRegistrars before MountRoutes is called.
type Server struct {
	Validator *Validator

	// V1RouteRegistrars are invoked under /v1, inside the authenticated
	// middleware chain. Append before calling MountRoutes.
	V1RouteRegistrars []func(chi.Router)

	cfg    *config.Config
	logger *slog.Logger
	router chi.Router
	pool   *pgxpool.Pool
}

// NewServer creates a Server. The pool may be nil in tests.
func NewServer(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Validator: NewValidator(),
		cfg:       cfg,
		logger:    logger,
		router:    chi.NewRouter(),
		pool:      pool,
	}
}

// MountRoutes assembles the middleware chain and mounts the health endpoint
// and all registered /v1 routes. Call once, after all registrars are added.
func (s *Server) MountRoutes() {
	s.router.Use(Recoverer(s.logger))
	s.router.Use(RequestID)
	s.router.Use(RequestLogger(s.logger))

	// Liveness probe, outside auth.
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.cfg.Security.AdminAPIKey))
		for _, register := range s.V1RouteRegistrars {
			register(r)
		}
	})
}

// Handler returns the assembled http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown releases server-owned resources.
func (s *Server) Shutdown(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
