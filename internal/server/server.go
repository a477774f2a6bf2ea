package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/careline/internal/api/v1"
	"github.com/gosuda/careline/internal/api/ws"
	"github.com/gosuda/careline/internal/config"
	"github.com/gosuda/careline/internal/server/middleware"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Dashboard v1.Dashboard
	Sync      v1.TaskSync
	Timeline  v1.Timeline
	Hub       *ws.Hub
	Health    map[string]Pinger // e.g. "store", "redis"
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
}

// New creates a Server with all routes wired. ctx bounds background work
// owned by the middleware stack.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger())
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", middleware.ViewerHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	router.Use(middleware.Viewer())

	s := &Server{
		router: router,
		deps:   deps,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst, middleware.ByViewer))

		apiConfig := huma.DefaultConfig("Careline API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, deps)
	})

	if deps.Hub != nil {
		router.Route("/ws", func(r chi.Router) {
			registerWSRoutes(r, deps.Hub)
		})
	}

	router.Get("/healthz", s.health)

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	report := healthReport{Status: "ok", Checks: make(map[string]string, len(s.deps.Health))}
	code := http.StatusOK
	for name, p := range s.deps.Health {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("health check failed")
			report.Checks[name] = "unavailable"
			report.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		report.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
