package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/goaps/internal/adjust"
	"github.com/me/goaps/internal/config"
	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/lifecycle"
	"github.com/me/goaps/internal/publish"
	"github.com/me/goaps/internal/store"
)

// HealthReporter exposes the monitor's view of engine reachability.
type HealthReporter interface {
	Healthy() bool
}

// Server is the GoAPS REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	jobs      *lifecycle.Manager
	adjuster  *adjust.Engine
	publisher *publish.Coordinator
	engine    engine.Adapter
	health    HealthReporter
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithHealthReporter sets the engine health source for /health. Without it
// the server pings the engine directly on each health request.
func WithHealthReporter(h HealthReporter) Option {
	return func(s *Server) {
		s.health = h
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, jobs *lifecycle.Manager, adjuster *adjust.Engine, publisher *publish.Coordinator, eng engine.Adapter, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		jobs:      jobs,
		adjuster:  adjuster,
		publisher: publisher,
		engine:    eng,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(actorMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleCreateJob)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Delete("/", s.handleDeleteJob)
				r.Post("/run", s.handleRunJob)
				r.Post("/stop", s.handleStopJob)
				r.Post("/solve", s.handleSolveJob)
				r.Get("/plans", s.handleListJobPlans)
			})
		})

		r.Route("/plans/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPlan)
			r.Get("/buckets", s.handleListPlanBuckets)
			r.Get("/gantt", s.handlePlanGantt)
			r.Get("/conflicts", s.handleListPlanConflicts)
			r.Get("/stat", s.handleGetPlanStat)
			r.Get("/adjust-log", s.handleListAdjustLog)
			r.Post("/adjust", s.handleAdjustPlan)
			r.Post("/publish", s.handlePublishPlan)
			r.Post("/discard", s.handleDiscardPlan)
			r.Post("/copy", s.handleCopyPlan)
			r.Post("/set-best", s.handleSetBestPlan)
		})

		r.Get("/engine/jobs", s.handleListEngineJobs)
	})
}
