package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/trackmeet/core/pkg/handlers/health"
	jobshandler "github.com/trackmeet/core/pkg/handlers/jobs"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/middleware"
)

// Server is the admin HTTP surface: health, job listing and manual triggers
type Server struct {
	router   *http.ServeMux
	http     *http.Server
	port     string
	logger   *logger.Logger
	handlers struct {
		health *health.Handler
		jobs   *jobshandler.Handler
	}
}

// New creates a new server instance. scheduler may be nil.
func New(port string, runner jobshandler.Runner, scheduler health.SchedulerView, log *logger.Logger) *Server {
	if port == "" {
		port = "8080"
	}

	server := &Server{
		router: http.NewServeMux(),
		port:   port,
		logger: log,
	}

	server.handlers.health = health.NewHandler(runner, scheduler, log)
	server.handlers.jobs = jobshandler.NewHandler(runner, log)

	server.setupRoutes()

	server.http = &http.Server{
		Addr:              ":" + port,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", middleware.CORS(s.handlers.health.HealthCheck))

	// Simple root endpoint
	s.router.HandleFunc("/{$}", middleware.CORS(func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintf(w, "Trackmeet Core - OK"); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
		}
	}))

	// Jobs endpoints
	s.router.HandleFunc("GET /api/jobs", middleware.CORS(s.handlers.jobs.List))
	s.router.HandleFunc("POST /api/jobs/{name}/trigger", middleware.CORS(s.handlers.jobs.Trigger))
	s.router.HandleFunc("OPTIONS /api/jobs/{name}/trigger", middleware.CORS(s.handlers.jobs.Trigger))
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("port", s.port).
		Msg("Starting admin server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start on port %s: %w", s.port, err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().
		Str("action", "server_shutdown").
		Msg("Shutting down admin server")
	return s.http.Shutdown(ctx)
}
