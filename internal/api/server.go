package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/foundry/internal/config"
	"github.com/seantiz/foundry/internal/events"
	"github.com/seantiz/foundry/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// ProcessManager starts and stops the external training, export and
// calibration processes.
type ProcessManager interface {
	StartProcess(command []string, logPath string) (int, error)
	StopProcess(pid int) bool
	IsRunning(pid int) bool
}

// ProcessTracker registers export and calibration runs with the job monitor
// so their logs are tailed and completion events broadcast.
type ProcessTracker interface {
	Track(pid int, jobType, name, logPath string)
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router  *chi.Mux
	cfg     config.Config
	store   store.Store
	proc    ProcessManager
	tracker ProcessTracker
	broker  *events.Broker
	logger  *slog.Logger
}

// NewServer creates and configures a new HTTP server.
func NewServer(cfg config.Config, s store.Store, proc ProcessManager, tracker ProcessTracker, broker *events.Broker, logger *slog.Logger) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		store:   s,
		proc:    proc,
		tracker: tracker,
		broker:  broker,
		logger:  logger,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/events", s.handleEvents)

	s.router.Route("/v1/train", func(r chi.Router) {
		r.Post("/", s.handleStartTraining)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
		r.Post("/{id}/stop", s.handleStopJob)
		r.Get("/{id}/logs", s.handleGetJobLogs)
	})

	s.router.Route("/v1/models", func(r chi.Router) {
		r.Get("/", s.handleListModels)
		r.Get("/{name}/download", s.handleDownloadModel)
		r.Post("/{name}/export", s.handleExportModel)
		r.Post("/{name}/calibrate", s.handleCalibrateModel)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes v as a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
