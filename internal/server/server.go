// Package server exposes attribute parsing, identifiers and download planning over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/localizer"
	"github.com/agleyzer/hlslocalizer/internal/metrics"
	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClusterStatus is the view of the Raft node the server reports and routes writes by.
type ClusterStatus interface {
	State() string
	IsLeader() bool
	LeaderAddr() string
}

// Server serves the HTTP API.
type Server struct {
	store      registry.Store
	localizer  *localizer.Localizer
	cluster    ClusterStatus
	port       int
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new HTTP server. cluster may be nil when the registry is not replicated.
func New(store registry.Store, loc *localizer.Localizer, cluster ClusterStatus, port int, logger *slog.Logger) *Server {
	return &Server{
		store:     store,
		localizer: loc,
		cluster:   cluster,
		port:      port,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	}

	// Graceful shutdown
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the request router with all routes and middleware registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/attributes", s.handleAttributes).Methods(http.MethodPost)
	r.HandleFunc("/identifier", s.handleIdentifier).Methods(http.MethodGet)

	r.HandleFunc("/items", s.handleAddItem).Methods(http.MethodPost)
	r.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", s.handleGetItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", s.handleRemoveItem).Methods(http.MethodDelete)
	r.HandleFunc("/items/{id}/state", s.handleSetState).Methods(http.MethodPut)
	r.HandleFunc("/items/{id}/tasks", s.handleTasks).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}/tasks/complete", s.handleCompleteTask).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}/master.m3u8", s.handleMaster).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}/{kind:video|audio|text}/{name}", s.handleMedia).Methods(http.MethodGet)

	r.Use(s.loggingMiddleware)

	return r
}

// loggingMiddleware logs HTTP requests and records request metrics by route template.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", duration,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
