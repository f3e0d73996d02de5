// Package server assembles the HTTP surface and owns its lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/proxy/handlers"
	"mercator-hq/saturn/pkg/proxy/middleware"
	"mercator-hq/saturn/pkg/state"
	"mercator-hq/saturn/pkg/telemetry/metrics"
)

// adminTimeout bounds the admin endpoints. Message endpoints carry no
// outer deadline: streams run for minutes and each provider attempt is
// bounded by its own timeout.
const adminTimeout = 30 * time.Second

// Server is the proxy's HTTP server. Routes read runtime state through
// the cell, so a config reload changes behavior without touching the
// server or its listener.
type Server struct {
	config     *config.Config
	cell       *state.Cell
	dispatcher handlers.Dispatcher
	metrics    *metrics.Collector
	version    string

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates the server. The listen address comes from cfg and is fixed
// for the server's lifetime; reloads that change it only take effect on
// restart.
func New(cfg *config.Config, cell *state.Cell, dispatcher handlers.Dispatcher, collector *metrics.Collector, version string) *Server {
	return &Server{
		config:       cfg,
		cell:         cell,
		dispatcher:   dispatcher,
		metrics:      collector,
		version:      version,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until a shutdown signal, a
// context cancellation, a Shutdown call, or a listener error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.Proxy.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Proxy.ReadTimeout,
		WriteTimeout:   s.config.Proxy.WriteTimeout,
		IdleTimeout:    s.config.Proxy.IdleTimeout,
		MaxHeaderBytes: s.config.Proxy.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting proxy server",
			"address", s.config.Proxy.ListenAddress,
			"version", s.version,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server, waiting up to the configured
// shutdown timeout for in-flight requests. Idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Proxy.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Proxy.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("proxy server stopped")
	})

	return shutdownErr
}

// Stop requests an asynchronous shutdown from another goroutine.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the route table with the middleware chain applied. The
// admin endpoints additionally run under a request deadline.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/messages", handlers.NewMessagesHandler(s.dispatcher))
	mux.Handle("/v1/messages/count_tokens", handlers.NewCountTokensHandler(s.dispatcher))

	admin := middleware.TimeoutMiddleware(adminTimeout)
	mux.Handle("/api/config", admin(handlers.NewConfigHandler(s.cell)))
	mux.Handle("/api/reload", admin(handlers.NewReloadHandler(s.cell)))

	health := s.config.Telemetry.Health
	mux.Handle(fallbackPath(health.LivenessPath, "/health"), handlers.NewHealthHandler(s.version))
	mux.Handle(fallbackPath(health.ReadinessPath, "/health/ready"), handlers.NewReadyHandler(s.cell))

	mux.Handle(fallbackPath(s.config.Telemetry.Metrics.Path, "/metrics"), s.metrics.Handler())

	bodyLimit := s.config.Proxy.MaxBodyBytes
	if bodyLimit <= 0 {
		bodyLimit = config.DefaultMaxBodyBytes
	}

	var handler http.Handler = mux
	handler = middleware.BodyLimitMiddleware(bodyLimit)(handler)
	handler = middleware.CORSMiddleware(s.config.Proxy.CORS)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// fallbackPath covers callers that skipped ApplyDefaults, like tests
// building a Config literal.
func fallbackPath(configured, def string) string {
	if configured != "" {
		return configured
	}
	return def
}
