package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/glasskube/distr-sub001/internal/shell/api"
	"github.com/glasskube/distr-sub001/internal/shell/metrics"
	"github.com/glasskube/distr-sub001/internal/shell/workers"
)

// =============================================================================
// Server
// =============================================================================

// Server runs the local update API and the background workers.
type Server struct {
	config        *Config
	httpServer    *http.Server
	statusPoller  *workers.StatusPoller
	updateWatcher *workers.UpdateWatcher
	logger        *slog.Logger
}

// NewServer creates a new server on top of an initialized app.
func NewServer(a *app) *Server {
	cfg := a.config
	logger := a.logger
	m := metrics.New()

	apiCfg := api.Config{
		Resolver: a.service,
		Metrics:  m,
		Strategy: a.service.Strategy().Name(),
		Token:    cfg.Server.Token,
		Logger:   logger,
	}
	var recorder workers.Recorder
	if a.journal != nil {
		apiCfg.Journal = a.journal
		recorder = a.journal
	}
	if cfg.Server.Token == "" {
		logger.Warn("server.token is not set, the API accepts unauthenticated requests")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewHandler(apiCfg).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	s := &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     logger,
	}

	if len(cfg.Watch.Targets) > 0 {
		s.statusPoller = workers.NewStatusPoller(a.service, cfg.Watch.Targets, recorder, m, workers.StatusPollerConfig{
			Interval:      cfg.Watch.StatusInterval,
			MaxConcurrent: cfg.Watch.MaxConcurrent,
		}, logger)

		s.updateWatcher = workers.NewUpdateWatcher(a.service, cfg.Watch.Targets, m, workers.UpdateWatcherConfig{
			Interval:      cfg.Watch.Interval,
			MaxConcurrent: cfg.Watch.MaxConcurrent,
			AutoUpdate:    cfg.Watch.AutoUpdate,
		}, logger)

		logger.Info("watching deployment targets",
			"targets", cfg.Watch.Targets,
			"auto_update", cfg.Watch.AutoUpdate,
		)
	}

	return s
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return &ExitError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	}

	if s.statusPoller != nil {
		s.statusPoller.Start()
	}
	if s.updateWatcher != nil {
		s.updateWatcher.Start()
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
		return &ExitError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.updateWatcher != nil {
		s.updateWatcher.Stop()
	}
	if s.statusPoller != nil {
		s.statusPoller.Stop()
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess            = 0
	ExitFailure            = 1
	ExitConfigError        = 2
	ExitDatabaseError      = 3
	ExitRemoteError        = 4
	ExitHTTPServerError    = 5
	ExitNotFound           = 6
	ExitPreconditionFailed = 7
	ExitInvalidArgument    = 8
)

// ExitError carries the process exit code for a failed step.
type ExitError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ExitError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
