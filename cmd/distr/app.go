package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/versioning"
	"github.com/glasskube/distr-sub001/internal/shell/distr"
	"github.com/glasskube/distr-sub001/internal/shell/journal"
	"github.com/glasskube/distr-sub001/internal/shell/telemetry"
	"github.com/glasskube/distr-sub001/internal/shell/updater"
)

// app holds the collaborators shared by every command.
type app struct {
	config  *Config
	logger  *slog.Logger
	client  *distr.Client
	service *updater.Service

	// journal is nil when journal.enabled is false.
	journal *journal.SQLiteJournal

	shutdownTracer telemetry.ShutdownFunc
}

// newApp wires the hub client, the journal and the update service.
func newApp(cfg *Config, logger *slog.Logger, stderr io.Writer) (*app, error) {
	a := &app{config: cfg, logger: logger}

	if cfg.Trace.Enabled {
		shutdown, err := telemetry.InitTracer("distr", Version, stderr, cfg.Trace.Pretty)
		if err != nil {
			return nil, &ExitError{Op: "InitTracer", Err: err, ExitCode: ExitConfigError}
		}
		a.shutdownTracer = shutdown
	}

	strategy, err := versioning.New(cfg.Strategy)
	if err != nil {
		a.Close()
		return nil, &ExitError{Op: "newApp", Err: err, ExitCode: ExitConfigError}
	}

	a.client = distr.NewClient(distr.Config{
		BaseURL: cfg.Hub.URL,
		Token:   cfg.Hub.Token,
		Timeout: cfg.Hub.Timeout,
	}, logger)

	var opts []updater.Option
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.DSN)
		if err != nil {
			a.Close()
			return nil, &ExitError{Op: "OpenJournal", Err: err, ExitCode: ExitDatabaseError}
		}
		a.journal = j
		opts = append(opts, updater.WithRecorder(j))
	}

	a.service = updater.NewService(a.client, strategy, logger, opts...)

	logger.Debug("initialized",
		"hub_url", a.client.BaseURL(),
		"strategy", strategy.Name(),
		"journal", cfg.Journal.Enabled,
	)
	return a, nil
}

// Close flushes spans and closes the journal.
func (a *app) Close() {
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("tracer shutdown error", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("journal close error", "error", err)
		}
	}
}
