package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/shell/updater"
)

// UpdateChecker is the part of *updater.Service the watcher uses.
type UpdateChecker interface {
	IsOutdated(ctx context.Context, deploymentTargetID string) (*updater.OutdatedResult, error)
	UpdateDeployment(ctx context.Context, deploymentTargetID, applicationVersionID string) (*domain.Deployment, error)
}

// UpdateWatcherConfig configures the update watcher worker.
type UpdateWatcherConfig struct {
	// Interval is the time between update checks.
	// Default: 5 minutes.
	Interval time.Duration

	// TargetTimeout bounds the check and update of a single target.
	// Default: 30 seconds.
	TargetTimeout time.Duration

	// MaxConcurrent is the maximum number of targets checked concurrently.
	// Default: 5.
	MaxConcurrent int

	// AutoUpdate updates outdated targets to their latest version.
	AutoUpdate bool
}

// DefaultUpdateWatcherConfig returns the default configuration.
func DefaultUpdateWatcherConfig() UpdateWatcherConfig {
	return UpdateWatcherConfig{
		Interval:      5 * time.Minute,
		TargetTimeout: 30 * time.Second,
		MaxConcurrent: 5,
	}
}

// UpdateWatcher periodically checks watched deployment targets for newer
// versions and, with AutoUpdate, moves outdated ones to the latest version.
type UpdateWatcher struct {
	checker  UpdateChecker
	observer Observer
	targets  []string
	config   UpdateWatcherConfig
	logger   *slog.Logger

	loop periodic
}

// NewUpdateWatcher creates a new update watcher. observer may be nil.
func NewUpdateWatcher(
	checker UpdateChecker,
	targets []string,
	observer Observer,
	config UpdateWatcherConfig,
	logger *slog.Logger,
) *UpdateWatcher {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.TargetTimeout <= 0 {
		config.TargetTimeout = 30 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 5
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &UpdateWatcher{
		checker:  checker,
		observer: observer,
		targets:  append([]string(nil), targets...),
		config:   config,
		logger:   logger.With("component", "update_watcher"),
	}
	w.loop = periodic{interval: config.Interval, cycle: w.runCycle}
	return w
}

// Start begins checking in a background goroutine.
func (w *UpdateWatcher) Start() {
	w.loop.start()
	w.logger.Info("update watcher started",
		"interval", w.config.Interval,
		"targets", len(w.targets),
		"auto_update", w.config.AutoUpdate,
	)
}

// Stop stops checking and waits for an in-progress cycle to finish.
func (w *UpdateWatcher) Stop() {
	w.loop.stop()
	w.logger.Info("update watcher stopped")
}

func (w *UpdateWatcher) runCycle(ctx context.Context) {
	if len(w.targets) == 0 {
		w.logger.Debug("no targets to check")
		return
	}
	forEachTarget(ctx, w.targets, w.config.MaxConcurrent, w.config.TargetTimeout, w.checkTarget)
}

func (w *UpdateWatcher) checkTarget(ctx context.Context, targetID string) {
	logger := w.logger.With("deployment_target_id", targetID)

	result, err := w.checker.IsOutdated(ctx, targetID)
	if err != nil {
		w.observer.CheckCompleted(targetID, false, err)
		if domain.IsPreconditionFailed(err) {
			logger.Debug("skipping target", "reason", err)
			return
		}
		logger.Warn("update check failed", "error", err)
		return
	}
	w.observer.CheckCompleted(targetID, result.Outdated, nil)

	latest, ok := result.Latest()
	if !result.Outdated || !ok {
		logger.Debug("deployment is up to date")
		return
	}

	logger.Info("newer version available",
		"latest_version_id", latest.ID,
		"latest_version", latest.Name,
		"newer_versions", len(result.NewerVersions),
	)

	if !w.config.AutoUpdate {
		return
	}

	updated, err := w.checker.UpdateDeployment(ctx, targetID, "")
	w.observer.UpdateApplied(targetID, err)
	if err != nil {
		if domain.IsPreconditionFailed(err) {
			logger.Info("skipping update", "reason", err)
			return
		}
		logger.Error("automatic update failed", "error", err)
		return
	}
	logger.Info("automatically updated deployment",
		"deployment_id", updated.ID,
		"application_version_id", updated.ApplicationVersionID,
	)
}
