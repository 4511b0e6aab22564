package workers

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/shell/updater"
)

// StatusSource returns the rollout status history of a target's current
// deployment. *updater.Service implements it.
type StatusSource interface {
	DeploymentStatus(ctx context.Context, deploymentTargetID string) (*updater.StatusResult, error)
}

// StatusPollerConfig configures the status poller worker.
type StatusPollerConfig struct {
	// Interval is the time between polls.
	// Default: 5 seconds.
	Interval time.Duration

	// TargetTimeout bounds a single target's poll.
	// Default: 10 seconds.
	TargetTimeout time.Duration

	// MaxConcurrent is the maximum number of targets polled concurrently.
	// Default: 5.
	MaxConcurrent int
}

// DefaultStatusPollerConfig returns the default configuration.
func DefaultStatusPollerConfig() StatusPollerConfig {
	return StatusPollerConfig{
		Interval:      5 * time.Second,
		TargetTimeout: 10 * time.Second,
		MaxConcurrent: 5,
	}
}

// StatusPoller refetches the latest rollout status of a fixed set of
// deployment targets at a fixed interval. It reports a target only when its
// latest status type or message changes. Polling is not synchronized with
// updates.
type StatusPoller struct {
	source   StatusSource
	recorder Recorder
	observer Observer
	targets  []string
	config   StatusPollerConfig
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]domain.DeploymentRevisionStatus

	loop periodic
}

// NewStatusPoller creates a new status poller. recorder and observer may be
// nil.
func NewStatusPoller(
	source StatusSource,
	targets []string,
	recorder Recorder,
	observer Observer,
	config StatusPollerConfig,
	logger *slog.Logger,
) *StatusPoller {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	if config.TargetTimeout <= 0 {
		config.TargetTimeout = 10 * time.Second
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

	p := &StatusPoller{
		source:   source,
		recorder: recorder,
		observer: observer,
		targets:  append([]string(nil), targets...),
		config:   config,
		logger:   logger.With("component", "status_poller"),
		last:     make(map[string]domain.DeploymentRevisionStatus),
	}
	p.loop = periodic{interval: config.Interval, cycle: p.runCycle}
	return p
}

// Start begins polling in a background goroutine.
func (p *StatusPoller) Start() {
	p.loop.start()
	p.logger.Info("status poller started",
		"interval", p.config.Interval,
		"targets", len(p.targets),
	)
}

// Stop stops polling and waits for an in-progress cycle to finish.
func (p *StatusPoller) Stop() {
	p.loop.stop()
	p.logger.Info("status poller stopped")
}

// Snapshot returns the latest status seen per target.
func (p *StatusPoller) Snapshot() map[string]domain.DeploymentRevisionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.last)
}

func (p *StatusPoller) runCycle(ctx context.Context) {
	if len(p.targets) == 0 {
		p.logger.Debug("no targets to poll")
		return
	}
	forEachTarget(ctx, p.targets, p.config.MaxConcurrent, p.config.TargetTimeout, p.pollTarget)
}

func (p *StatusPoller) pollTarget(ctx context.Context, targetID string) {
	logger := p.logger.With("deployment_target_id", targetID)

	result, err := p.source.DeploymentStatus(ctx, targetID)
	if err != nil {
		if domain.IsPreconditionFailed(err) {
			logger.Debug("nothing deployed yet")
			return
		}
		logger.Warn("failed to poll deployment status", "error", err)
		return
	}

	latest, ok := result.Latest()
	if !ok {
		logger.Debug("no status reported yet")
		return
	}

	p.mu.Lock()
	previous, seen := p.last[targetID]
	changed := !seen || !previous.SameAs(latest)
	p.last[targetID] = latest
	p.mu.Unlock()

	if !changed {
		return
	}

	p.observer.StatusObserved(targetID, latest.Type)
	if latest.Type == domain.StatusError {
		logger.Warn("deployment status changed", "type", latest.Type, "message", latest.Message)
	} else {
		logger.Info("deployment status changed", "type", latest.Type, "message", latest.Message)
	}

	if p.recorder != nil {
		entry := domain.JournalEntry{
			Operation:            domain.OperationStatusChange,
			Outcome:              domain.OutcomeOK,
			DeploymentTargetID:   targetID,
			DeploymentID:         result.Deployment.ID,
			ApplicationID:        result.Deployment.ApplicationID,
			ApplicationVersionID: result.Deployment.ApplicationVersionID,
			Message:              fmt.Sprintf("%s: %s", latest.Type, latest.Message),
		}
		if err := p.recorder.Record(ctx, entry); err != nil {
			logger.Warn("failed to journal status change", "error", err)
		}
	}
}
