// Package updater resolves newer application versions for deployment targets
// and drives deployment creation and updates against the hub.
//
// The Service holds no mutable state: every operation re-fetches what it needs
// from the Remote and issues its calls strictly in sequence. Consistency under
// concurrent callers is left to the hub.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/core/versioning"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/glasskube/distr-sub001/internal/shell/updater"

// =============================================================================
// Collaborators
// =============================================================================

// Remote is the hub surface the service depends on. *distr.Client implements
// it.
type Remote interface {
	GetApplication(ctx context.Context, id string) (*domain.Application, error)
	GetDeploymentTarget(ctx context.Context, id string) (*domain.DeploymentTarget, error)
	CreateDeploymentTarget(ctx context.Context, req domain.DeploymentTargetRequest) (*domain.DeploymentTarget, error)
	CreateOrUpdateDeployment(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error)
	CreateAccessForDeploymentTarget(ctx context.Context, targetID string) (*domain.AccessCredential, error)
	CreateApplicationVersion(ctx context.Context, applicationID string, version domain.ApplicationVersion, payload domain.VersionPayload) (*domain.ApplicationVersion, error)
	GetDeploymentStatus(ctx context.Context, deploymentID string) ([]domain.DeploymentRevisionStatus, error)
}

// Recorder receives a record of every mutation the service issues.
type Recorder interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
}

// =============================================================================
// Service
// =============================================================================

// Service implements version resolution and the deployment update flow.
type Service struct {
	remote   Remote
	strategy versioning.Strategy
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder journals every mutation to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithClock overrides the clock used to timestamp journal entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new update service. A nil strategy selects semver.
func NewService(remote Remote, strategy versioning.Strategy, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if strategy == nil {
		strategy = versioning.Semver{}
	}
	s := &Service{
		remote:   remote,
		strategy: strategy,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		logger:   logger.With("component", "updater", "strategy", strategy.Name()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the ordering strategy fixed at construction.
func (s *Service) Strategy() versioning.Strategy {
	return s.strategy
}

// =============================================================================
// Results
// =============================================================================

// NewerVersionsResult is the outcome of ResolveNewerVersions. Versions is
// sorted ascending; the last element is the most recent.
type NewerVersionsResult struct {
	Application *domain.Application         `json:"application"`
	Versions    []domain.ApplicationVersion `json:"newerVersions"`
}

// OutdatedResult is the outcome of IsOutdated.
type OutdatedResult struct {
	DeploymentTarget *domain.DeploymentTarget    `json:"deploymentTarget"`
	Application      *domain.Application         `json:"application"`
	NewerVersions    []domain.ApplicationVersion `json:"newerVersions"`
	Outdated         bool                        `json:"outdated"`
}

// Latest returns the most recent newer version, if any.
func (r *OutdatedResult) Latest() (domain.ApplicationVersion, bool) {
	return versioning.Latest(r.NewerVersions)
}

// StatusResult is the rollout status history of a target's current
// deployment, newest first.
type StatusResult struct {
	DeploymentTarget *domain.DeploymentTarget          `json:"deploymentTarget"`
	Deployment       *domain.Deployment                `json:"deployment"`
	Statuses         []domain.DeploymentRevisionStatus `json:"statuses"`
}

// Latest returns the newest status, if any.
func (r *StatusResult) Latest() (domain.DeploymentRevisionStatus, bool) {
	if len(r.Statuses) == 0 {
		return domain.DeploymentRevisionStatus{}, false
	}
	return r.Statuses[0], true
}

// =============================================================================
// Resolve Newer Versions
// =============================================================================

// ResolveNewerVersions fetches the application and returns its versions that
// are newer than currentVersionID under the service's strategy. An empty
// currentVersionID makes every version a candidate.
func (s *Service) ResolveNewerVersions(ctx context.Context, applicationID, currentVersionID string) (_ *NewerVersionsResult, err error) {
	ctx, span := s.startSpan(ctx, "ResolveNewerVersions",
		attribute.String("distr.application_id", applicationID),
		attribute.String("distr.current_version_id", currentVersionID),
	)
	defer func() { endSpan(span, err) }()

	app, err := s.remote.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", applicationID, err)
	}

	var current *domain.ApplicationVersion
	if currentVersionID != "" {
		v, ok := app.FindVersion(currentVersionID)
		if !ok {
			return nil, domain.NewResolveError("ResolveNewerVersions", "application_version", currentVersionID,
				"given version does not exist in this application", domain.ErrReferenceNotFound)
		}
		current = &v
	}

	newer := versioning.NewerVersions(app.Versions, current, s.strategy)
	span.SetAttributes(attribute.Int("distr.newer_versions", len(newer)))

	return &NewerVersionsResult{
		Application: app,
		Versions:    newer,
	}, nil
}

// =============================================================================
// Is Outdated
// =============================================================================

// IsOutdated reports whether newer versions exist for the version currently
// deployed on a target.
func (s *Service) IsOutdated(ctx context.Context, deploymentTargetID string) (_ *OutdatedResult, err error) {
	ctx, span := s.startSpan(ctx, "IsOutdated",
		attribute.String("distr.deployment_target_id", deploymentTargetID),
	)
	defer func() { endSpan(span, err) }()

	target, current, err := s.deployedTarget(ctx, "IsOutdated", deploymentTargetID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.ResolveNewerVersions(ctx, current.ApplicationID, current.ApplicationVersionID)
	if err != nil {
		return nil, err
	}

	outdated := len(resolved.Versions) > 0
	span.SetAttributes(attribute.Bool("distr.outdated", outdated))

	return &OutdatedResult{
		DeploymentTarget: target,
		Application:      resolved.Application,
		NewerVersions:    resolved.Versions,
		Outdated:         outdated,
	}, nil
}

// =============================================================================
// Deployment Status
// =============================================================================

// DeploymentStatus returns the rollout status history for a target's current
// deployment.
func (s *Service) DeploymentStatus(ctx context.Context, deploymentTargetID string) (_ *StatusResult, err error) {
	ctx, span := s.startSpan(ctx, "DeploymentStatus",
		attribute.String("distr.deployment_target_id", deploymentTargetID),
	)
	defer func() { endSpan(span, err) }()

	target, current, err := s.deployedTarget(ctx, "DeploymentStatus", deploymentTargetID)
	if err != nil {
		return nil, err
	}

	statuses, err := s.remote.GetDeploymentStatus(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("get deployment status %s: %w", current.ID, err)
	}

	return &StatusResult{
		DeploymentTarget: target,
		Deployment:       current,
		Statuses:         statuses,
	}, nil
}

// =============================================================================
// Helpers
// =============================================================================

// deployedTarget fetches a target and its current deployment, failing with
// ErrPreconditionFailed when nothing is deployed.
func (s *Service) deployedTarget(ctx context.Context, op, deploymentTargetID string) (*domain.DeploymentTarget, *domain.Deployment, error) {
	target, err := s.remote.GetDeploymentTarget(ctx, deploymentTargetID)
	if err != nil {
		return nil, nil, fmt.Errorf("get deployment target %s: %w", deploymentTargetID, err)
	}

	current := target.CurrentDeployment()
	if current == nil {
		return nil, nil, domain.NewResolveError(op, "deployment_target", deploymentTargetID,
			"nothing deployed yet", domain.ErrPreconditionFailed)
	}
	return target, current, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "updater."+name,
		trace.WithAttributes(append(attrs, attribute.String("distr.strategy", s.strategy.Name()))...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// record journals entry. Recording failures never fail the operation.
func (s *Service) record(ctx context.Context, entry domain.JournalEntry) {
	if s.recorder == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to journal operation",
			"operation", entry.Operation,
			"deployment_target_id", entry.DeploymentTargetID,
			"error", err,
		)
	}
}
