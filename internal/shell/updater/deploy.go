package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/core/manifest"
	"github.com/glasskube/distr-sub001/internal/core/versioning"
	"go.opentelemetry.io/otel/attribute"
)

// Steps reported in PartialFailureError and the journal.
const (
	StepCreateTarget     = "create_target"
	StepResolveVersion   = "resolve_version"
	StepCreateDeployment = "create_deployment"
	StepCreateAccess     = "create_access"
	StepRefreshTarget    = "refresh_target"
	StepCreateVersion    = "create_version"
)

// =============================================================================
// Create Deployment
// =============================================================================

// CreateDeploymentRequest describes a new target and what to deploy on it.
type CreateDeploymentRequest struct {
	Target        domain.DeploymentTargetRequest `json:"target"`
	ApplicationID string                         `json:"applicationId"`

	// ApplicationVersionID binds directly to this version and skips
	// resolution. Empty selects the latest version.
	ApplicationVersionID string `json:"applicationVersionId,omitempty"`

	ReleaseName string `json:"releaseName,omitempty"`
	ValuesYAML  string `json:"valuesYaml,omitempty"`
}

// Validate checks the request before any remote call.
func (r CreateDeploymentRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.ApplicationID) == "" {
		return domain.NewResolveError("CreateDeployment", "application", "",
			"application id is required", domain.ErrInvalidArgument)
	}
	return nil
}

// CreateDeploymentResult is the re-fetched target and its connect credential.
type CreateDeploymentResult struct {
	DeploymentTarget *domain.DeploymentTarget `json:"deploymentTarget"`
	Access           *domain.AccessCredential `json:"access"`
}

// CreateDeployment creates a deployment target, deploys an application
// version to it and requests connect credentials for it.
//
// The remote mutations are not transactional. A failure after the target was
// created returns a *domain.PartialFailureError naming what was left behind;
// nothing is rolled back.
func (s *Service) CreateDeployment(ctx context.Context, req CreateDeploymentRequest) (_ *CreateDeploymentResult, err error) {
	ctx, span := s.startSpan(ctx, "CreateDeployment",
		attribute.String("distr.application_id", req.ApplicationID),
		attribute.String("distr.target_name", req.Target.Name),
	)
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := domain.JournalEntry{
		Operation:            domain.OperationCreateDeployment,
		ApplicationID:        req.ApplicationID,
		ApplicationVersionID: req.ApplicationVersionID,
	}

	target, err := s.remote.CreateDeploymentTarget(ctx, req.Target)
	if err != nil {
		err = fmt.Errorf("create deployment target: %w", err)
		s.recordFailure(ctx, entry, StepCreateTarget, err)
		return nil, err
	}
	entry.DeploymentTargetID = target.ID
	created := []string{"deployment_target:" + target.ID}

	fail := func(step string, cause error) error {
		s.recordFailure(ctx, entry, step, cause)
		s.logger.Error("create deployment left remote state behind",
			"step", step,
			"created", created,
			"error", cause,
		)
		return &domain.PartialFailureError{
			Op:      "CreateDeployment",
			Step:    step,
			Created: append([]string(nil), created...),
			Err:     cause,
		}
	}

	versionID := req.ApplicationVersionID
	if versionID == "" {
		resolved, err := s.ResolveNewerVersions(ctx, req.ApplicationID, "")
		if err != nil {
			return nil, fail(StepResolveVersion, err)
		}
		latest, ok := versioning.Latest(resolved.Versions)
		if !ok {
			return nil, fail(StepResolveVersion, domain.NewResolveError("CreateDeployment", "application", req.ApplicationID,
				"no versions available", domain.ErrPreconditionFailed))
		}
		versionID = latest.ID
		entry.ApplicationVersionID = versionID
	}

	deployment, err := s.remote.CreateOrUpdateDeployment(ctx, domain.DeploymentRequest{
		DeploymentTargetID:   target.ID,
		ApplicationVersionID: versionID,
		ReleaseName:          req.ReleaseName,
		ValuesYAML:           req.ValuesYAML,
	})
	if err != nil {
		return nil, fail(StepCreateDeployment, fmt.Errorf("create deployment: %w", err))
	}
	entry.DeploymentID = deployment.ID
	created = append(created, "deployment:"+deployment.ID)

	access, err := s.remote.CreateAccessForDeploymentTarget(ctx, target.ID)
	if err != nil {
		return nil, fail(StepCreateAccess, fmt.Errorf("create access: %w", err))
	}
	created = append(created, "access:"+target.ID)

	refreshed, err := s.remote.GetDeploymentTarget(ctx, target.ID)
	if err != nil {
		return nil, fail(StepRefreshTarget, fmt.Errorf("get deployment target %s: %w", target.ID, err))
	}

	entry.Outcome = domain.OutcomeOK
	s.record(ctx, entry)
	s.logger.Info("created deployment",
		"deployment_target_id", target.ID,
		"deployment_id", deployment.ID,
		"application_version_id", versionID,
	)

	return &CreateDeploymentResult{
		DeploymentTarget: refreshed,
		Access:           access,
	}, nil
}

// =============================================================================
// Update Deployment
// =============================================================================

// UpdateDeployment points a target's existing deployment at a new version.
// An empty applicationVersionID selects the most recent newer version; an
// update never stops at an intermediate version. Release name and values of
// the existing deployment are kept.
func (s *Service) UpdateDeployment(ctx context.Context, deploymentTargetID, applicationVersionID string) (_ *domain.Deployment, err error) {
	ctx, span := s.startSpan(ctx, "UpdateDeployment",
		attribute.String("distr.deployment_target_id", deploymentTargetID),
		attribute.String("distr.requested_version_id", applicationVersionID),
	)
	defer func() { endSpan(span, err) }()

	_, current, err := s.deployedTarget(ctx, "UpdateDeployment", deploymentTargetID)
	if err != nil {
		return nil, err
	}

	versionID := applicationVersionID
	if versionID == "" {
		outdated, err := s.IsOutdated(ctx, deploymentTargetID)
		if err != nil {
			return nil, err
		}
		latest, ok := outdated.Latest()
		if !outdated.Outdated || !ok {
			return nil, domain.NewResolveError("UpdateDeployment", "deployment_target", deploymentTargetID,
				"no newer version", domain.ErrPreconditionFailed)
		}
		versionID = latest.ID
	}

	entry := domain.JournalEntry{
		Operation:            domain.OperationUpdateDeployment,
		DeploymentTargetID:   deploymentTargetID,
		DeploymentID:         current.ID,
		ApplicationID:        current.ApplicationID,
		ApplicationVersionID: versionID,
		PreviousVersionID:    current.ApplicationVersionID,
	}

	updated, err := s.remote.CreateOrUpdateDeployment(ctx, domain.DeploymentRequest{
		DeploymentID:         current.ID,
		DeploymentTargetID:   deploymentTargetID,
		ApplicationVersionID: versionID,
		ReleaseName:          current.ReleaseName,
		ValuesYAML:           current.ValuesYAML,
	})
	if err != nil {
		err = fmt.Errorf("update deployment %s: %w", current.ID, err)
		s.recordFailure(ctx, entry, StepCreateDeployment, err)
		return nil, err
	}

	entry.Outcome = domain.OutcomeOK
	s.record(ctx, entry)
	s.logger.Info("updated deployment",
		"deployment_target_id", deploymentTargetID,
		"deployment_id", current.ID,
		"from_version_id", current.ApplicationVersionID,
		"to_version_id", versionID,
	)

	return updated, nil
}

// =============================================================================
// Create Application Version
// =============================================================================

// VersionRequest is a new application version and its files.
type VersionRequest struct {
	Version domain.ApplicationVersion
	Payload domain.VersionPayload
}

// CreateApplicationVersion validates the payload against the application's
// type and uploads it. Invalid payloads fail with ErrInvalidArgument before
// any remote mutation.
func (s *Service) CreateApplicationVersion(ctx context.Context, applicationID string, req VersionRequest) (_ *domain.ApplicationVersion, err error) {
	ctx, span := s.startSpan(ctx, "CreateApplicationVersion",
		attribute.String("distr.application_id", applicationID),
		attribute.String("distr.version_name", req.Version.Name),
	)
	defer func() { endSpan(span, err) }()

	app, err := s.remote.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", applicationID, err)
	}

	if err := manifest.ValidateVersion(app.Type, req.Version, req.Payload); err != nil {
		return nil, fmt.Errorf("validate version %q: %w", req.Version.Name, err)
	}

	entry := domain.JournalEntry{
		Operation:     domain.OperationCreateVersion,
		ApplicationID: applicationID,
		Message:       req.Version.Name,
	}

	req.Version.ApplicationID = applicationID
	created, err := s.remote.CreateApplicationVersion(ctx, applicationID, req.Version, req.Payload)
	if err != nil {
		err = fmt.Errorf("create application version: %w", err)
		s.recordFailure(ctx, entry, StepCreateVersion, err)
		return nil, err
	}

	entry.ApplicationVersionID = created.ID
	entry.Outcome = domain.OutcomeOK
	s.record(ctx, entry)
	s.logger.Info("created application version",
		"application_id", applicationID,
		"version_id", created.ID,
		"version_name", created.Name,
	)

	return created, nil
}

func (s *Service) recordFailure(ctx context.Context, entry domain.JournalEntry, step string, cause error) {
	entry.Outcome = domain.OutcomeFailed
	entry.Step = step
	entry.Message = cause.Error()
	s.record(ctx, entry)
}
