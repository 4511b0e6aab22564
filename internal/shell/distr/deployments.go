package distr

import (
	"context"
	"net/http"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// =============================================================================
// Deployment Target Operations
// =============================================================================

// ListDeploymentTargets returns all deployment targets visible to the token.
func (c *Client) ListDeploymentTargets(ctx context.Context) ([]domain.DeploymentTarget, error) {
	var targets []domain.DeploymentTarget
	if err := c.doJSON(ctx, http.MethodGet, "/deployment-targets", nil, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// GetDeploymentTarget returns a target including its current deployment.
func (c *Client) GetDeploymentTarget(ctx context.Context, id string) (*domain.DeploymentTarget, error) {
	var target domain.DeploymentTarget
	if err := c.doJSON(ctx, http.MethodGet, "/deployment-targets/"+escape(id), nil, &target); err != nil {
		return nil, err
	}
	return &target, nil
}

// CreateDeploymentTarget creates a new, empty deployment target.
func (c *Client) CreateDeploymentTarget(ctx context.Context, req domain.DeploymentTargetRequest) (*domain.DeploymentTarget, error) {
	var target domain.DeploymentTarget
	if err := c.doJSON(ctx, http.MethodPost, "/deployment-targets", req, &target); err != nil {
		return nil, err
	}
	return &target, nil
}

// CreateAccessForDeploymentTarget requests connect credentials for a target.
func (c *Client) CreateAccessForDeploymentTarget(ctx context.Context, targetID string) (*domain.AccessCredential, error) {
	var access domain.AccessCredential
	path := "/deployment-targets/" + escape(targetID) + "/access-request"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &access); err != nil {
		return nil, err
	}
	return &access, nil
}

// =============================================================================
// Deployment Operations
// =============================================================================

// CreateOrUpdateDeployment creates a deployment, or updates the one named by
// req.DeploymentID.
func (c *Client) CreateOrUpdateDeployment(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error) {
	var deployment domain.Deployment
	if err := c.doJSON(ctx, http.MethodPut, "/deployments", req, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// GetDeploymentStatus returns the status history of a deployment, newest
// first.
func (c *Client) GetDeploymentStatus(ctx context.Context, deploymentID string) ([]domain.DeploymentRevisionStatus, error) {
	var statuses []domain.DeploymentRevisionStatus
	path := "/deployments/" + escape(deploymentID) + "/status"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
