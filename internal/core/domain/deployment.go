package domain

import (
	"fmt"
	"strings"
)

// =============================================================================
// Deployment Target
// =============================================================================

// DeploymentTarget is an environment an application can be deployed to.
//
// Older hub versions return the current deployment as Deployment, newer ones
// return a Deployments list. CurrentDeployment hides the difference.
type DeploymentTarget struct {
	ID          string         `json:"id"`
	CreatedAt   string         `json:"createdAt,omitempty"`
	Name        string         `json:"name"`
	Type        DeploymentType `json:"type"`
	Namespace   string         `json:"namespace,omitempty"`
	Deployment  *Deployment    `json:"deployment,omitempty"`
	Deployments []Deployment   `json:"deployments,omitempty"`
}

// CurrentDeployment returns the deployment bound to the target, or nil when
// nothing is deployed yet.
func (t *DeploymentTarget) CurrentDeployment() *Deployment {
	if t.Deployment != nil {
		return t.Deployment
	}
	if len(t.Deployments) > 0 {
		d := t.Deployments[0]
		return &d
	}
	return nil
}

// DeploymentTargetRequest describes a deployment target to create.
type DeploymentTargetRequest struct {
	Name      string         `json:"name"`
	Type      DeploymentType `json:"type"`
	Namespace string         `json:"namespace,omitempty"`
}

// Validate checks the request before it is sent to the hub.
func (r DeploymentTargetRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: deployment target name is required", ErrInvalidArgument)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown deployment type %q", ErrInvalidArgument, r.Type)
	}
	return nil
}

// AccessCredential is the one-time connect information for a new target.
type AccessCredential struct {
	ConnectURL   string `json:"connectUrl"`
	TargetID     string `json:"targetId"`
	TargetSecret string `json:"targetSecret"`
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment binds one ApplicationVersion to one DeploymentTarget.
type Deployment struct {
	ID                     string                    `json:"id"`
	CreatedAt              string                    `json:"createdAt,omitempty"`
	DeploymentTargetID     string                    `json:"deploymentTargetId"`
	ApplicationID          string                    `json:"applicationId,omitempty"`
	ApplicationName        string                    `json:"applicationName,omitempty"`
	ApplicationVersionID   string                    `json:"applicationVersionId"`
	ApplicationVersionName string                    `json:"applicationVersionName,omitempty"`
	ReleaseName            string                    `json:"releaseName,omitempty"`
	ValuesYAML             string                    `json:"valuesYaml,omitempty"`
	LatestStatus           *DeploymentRevisionStatus `json:"latestStatus,omitempty"`
}

// DeploymentRequest is the body of a create-or-update deployment call.
// An empty DeploymentID creates a new deployment.
type DeploymentRequest struct {
	DeploymentID         string `json:"deploymentId,omitempty"`
	DeploymentTargetID   string `json:"deploymentTargetId"`
	ApplicationVersionID string `json:"applicationVersionId"`
	ReleaseName          string `json:"releaseName,omitempty"`
	ValuesYAML           string `json:"valuesYaml,omitempty"`
}

// =============================================================================
// Revision Status
// =============================================================================

// StatusType is the outcome of the latest observed rollout.
type StatusType string

const (
	StatusOK          StatusType = "ok"
	StatusProgressing StatusType = "progressing"
	StatusError       StatusType = "error"
)

// DeploymentRevisionStatus is one status report for a deployment.
type DeploymentRevisionStatus struct {
	ID        string     `json:"id"`
	CreatedAt string     `json:"createdAt,omitempty"`
	Type      StatusType `json:"type"`
	Message   string     `json:"message"`
}

// SameAs reports whether two statuses describe the same observable state.
func (s DeploymentRevisionStatus) SameAs(other DeploymentRevisionStatus) bool {
	return s.Type == other.Type && s.Message == other.Message
}
