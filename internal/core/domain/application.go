// Package domain contains the hub's data model and the error classes shared by
// the resolver, the hub client and the API layer.
// This is part of the Functional Core - no I/O happens here.
package domain

import (
	"fmt"
	"strings"
)

// =============================================================================
// Deployment Type
// =============================================================================

// DeploymentType is the packaging format of an application and the runtime
// kind of a deployment target. The set is closed.
type DeploymentType string

const (
	DeploymentTypeDocker     DeploymentType = "docker"
	DeploymentTypeKubernetes DeploymentType = "kubernetes"
)

// ParseDeploymentType returns the DeploymentType for s, case-insensitively.
func ParseDeploymentType(s string) (DeploymentType, error) {
	t := DeploymentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown deployment type %q (want docker or kubernetes)", ErrInvalidArgument, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known deployment types.
func (t DeploymentType) Valid() bool {
	return t == DeploymentTypeDocker || t == DeploymentTypeKubernetes
}

// =============================================================================
// Application
// =============================================================================

// Application is a deployable product with its versions. The hub does not
// guarantee any order for Versions.
type Application struct {
	ID        string               `json:"id"`
	CreatedAt string               `json:"createdAt,omitempty"`
	Name      string               `json:"name"`
	Type      DeploymentType       `json:"type"`
	Versions  []ApplicationVersion `json:"versions,omitempty"`
}

// FindVersion returns the version with the given ID, or false.
func (a *Application) FindVersion(id string) (ApplicationVersion, bool) {
	for _, v := range a.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return ApplicationVersion{}, false
}

// ChartType is the kind of helm chart source for kubernetes versions.
type ChartType string

const (
	ChartTypeRepository ChartType = "repository"
	ChartTypeOCI        ChartType = "oci"
)

// ApplicationVersion is one named, timestamped release of an Application.
//
// CreatedAt is kept exactly as sent by the hub; the chronological strategy
// decides how to compare it.
type ApplicationVersion struct {
	ID            string    `json:"id,omitempty"`
	CreatedAt     string    `json:"createdAt,omitempty"`
	Name          string    `json:"name"`
	ApplicationID string    `json:"applicationId,omitempty"`
	ChartType     ChartType `json:"chartType,omitempty"`
	ChartName     string    `json:"chartName,omitempty"`
	ChartURL      string    `json:"chartUrl,omitempty"`
	ChartVersion  string    `json:"chartVersion,omitempty"`
}

// VersionPayload holds the files uploaded alongside a new ApplicationVersion.
// Docker versions carry a compose file, kubernetes versions carry values and
// template files. TemplateFile is optional for both.
type VersionPayload struct {
	ComposeFile  []byte
	ValuesFile   []byte
	TemplateFile []byte
}
