package api

import "github.com/glasskube/distr-sub001/internal/core/domain"

// =============================================================================
// Request Types
// =============================================================================

// UpdateDeploymentRequest is the optional body of the update endpoint. An
// empty ApplicationVersionID updates to the latest newer version.
type UpdateDeploymentRequest struct {
	ApplicationVersionID string `json:"applicationVersionId,omitempty"`
}

// CreateVersionRequest is the body for publishing an application version.
// File contents are sent as plain strings.
type CreateVersionRequest struct {
	Version      domain.ApplicationVersion `json:"version"`
	ComposeFile  string                    `json:"composeFile,omitempty"`
	ValuesFile   string                    `json:"valuesFile,omitempty"`
	TemplateFile string                    `json:"templateFile,omitempty"`
}

func (r CreateVersionRequest) payload() domain.VersionPayload {
	var p domain.VersionPayload
	if r.ComposeFile != "" {
		p.ComposeFile = []byte(r.ComposeFile)
	}
	if r.ValuesFile != "" {
		p.ValuesFile = []byte(r.ValuesFile)
	}
	if r.TemplateFile != "" {
		p.TemplateFile = []byte(r.TemplateFile)
	}
	return p
}

// =============================================================================
// Response Types
// =============================================================================

// JournalResponse is the response for listing journal entries.
type JournalResponse struct {
	Entries []domain.JournalEntry `json:"entries"`
	Limit   int                   `json:"limit"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Created lists remote objects left behind by a partially failed
	// operation, as "kind:id".
	Created []string `json:"created,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Strategy string `json:"strategy"`
}
