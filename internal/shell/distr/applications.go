package distr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// =============================================================================
// Application Operations
// =============================================================================

// ListApplications returns all applications visible to the token.
func (c *Client) ListApplications(ctx context.Context) ([]domain.Application, error) {
	var apps []domain.Application
	if err := c.doJSON(ctx, http.MethodGet, "/applications", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// GetApplication returns an application including its versions.
func (c *Client) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	var app domain.Application
	if err := c.doJSON(ctx, http.MethodGet, "/applications/"+escape(id), nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// CreateApplicationVersion uploads a new version with its files as a
// multipart form. Empty files are not sent.
func (c *Client) CreateApplicationVersion(ctx context.Context, applicationID string, version domain.ApplicationVersion, payload domain.VersionPayload) (*domain.ApplicationVersion, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	meta, err := json.Marshal(version)
	if err != nil {
		return nil, fmt.Errorf("marshal version: %w", err)
	}
	if err := form.WriteField("applicationversion", string(meta)); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}

	files := []struct {
		field    string
		filename string
		content  []byte
	}{
		{"composefile", "docker-compose.yaml", payload.ComposeFile},
		{"valuesfile", "values.yaml", payload.ValuesFile},
		{"templatefile", "template", payload.TemplateFile},
	}
	for _, f := range files {
		if len(f.content) == 0 {
			continue
		}
		part, err := form.CreateFormFile(f.field, f.filename)
		if err != nil {
			return nil, fmt.Errorf("write form: %w", err)
		}
		if _, err := part.Write(f.content); err != nil {
			return nil, fmt.Errorf("write form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/applications/"+escape(applicationID)+"/versions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var created domain.ApplicationVersion
	if err := c.send(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
