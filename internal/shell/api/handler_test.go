package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/shell/journal"
	"github.com/glasskube/distr-sub001/internal/shell/metrics"
	"github.com/glasskube/distr-sub001/internal/shell/updater"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stubResolver implements Resolver for testing.
type stubResolver struct {
	err error // If set, all operations return this error

	gotApplicationID string
	gotCurrent       string
	gotTargetID      string
	gotVersionID     string
	gotCreate        updater.CreateDeploymentRequest
	gotVersion       updater.VersionRequest
}

func (s *stubResolver) ResolveNewerVersions(ctx context.Context, applicationID, currentVersionID string) (*updater.NewerVersionsResult, error) {
	s.gotApplicationID, s.gotCurrent = applicationID, currentVersionID
	if s.err != nil {
		return nil, s.err
	}
	return &updater.NewerVersionsResult{
		Application: &domain.Application{ID: applicationID, Name: "shop"},
		Versions:    []domain.ApplicationVersion{{ID: "v2", Name: "1.2.0"}},
	}, nil
}

func (s *stubResolver) IsOutdated(ctx context.Context, deploymentTargetID string) (*updater.OutdatedResult, error) {
	s.gotTargetID = deploymentTargetID
	if s.err != nil {
		return nil, s.err
	}
	return &updater.OutdatedResult{
		DeploymentTarget: &domain.DeploymentTarget{ID: deploymentTargetID},
		NewerVersions:    []domain.ApplicationVersion{{ID: "v2", Name: "1.2.0"}},
		Outdated:         true,
	}, nil
}

func (s *stubResolver) UpdateDeployment(ctx context.Context, deploymentTargetID, applicationVersionID string) (*domain.Deployment, error) {
	s.gotTargetID, s.gotVersionID = deploymentTargetID, applicationVersionID
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Deployment{ID: "d1", DeploymentTargetID: deploymentTargetID, ApplicationVersionID: "v2"}, nil
}

func (s *stubResolver) CreateDeployment(ctx context.Context, req updater.CreateDeploymentRequest) (*updater.CreateDeploymentResult, error) {
	s.gotCreate = req
	if s.err != nil {
		return nil, s.err
	}
	return &updater.CreateDeploymentResult{
		DeploymentTarget: &domain.DeploymentTarget{ID: "t-new", Name: req.Target.Name},
		Access:           &domain.AccessCredential{TargetID: "t-new", TargetSecret: "secret"},
	}, nil
}

func (s *stubResolver) CreateApplicationVersion(ctx context.Context, applicationID string, req updater.VersionRequest) (*domain.ApplicationVersion, error) {
	s.gotApplicationID, s.gotVersion = applicationID, req
	if s.err != nil {
		return nil, s.err
	}
	v := req.Version
	v.ID = "v-new"
	return &v, nil
}

func (s *stubResolver) DeploymentStatus(ctx context.Context, deploymentTargetID string) (*updater.StatusResult, error) {
	s.gotTargetID = deploymentTargetID
	if s.err != nil {
		return nil, s.err
	}
	return &updater.StatusResult{
		DeploymentTarget: &domain.DeploymentTarget{ID: deploymentTargetID},
		Statuses:         []domain.DeploymentRevisionStatus{{Type: domain.StatusOK, Message: "running"}},
	}, nil
}

type stubJournal struct {
	entries []domain.JournalEntry
	err     error
	gotOpts journal.ListOptions
}

func (s *stubJournal) List(ctx context.Context, opts journal.ListOptions) ([]domain.JournalEntry, error) {
	s.gotOpts = opts
	return s.entries, s.err
}

func newTestHandler(resolver *stubResolver, opts ...func(*Config)) http.Handler {
	cfg := Config{Resolver: resolver, Strategy: "semver"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewHandler(cfg).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := do(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "healthy", Strategy: "semver"}, resp)
}

// =============================================================================
// Versions
// =============================================================================

func TestNewerVersions(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodGet, "/api/v1/applications/app-1/newer-versions?current=v1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app-1", resolver.gotApplicationID)
	assert.Equal(t, "v1", resolver.gotCurrent)

	var resp updater.NewerVersionsResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Versions, 1)
	assert.Equal(t, "1.2.0", resp.Versions[0].Name)
}

func TestNewerVersions_WithoutCurrent(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodGet, "/api/v1/applications/app-1/newer-versions", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resolver.gotCurrent)
}

func TestCreateVersion(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodPost, "/api/v1/applications/app-1/versions", CreateVersionRequest{
		Version:     domain.ApplicationVersion{Name: "1.3.0"},
		ComposeFile: "services: {}",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "app-1", resolver.gotApplicationID)
	assert.Equal(t, "1.3.0", resolver.gotVersion.Version.Name)
	assert.Equal(t, []byte("services: {}"), resolver.gotVersion.Payload.ComposeFile)
	assert.Nil(t, resolver.gotVersion.Payload.ValuesFile)

	var resp domain.ApplicationVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "v-new", resp.ID)
}

func TestCreateVersion_InvalidJSON(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := do(t, h, http.MethodPost, "/api/v1/applications/app-1/versions", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", decodeError(t, rec).Code)
}

// =============================================================================
// Deployments
// =============================================================================

func TestOutdated(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodGet, "/api/v1/deployment-targets/t1/outdated", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", resolver.gotTargetID)

	var resp updater.OutdatedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Outdated)
}

func TestUpdate_EmptyBodyUpdatesToLatest(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodPost, "/api/v1/deployment-targets/t1/update", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", resolver.gotTargetID)
	assert.Empty(t, resolver.gotVersionID)
}

func TestUpdate_ExplicitVersion(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodPost, "/api/v1/deployment-targets/t1/update",
		UpdateDeploymentRequest{ApplicationVersionID: "v3"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v3", resolver.gotVersionID)
}

func TestUpdate_InvalidJSON(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := do(t, h, http.MethodPost, "/api/v1/deployment-targets/t1/update", "[")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := do(t, h, http.MethodGet, "/api/v1/deployment-targets/t1/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp updater.StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Statuses, 1)
	assert.Equal(t, domain.StatusOK, resp.Statuses[0].Type)
}

func TestCreateDeployment(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver)

	rec := do(t, h, http.MethodPost, "/api/v1/deployments", updater.CreateDeploymentRequest{
		Target:        domain.DeploymentTargetRequest{Name: "edge", Type: domain.DeploymentTypeDocker},
		ApplicationID: "app-1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "edge", resolver.gotCreate.Target.Name)
	assert.Equal(t, "app-1", resolver.gotCreate.ApplicationID)

	var resp updater.CreateDeploymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t-new", resp.DeploymentTarget.ID)
	assert.Equal(t, "secret", resp.Access.TargetSecret)
}

func TestCreateDeployment_BodyTooLarge(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	body := `{"applicationId":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := do(t, h, http.MethodPost, "/api/v1/deployments", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Error Mapping
// =============================================================================

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "reference not found",
			err:    domain.NewResolveError("ResolveNewerVersions", "application_version", "nope", "given version does not exist in this application", domain.ErrReferenceNotFound),
			status: http.StatusNotFound,
			code:   "reference_not_found",
		},
		{
			name:   "precondition failed",
			err:    domain.NewResolveError("IsOutdated", "deployment_target", "t1", "nothing deployed yet", domain.ErrPreconditionFailed),
			status: http.StatusConflict,
			code:   "precondition_failed",
		},
		{
			name:   "invalid argument",
			err:    errors.Join(domain.ErrInvalidArgument, errors.New("name is required")),
			status: http.StatusBadRequest,
			code:   "invalid_argument",
		},
		{
			name:   "remote failure",
			err:    errors.New("hub unavailable"),
			status: http.StatusBadGateway,
			code:   "remote_error",
		},
		{
			name:   "deadline",
			err:    context.DeadlineExceeded,
			status: http.StatusGatewayTimeout,
			code:   "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubResolver{err: tt.err})

			rec := do(t, h, http.MethodGet, "/api/v1/deployment-targets/t1/outdated", nil)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.err.Error(), resp.Error)
		})
	}
}

func TestErrorMapping_PartialFailure(t *testing.T) {
	h := newTestHandler(&stubResolver{err: &domain.PartialFailureError{
		Op:      "CreateDeployment",
		Step:    updater.StepCreateAccess,
		Created: []string{"deployment_target:t-new", "deployment:d-new"},
		Err:     errors.New("hub unavailable"),
	}})

	rec := do(t, h, http.MethodPost, "/api/v1/deployments", updater.CreateDeploymentRequest{ApplicationID: "app-1"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "partial_failure", resp.Code)
	assert.Equal(t, []string{"deployment_target:t-new", "deployment:d-new"}, resp.Created)
}

func TestErrorMapping_PartialFailureKeepsCauseClass(t *testing.T) {
	h := newTestHandler(&stubResolver{err: &domain.PartialFailureError{
		Op:      "CreateDeployment",
		Step:    updater.StepResolveVersion,
		Created: []string{"deployment_target:t-new"},
		Err: domain.NewResolveError("CreateDeployment", "application", "app-1",
			"no versions available", domain.ErrPreconditionFailed),
	}})

	rec := do(t, h, http.MethodPost, "/api/v1/deployments", updater.CreateDeploymentRequest{ApplicationID: "app-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "precondition_failed", resp.Code)
	assert.Equal(t, []string{"deployment_target:t-new"}, resp.Created)
}

// =============================================================================
// Journal
// =============================================================================

func TestJournal_Disabled(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := do(t, h, http.MethodGet, "/api/v1/journal", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "journal_disabled", decodeError(t, rec).Code)
}

func TestJournal_List(t *testing.T) {
	j := &stubJournal{entries: []domain.JournalEntry{
		{ID: "e1", Operation: domain.OperationUpdateDeployment, Outcome: domain.OutcomeOK},
	}}
	h := newTestHandler(&stubResolver{}, func(c *Config) { c.Journal = j })

	rec := do(t, h, http.MethodGet, "/api/v1/journal?limit=10&target=t1&operation=update_deployment", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, journal.ListOptions{
		Limit:              10,
		DeploymentTargetID: "t1",
		Operation:          domain.OperationUpdateDeployment,
	}, j.gotOpts)

	var resp JournalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 1)
	assert.Equal(t, 10, resp.Limit)
}

func TestJournal_DefaultAndClampedLimit(t *testing.T) {
	j := &stubJournal{}
	h := newTestHandler(&stubResolver{}, func(c *Config) { c.Journal = j })

	rec := do(t, h, http.MethodGet, "/api/v1/journal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, journal.DefaultListLimit, j.gotOpts.Limit)
	assert.JSONEq(t, `{"entries":[],"limit":50}`, rec.Body.String())

	do(t, h, http.MethodGet, "/api/v1/journal?limit=100000", nil)
	assert.Equal(t, maxJournalLimit, j.gotOpts.Limit)
}

func TestJournal_InvalidLimit(t *testing.T) {
	h := newTestHandler(&stubResolver{}, func(c *Config) { c.Journal = &stubJournal{} })

	for _, limit := range []string{"0", "-1", "ten"} {
		rec := do(t, h, http.MethodGet, "/api/v1/journal?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestJournal_StoreError(t *testing.T) {
	h := newTestHandler(&stubResolver{}, func(c *Config) {
		c.Journal = &stubJournal{err: errors.New("disk I/O error")}
	})

	rec := do(t, h, http.MethodGet, "/api/v1/journal", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Code)
}

// =============================================================================
// Auth, Metrics, OpenAPI
// =============================================================================

func TestAuth_ProtectsAPIOnly(t *testing.T) {
	h := newTestHandler(&stubResolver{}, func(c *Config) { c.Token = "s3cret" })

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/deployment-targets/t1/outdated", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployment-targets/t1/outdated", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	h := newTestHandler(&stubResolver{}, func(c *Config) { c.Metrics = metrics.New() })

	do(t, h, http.MethodGet, "/api/v1/deployment-targets/t1/outdated", nil)
	rec := do(t, h, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`distr_api_http_requests_total{method="GET",route="/api/v1/deployment-targets/{id}/outdated",status="200"} 1`)
}

func TestMetrics_DisabledWithoutRegistry(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics", nil).Code)
}

func TestOpenAPI(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := do(t, h, http.MethodGet, "/openapi.json", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/v1/deployment-targets/{id}/outdated")
	assert.Contains(t, paths, "/api/v1/deployments")
	assert.Contains(t, paths, "/api/v1/journal")
}
