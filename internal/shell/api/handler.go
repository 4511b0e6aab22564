// Package api provides the local HTTP API served by `distr serve`.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/shell/api/middleware"
	"github.com/glasskube/distr-sub001/internal/shell/api/openapi"
	"github.com/glasskube/distr-sub001/internal/shell/journal"
	"github.com/glasskube/distr-sub001/internal/shell/metrics"
	"github.com/glasskube/distr-sub001/internal/shell/updater"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	maxBodyBytes    = 1 << 20
	maxJournalLimit = 500
)

// Resolver is the update logic behind the API. *updater.Service implements it.
type Resolver interface {
	ResolveNewerVersions(ctx context.Context, applicationID, currentVersionID string) (*updater.NewerVersionsResult, error)
	IsOutdated(ctx context.Context, deploymentTargetID string) (*updater.OutdatedResult, error)
	UpdateDeployment(ctx context.Context, deploymentTargetID, applicationVersionID string) (*domain.Deployment, error)
	CreateDeployment(ctx context.Context, req updater.CreateDeploymentRequest) (*updater.CreateDeploymentResult, error)
	CreateApplicationVersion(ctx context.Context, applicationID string, req updater.VersionRequest) (*domain.ApplicationVersion, error)
	DeploymentStatus(ctx context.Context, deploymentTargetID string) (*updater.StatusResult, error)
}

// JournalReader lists journal entries. *journal.SQLiteJournal implements it.
type JournalReader interface {
	List(ctx context.Context, opts journal.ListOptions) ([]domain.JournalEntry, error)
}

// =============================================================================
// Handler
// =============================================================================

// Config holds the dependencies of a Handler. Journal and Metrics are
// optional.
type Config struct {
	Resolver Resolver
	Journal  JournalReader
	Metrics  *metrics.Metrics

	// Strategy is the name reported by /health.
	Strategy string

	// Token protects /api/v1 with bearer authentication when set.
	Token string

	Logger *slog.Logger
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	resolver Resolver
	journal  JournalReader
	metrics  *metrics.Metrics
	strategy string
	auth     *middleware.AuthMiddleware
	spec     *openapi.Generator
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	h := &Handler{
		resolver: cfg.Resolver,
		journal:  cfg.Journal,
		metrics:  cfg.Metrics,
		strategy: cfg.Strategy,
		auth:     middleware.NewAuthMiddleware(middleware.AuthConfig{Token: cfg.Token, Logger: logger}),
		spec:     openapi.NewGenerator(openapi.WithErrorModel(ErrorResponse{})),
		logger:   logger,
	}
	h.spec.Register(apiRoutes()...)
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(h.requestIDHeader)

	r.Get("/openapi.json", h.spec.Handler())
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.jsonContentType)

		r.Get("/health", h.handleHealth)

		// API v1 routes
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(h.auth.Handler)

			r.Get("/applications/{id}/newer-versions", h.handleNewerVersions)
			r.Post("/applications/{id}/versions", h.handleCreateVersion)

			r.Route("/deployment-targets/{id}", func(r chi.Router) {
				r.Get("/outdated", h.handleOutdated)
				r.Post("/update", h.handleUpdate)
				r.Get("/status", h.handleStatus)
			})

			r.Post("/deployments", h.handleCreateDeployment)
			r.Get("/journal", h.handleJournal)
		})
	})

	return r
}

// apiRoutes describes the routes for the OpenAPI document.
func apiRoutes() []openapi.Route {
	return []openapi.Route{
		{
			Method: http.MethodGet, Path: "/health", OperationID: "health",
			Summary: "Service health", Tag: "health", Response: HealthResponse{},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/applications/{id}/newer-versions", OperationID: "resolveNewerVersions",
			Summary: "List versions newer than the current one", Tag: "versions",
			Query:    []openapi.QueryParam{{Name: "current", Description: "current application version id"}},
			Response: updater.NewerVersionsResult{}, Errors: []int{http.StatusNotFound, http.StatusBadGateway},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/applications/{id}/versions", OperationID: "createApplicationVersion",
			Summary: "Publish a new application version", Tag: "versions",
			Request: CreateVersionRequest{}, Response: domain.ApplicationVersion{}, Status: http.StatusCreated,
			Errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/deployment-targets/{id}/outdated", OperationID: "isOutdated",
			Summary: "Check whether a target runs an outdated version", Tag: "deployments",
			Response: updater.OutdatedResult{},
			Errors:   []int{http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/deployment-targets/{id}/update", OperationID: "updateDeployment",
			Summary: "Update a target to a newer version", Tag: "deployments",
			Request: UpdateDeploymentRequest{}, Response: domain.Deployment{},
			Errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/deployment-targets/{id}/status", OperationID: "deploymentStatus",
			Summary: "Rollout status of the current deployment", Tag: "deployments",
			Response: updater.StatusResult{},
			Errors:   []int{http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/deployments", OperationID: "createDeployment",
			Summary: "Create a target and deploy an application to it", Tag: "deployments",
			Request: updater.CreateDeploymentRequest{}, Response: updater.CreateDeploymentResult{}, Status: http.StatusCreated,
			Errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/journal", OperationID: "listJournal",
			Summary: "Recent journal entries, newest first", Tag: "journal",
			Query: []openapi.QueryParam{
				{Name: "limit", Integer: true},
				{Name: "target", Description: "deployment target id"},
				{Name: "operation"},
			},
			Response: JournalResponse{}, Errors: []int{http.StatusBadRequest, http.StatusNotFound},
		},
	}
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Strategy: h.strategy})
}

// =============================================================================
// Version Handlers
// =============================================================================

func (h *Handler) handleNewerVersions(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolver.ResolveNewerVersions(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("current"))
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	var req CreateVersionRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_argument")
		return
	}

	version, err := h.resolver.CreateApplicationVersion(r.Context(), chi.URLParam(r, "id"), updater.VersionRequest{
		Version: req.Version,
		Payload: req.payload(),
	})
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, version)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleOutdated(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolver.IsOutdated(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateDeploymentRequest
	if err := h.decode(w, r, &req, true); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_argument")
		return
	}

	deployment, err := h.resolver.UpdateDeployment(r.Context(), chi.URLParam(r, "id"), req.ApplicationVersionID)
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deployment)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolver.DeploymentStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req updater.CreateDeploymentRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_argument")
		return
	}

	result, err := h.resolver.CreateDeployment(r.Context(), req)
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// =============================================================================
// Journal Handlers
// =============================================================================

func (h *Handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeError(w, http.StatusNotFound, "journal is disabled", "journal_disabled")
		return
	}

	query := r.URL.Query()
	limit := journal.DefaultListLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer", "invalid_argument")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := h.journal.List(r.Context(), journal.ListOptions{
		Limit:              limit,
		DeploymentTargetID: query.Get("target"),
		Operation:          domain.Operation(query.Get("operation")),
	})
	if err != nil {
		h.logger.Error("failed to list journal", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list journal", "internal_error")
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}

	h.writeJSON(w, http.StatusOK, JournalResponse{Entries: entries, Limit: limit})
}

// =============================================================================
// Helpers
// =============================================================================

// decode reads a JSON body of at most maxBodyBytes. With allowEmpty an empty
// body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// errorStatus maps an error class to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrReferenceNotFound):
		return http.StatusNotFound, "reference_not_found"
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusConflict, "precondition_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "remote_error"
	}
}

func (h *Handler) writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	// a classified cause keeps its own code
	var partial *domain.PartialFailureError
	if errors.As(err, &partial) {
		resp.Created = partial.Created
		if code == "remote_error" {
			resp.Code = "partial_failure"
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
