package distr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// APIError is returned for every non-2xx hub response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is classifies hub responses without rewriting them: a 404 is a
// domain.ErrReferenceNotFound.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrReferenceNotFound && e.StatusCode == http.StatusNotFound
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    errorMessage(body),
	}
}

// errorMessage extracts a message from a JSON error body, falling back to the
// trimmed raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
