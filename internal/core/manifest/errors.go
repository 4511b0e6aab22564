// Package manifest validates the files uploaded with a new application
// version: docker compose files for docker applications, helm values and
// template files plus chart coordinates for kubernetes applications.
// This is part of the Functional Core - all functions are pure with no I/O.
package manifest

import (
	"errors"
	"fmt"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput  = errors.New("file is empty")
	ErrMissingName = errors.New("version name is required")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")
	ErrNotMapping  = errors.New("document must be a YAML mapping")

	// Compose structure errors
	ErrNoServices       = errors.New("compose file must define at least one service")
	ErrServiceNoImage   = errors.New("service must have an image")
	ErrUnsupportedBuild = errors.New("build sections cannot be deployed by an agent")

	// Chart errors
	ErrMissingChartField = errors.New("chart field is required")
	ErrInvalidChartType  = errors.New("invalid chart type")
)

// ParseError wraps errors with context about where validation failed.
// Every ParseError is also a domain.ErrInvalidArgument.
type ParseError struct {
	File    string // e.g. "composefile", "valuesfile"
	Field   string // e.g. "services.web.image"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() []error {
	return []error{e.Err, domain.ErrInvalidArgument}
}

// NewParseError creates a new ParseError.
func NewParseError(file, field, message string, err error) *ParseError {
	return &ParseError{
		File:    file,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
