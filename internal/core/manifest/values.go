package manifest

import (
	"fmt"
	"strings"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"gopkg.in/yaml.v3"
)

const (
	valuesFile   = "valuesfile"
	templateFile = "templatefile"
)

// ValidateValues checks that a helm values (or deployment template) file is
// either empty or a single YAML mapping.
func ValidateValues(file string, content []byte) error {
	if strings.TrimSpace(string(content)) == "" {
		return nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return NewParseError(file, "", "invalid YAML syntax", ErrInvalidYAML)
	}
	if len(node.Content) == 0 {
		return nil
	}
	if doc := node.Content[0]; doc.Kind != yaml.MappingNode {
		return NewParseError(file, "", "document must be a YAML mapping", ErrNotMapping)
	}
	return nil
}

// ValidateChart checks the chart coordinates of a kubernetes version.
func ValidateChart(v domain.ApplicationVersion) error {
	switch v.ChartType {
	case domain.ChartTypeRepository:
		if v.ChartName == "" {
			return NewParseError("", "chartName", "chart name is required for repository charts", ErrMissingChartField)
		}
	case domain.ChartTypeOCI:
		if !strings.HasPrefix(v.ChartURL, "oci://") {
			return NewParseError("", "chartUrl", "oci charts need an oci:// url", ErrInvalidChartType)
		}
	default:
		return NewParseError("", "chartType", fmt.Sprintf("unknown chart type %q", v.ChartType), ErrInvalidChartType)
	}
	if v.ChartURL == "" {
		return NewParseError("", "chartUrl", "chart url is required", ErrMissingChartField)
	}
	if v.ChartVersion == "" {
		return NewParseError("", "chartVersion", "chart version is required", ErrMissingChartField)
	}
	return nil
}

// ValidateVersion validates a new version and its files for an application of
// the given type.
func ValidateVersion(appType domain.DeploymentType, v domain.ApplicationVersion, payload domain.VersionPayload) error {
	if strings.TrimSpace(v.Name) == "" {
		return NewParseError("", "name", "version name is required", ErrMissingName)
	}

	switch appType {
	case domain.DeploymentTypeDocker:
		if _, err := ParseCompose(payload.ComposeFile); err != nil {
			return err
		}
	case domain.DeploymentTypeKubernetes:
		if err := ValidateChart(v); err != nil {
			return err
		}
		if err := ValidateValues(valuesFile, payload.ValuesFile); err != nil {
			return err
		}
		// docker templates are env files, only kubernetes ones are YAML
		if err := ValidateValues(templateFile, payload.TemplateFile); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown application type %q", domain.ErrInvalidArgument, appType)
	}

	return nil
}
