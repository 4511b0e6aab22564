package manifest

import (
	"context"
	"slices"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

const composeFile = "composefile"

// ComposeSummary describes a compose file that passed validation.
type ComposeSummary struct {
	Services []string // sorted
	Images   []string // one per service, in Services order
}

// ParseCompose validates a docker compose file for upload.
// Input: raw YAML
// Output: the services it defines, or a *ParseError
func ParseCompose(content []byte) (*ComposeSummary, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, NewParseError(composeFile, "", "compose file is empty", ErrEmptyInput)
	}

	project, err := loadCompose(content)
	if err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, NewParseError(composeFile, "services", "no services defined", ErrNoServices)
	}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	slices.Sort(names)

	summary := &ComposeSummary{
		Services: names,
		Images:   make([]string, 0, len(names)),
	}
	for _, name := range names {
		svc := project.Services[name]
		if svc.Build != nil {
			return nil, NewParseError(composeFile, "services."+name+".build", "build is not supported, reference a pushed image", ErrUnsupportedBuild)
		}
		if svc.Image == "" {
			return nil, NewParseError(composeFile, "services."+name+".image", "service must have an image", ErrServiceNoImage)
		}
		summary.Images = append(summary.Images, svc.Image)
	}

	return summary, nil
}

// loadCompose loads a compose file in memory using compose-go.
func loadCompose(content []byte) (*types.Project, error) {
	var dict map[string]any
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, NewParseError(composeFile, "", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError(composeFile, "", "document must be a YAML mapping", ErrNotMapping)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("distr-validate", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// in-memory: nothing on disk to resolve against
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, NewParseError(composeFile, "", err.Error(), ErrInvalidYAML)
	}

	return project, nil
}
