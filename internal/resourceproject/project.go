// Package resourceproject parses the resource-project file the
// resource_build CLI reads to learn where to scan and which plugins
// contribute resource types.
package resourceproject

import (
	"fmt"
	"os"

	"github.com/catalystcommunity/enginecore/internal/errs"
	"gopkg.in/yaml.v3"
)

// Project is the parsed contents of a resource-project YAML file.
type Project struct {
	WorkspaceDirectory  string   `yaml:"workspace_directory"`
	PluginDirectoryName string   `yaml:"plugin_directory_name"`
	Plugins             []string `yaml:"plugins"`
}

// Load reads and parses a resource-project file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resourceproject: read %q: %w", path, err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("resourceproject: parse %q: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the required fields are present.
func (p *Project) Validate() error {
	if p.WorkspaceDirectory == "" {
		return fmt.Errorf("resourceproject: workspace_directory is required: %w", errs.ErrValidation)
	}
	if p.PluginDirectoryName == "" {
		return fmt.Errorf("resourceproject: plugin_directory_name is required: %w", errs.ErrValidation)
	}
	return nil
}
