package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/newslens/newslens/pkg/types"
)

// outletFile is the on-disk shape of the outlet registry.
type outletFile struct {
	Outlets []types.Outlet `yaml:"outlets"`
}

// LoadOutlets reads the YAML outlet registry at path. A missing file is not
// an error (a deployment may ingest articles from elsewhere); it returns an
// empty slice. Every outlet must have an ID and a feed URL.
func LoadOutlets(path string) ([]types.Outlet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: failed to read outlet registry: %w", err)
	}

	var file outletFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: failed to parse outlet registry: %w", err)
	}

	seen := make(map[string]bool, len(file.Outlets))
	for i, o := range file.Outlets {
		if o.ID == "" {
			return nil, fmt.Errorf("config: outlet %d has no id", i)
		}
		if o.FeedURL == "" {
			return nil, fmt.Errorf("config: outlet %q has no feed_url", o.ID)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("config: duplicate outlet id %q", o.ID)
		}
		seen[o.ID] = true
	}

	return file.Outlets, nil
}
