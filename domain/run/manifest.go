package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"neurodyn/domain/core"

	"gopkg.in/yaml.v3"
)

// CohortManifest lists the inputs of a cohort analysis. Relative paths are
// resolved against the manifest's directory.
//
//	coordinates: parcellation_cog.csv
//	params:
//	  nstd: 5
//	subjects:
//	  - id: 002_S_0413
//	    group: HC
//	    sc: sc/002_S_0413.csv
type CohortManifest struct {
	Name        string            `yaml:"name"`
	Coordinates string            `yaml:"coordinates"`
	Params      Params            `yaml:"params"`
	Subjects    []SubjectManifest `yaml:"subjects"`

	dir string
}

// SubjectManifest is one subject entry
type SubjectManifest struct {
	ID    core.SubjectID  `yaml:"id"`
	Group core.GroupLabel `yaml:"group"`
	SC    string          `yaml:"sc"`
}

// LoadManifest reads and validates a YAML cohort manifest
func LoadManifest(path string) (*CohortManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrManifestNotFound, path)
		}
		return nil, err
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes a manifest, applies parameter defaults and validates it
func ParseManifest(raw []byte) (*CohortManifest, error) {
	m := CohortManifest{Params: DefaultParams()}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, core.NewConfigurationError("manifest", "is not valid YAML: "+err.Error())
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest is complete
func (m *CohortManifest) Validate() error {
	if strings.TrimSpace(m.Coordinates) == "" {
		return core.NewConfigurationError("manifest", "coordinates path cannot be empty")
	}
	if len(m.Subjects) == 0 {
		return core.NewConfigurationError("manifest", "must list at least one subject")
	}
	seen := make(map[core.SubjectID]bool, len(m.Subjects))
	for i, s := range m.Subjects {
		if core.ID(s.ID).IsEmpty() {
			return core.NewConfigurationError("manifest", fmt.Sprintf("subject %d has no id", i))
		}
		if seen[s.ID] {
			return core.NewConfigurationError("manifest", fmt.Sprintf("subject %s is listed twice", s.ID))
		}
		seen[s.ID] = true
		if strings.TrimSpace(s.SC) == "" {
			return core.NewConfigurationError("manifest", fmt.Sprintf("subject %s has no sc path", s.ID))
		}
	}
	return m.Params.Validate()
}

// Resolve returns path relative to the manifest directory
func (m *CohortManifest) Resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

// Groups returns the distinct group labels in manifest order
func (m *CohortManifest) Groups() []core.GroupLabel {
	var groups []core.GroupLabel
	seen := make(map[core.GroupLabel]bool)
	for _, s := range m.Subjects {
		if !seen[s.Group] {
			seen[s.Group] = true
			groups = append(groups, s.Group)
		}
	}
	return groups
}
