package timeline

import (
	"os"

	"github.com/ivlev/sketch2video/internal/config"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML dump of a built timeline.
type Manifest struct {
	Version   string          `yaml:"version"`
	FrameRate float64         `yaml:"frame_rate"`
	Total     float64         `yaml:"total_ms"`
	Items     []ManifestEntry `yaml:"items"`
}

// ManifestEntry describes one scheduled element
type ManifestEntry struct {
	Index    int     `yaml:"index"` // position in the scene document
	ID       string  `yaml:"id,omitempty"`
	Category string  `yaml:"category"`
	Kind     Kind    `yaml:"kind"`
	Start    float64 `yaml:"start_ms"`
	End      float64 `yaml:"end_ms"`
}

// NewManifest describes items for the given settings.
func NewManifest(items []Item, s config.Settings) *Manifest {
	m := &Manifest{
		Version:   "1.0",
		FrameRate: s.FrameRate,
		Total:     TotalDuration(items),
		Items:     make([]ManifestEntry, 0, len(items)),
	}
	for _, it := range items {
		info := it.Element.Info()
		m.Items = append(m.Items, ManifestEntry{
			Index:    info.Index,
			ID:       info.ID,
			Category: string(it.Element.Category()),
			Kind:     it.Kind,
			Start:    it.Start,
			End:      it.End,
		})
	}
	return m
}

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest from a YAML file
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}
