package scenegraph

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DEFAULT_WORKERS = 1

// MaxChildrenBounded is the fan-out of the bounded child-storage variant
const MaxChildrenBounded = 50

// Config holds the settings shared by all the nodes of a Graph
type Config struct {
	// MaxChildren caps the fan-out of every node. 0 means unbounded.
	MaxChildren int `yaml:"max_children"`
	// MaxDepth caps the number of ancestors a node may have. 0 means unbounded.
	MaxDepth int `yaml:"max_depth"`
	// ChangeDetection skips recomposing a local matrix whose inputs did not change
	ChangeDetection bool `yaml:"change_detection"`
	// Workers is the number of goroutines sharing the root subtrees during Graph.Update
	Workers int `yaml:"workers"`

	// GridCellSize enables the spatial index of world positions when > 0
	GridCellSize float64 `yaml:"grid_cell_size"`
	GridCells    int     `yaml:"grid_cells"`
}

// DefaultConfig returns the unbounded configuration with change detection off
func DefaultConfig() Config {
	return Config{
		Workers:   DEFAULT_WORKERS,
		GridCells: 1024,
	}
}

// BoundedConfig returns the fixed fan-out configuration
func BoundedConfig() Config {
	config := DefaultConfig()
	config.MaxChildren = MaxChildrenBounded
	return config
}

// Validate rejects negative limits
func (c Config) Validate() error {
	if c.MaxChildren < 0 {
		return errors.Errorf("max_children must be >= 0, got %d", c.MaxChildren)
	}
	if c.MaxDepth < 0 {
		return errors.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.GridCellSize < 0 {
		return errors.Errorf("grid_cell_size must be >= 0, got %v", c.GridCellSize)
	}
	if c.GridCells < 0 {
		return errors.Errorf("grid_cells must be >= 0, got %d", c.GridCells)
	}
	return nil
}

// ParseConfig decodes a YAML document on top of DefaultConfig
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := config.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return config, nil
}

// LoadConfig reads and parses a YAML config file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %q", path)
	}
	return ParseConfig(data)
}
