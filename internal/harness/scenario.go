package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a rewrite conformance scenario: one input query,
// the dialect to emit for, and optionally a catalog of schema facts.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dialect is the target dialect name. Empty selects the default.
	Dialect string `yaml:"dialect,omitempty"`

	// Catalog is a path to a catalog file (.yaml or .cue), relative to
	// the scenario file. Empty runs with no schema facts, so
	// catalog-gated rules never fire.
	Catalog string `yaml:"catalog,omitempty"`

	// Query is the input query text.
	Query string `yaml:"query"`

	// MaxPasses overrides the rewriter pass cap when positive.
	MaxPasses int `yaml:"max_passes,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly. The catalog path is resolved
// relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Query == "" {
		return fmt.Errorf("query is required")
	}
	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
			return fmt.Errorf("catalog file not found: %s", s.Catalog)
		}
	}
	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes must be non-negative")
	}
	return nil
}
