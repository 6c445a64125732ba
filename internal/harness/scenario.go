package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-orm/kestrel/internal/planfile"
)

// Scenario defines one conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Model is the path to the CUE model file, relative to the
	// scenario file location.
	Model string `yaml:"model"`

	// Plan is the query plan to expand and lower.
	Plan planfile.Plan `yaml:"plan"`

	// Expect holds the scenario's expectations. A zero Expect only
	// requires the pipeline to succeed.
	Expect Expect `yaml:"expect,omitempty"`

	// dir is the directory the scenario was loaded from; model paths
	// resolve against it.
	dir string
}

// Expect declares scenario expectations.
type Expect struct {
	// Joins is the expected number of join operators (inner and group)
	// in the expanded tree.
	Joins *int `yaml:"joins,omitempty"`

	// Error is a substring the pipeline error must contain. When set,
	// the scenario passes only if the pipeline fails.
	Error string `yaml:"error,omitempty"`

	// SQLContains lists substrings the generated SQL must contain.
	SQLContains []string `yaml:"sql_contains,omitempty"`
}

// ModelPath resolves the scenario's model path.
func (s *Scenario) ModelPath() string {
	if filepath.IsAbs(s.Model) || s.dir == "" {
		return s.Model
	}
	return filepath.Join(s.dir, s.Model)
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("harness: parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("harness: scenario %s has no name", path)
	}
	if s.Model == "" {
		return nil, fmt.Errorf("harness: scenario %q has no model", s.Name)
	}
	if s.Plan.Source == "" {
		return nil, fmt.Errorf("harness: scenario %q has no plan source", s.Name)
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// LoadScenarioDir loads every scenario file in a directory, sorted by
// file name for stable test ordering.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("harness: reading scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
