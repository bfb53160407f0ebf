package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
)

// Scenario defines a conformance test scenario.
// A scenario builds one expression, compiles it, then drives its inputs
// and checks the values it produces.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the path of an expression document, relative to the
	// scenario file. Exactly one of Document and Expr is set.
	Document string `yaml:"document,omitempty"`

	// Expr is an inline expression.
	Expr *exprdoc.Node `yaml:"expr,omitempty"`

	// Persist keeps the value alive in the environment and checks every
	// value through the resolved binding as well.
	Persist bool `yaml:"persist,omitempty"`

	// Writes are applied in order after the initial value is checked.
	Writes []Write `yaml:"writes,omitempty"`

	// Expect holds the checks on the compiled expression.
	Expect Expect `yaml:"expect"`
}

// Write assigns inputs, advances the environment and optionally checks the
// resulting value.
type Write struct {
	// Set maps writable or source names to document values.
	Set map[string]any `yaml:"set"`

	// Cycles is the number of environment cycles to run after Set.
	Cycles int `yaml:"cycles,omitempty"`

	// Expect is the value after the write, if set.
	Expect any `yaml:"expect,omitempty"`
}

// Expect lists the checks made on the built expression. Unset fields are
// not checked.
type Expect struct {
	// Value is the initial value of the expression.
	Value any `yaml:"value,omitempty"`

	// OutputType is the tag of the compiled output, e.g. "Vector".
	OutputType string `yaml:"output_type,omitempty"`

	// Primitives maps primitive names to their block count in the
	// compiled fragment. Primitives not listed are not checked.
	Primitives map[string]int `yaml:"primitives,omitempty"`

	// Cheap is whether a value is available without an environment.
	Cheap *bool `yaml:"cheap,omitempty"`

	// Error is a substring of the expected build or compile error. When
	// set, the other checks are skipped.
	Error string `yaml:"error,omitempty"`
}

func (e Expect) empty() bool {
	return e.Value == nil && e.OutputType == "" && len(e.Primitives) == 0 && e.Cheap == nil && e.Error == ""
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields ("expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) {
		scenario.Document = filepath.Join(filepath.Dir(path), scenario.Document)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Document == "" && s.Expr == nil:
		return fmt.Errorf("one of document or expr is required")
	case s.Document != "" && s.Expr != nil:
		return fmt.Errorf("document and expr are mutually exclusive")
	case s.Document != "":
		if _, err := os.Stat(s.Document); os.IsNotExist(err) {
			return fmt.Errorf("document not found: %s", s.Document)
		}
	}

	checked := !s.Expect.empty()
	for i, w := range s.Writes {
		if len(w.Set) == 0 && w.Cycles == 0 {
			return fmt.Errorf("writes[%d]: set or cycles is required", i)
		}
		if w.Cycles < 0 {
			return fmt.Errorf("writes[%d]: cycles must be non-negative", i)
		}
		if w.Expect != nil {
			checked = true
		}
	}
	if !checked {
		return fmt.Errorf("scenario checks nothing: set expect or a write expect")
	}
	if s.Expect.Error != "" && len(s.Writes) > 0 {
		return fmt.Errorf("writes cannot follow an expected error")
	}
	return nil
}
