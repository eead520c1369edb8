package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario over one composition definition.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definition is the path to a composition definition (.yaml or .cue).
	// Relative paths are resolved against the scenario file's directory.
	Definition string `yaml:"definition"`

	// Seed lists SQL scripts executed in order before any stage is queried.
	Seed []string `yaml:"seed,omitempty"`

	// Strict rejects fragments without a terminal select.
	Strict bool `yaml:"strict,omitempty"`

	// ExpectError, when set, requires composition to fail with an error
	// whose message contains this text.
	ExpectError string `yaml:"expect_error,omitempty"`

	// ExpectExecError, when set, requires composition to succeed and the
	// final statement to fail on execution with a message containing this
	// text.
	ExpectExecError string `yaml:"expect_exec_error,omitempty"`

	// Assertions are checked against the executed stages.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion checks the rows of one stage.
type Assertion struct {
	// Type is one of row_count, columns, units, row.
	Type string `yaml:"type"`

	// Stage names the CTE to query. Empty means the final stage.
	Stage string `yaml:"stage,omitempty"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`

	// Columns is the expected column list, in order (columns).
	Columns []string `yaml:"columns,omitempty"`

	// Units is the expected set of rand_unit_id values, in any order (units).
	Units []string `yaml:"units,omitempty"`

	// Where selects exactly one row by column equality (row).
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect lists column values of the selected row. Subset match (row).
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount = "row_count"
	AssertColumns  = "columns"
	AssertUnits    = "units"
	AssertRow      = "row"
)

// LoadScenario reads and parses a scenario YAML file. Definition and seed
// paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields or is missing required fields.
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

	baseDir := filepath.Dir(path)
	scenario.Definition = resolvePath(baseDir, scenario.Definition)
	for i, seed := range scenario.Seed {
		scenario.Seed[i] = resolvePath(baseDir, seed)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}

	if s.Description == "" {
		return errors.New("description is required")
	}

	if s.Definition == "" {
		return errors.New("definition is required")
	}
	if _, err := os.Stat(s.Definition); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("definition file not found: %s", s.Definition)
	}

	for _, seed := range s.Seed {
		if _, err := os.Stat(seed); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("seed file not found: %s", seed)
		}
	}

	if s.ExpectError != "" && s.ExpectExecError != "" {
		return errors.New("expect_error and expect_exec_error are mutually exclusive")
	}

	if s.ExpectError != "" || s.ExpectExecError != "" {
		if len(s.Assertions) > 0 {
			return errors.New("assertions cannot be combined with an expected error")
		}
		return nil
	}

	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertColumns:
		if len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: columns list is required for columns", index)
		}
	case AssertUnits:
		if a.Units == nil {
			return fmt.Errorf("assertions[%d]: units list is required for units (use [] for none)", index)
		}
	case AssertRow:
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for row", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for row", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
