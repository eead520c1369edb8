package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the composed SQL against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. A failing scenario or a
// golden mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%v", scenario.Name, result.Errors)
	}
	if result.SQL == "" {
		return result, fmt.Errorf("scenario %s produced no SQL", scenario.Name)
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result's SQL against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.SQL))
}
