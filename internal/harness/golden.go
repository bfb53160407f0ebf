package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// GoldenDir is where RunWithGolden keeps its snapshots, relative to the
// test's package directory.
const GoldenDir = "testdata/golden"

// Snapshot renders the outcome of a run as canonical JSON: the compiled
// fragment, the output tag and the trace. Two runs of the same scenario
// produce identical bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	if result.Fragment == nil {
		return nil, fmt.Errorf("scenario %s has no compiled fragment", name)
	}

	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		m := map[string]any{
			"type": e.Type,
			"seq":  e.Seq,
		}
		if e.Name != "" {
			m["name"] = e.Name
		}
		if e.Input != nil {
			m["input"] = fmt.Sprint(e.Input)
		}
		if e.Value != nil {
			v := map[string]any{
				"type":  string(e.Value.Type),
				"value": e.Value.Value,
			}
			if len(e.Value.Context) > 0 {
				v["context"] = ir.Strings(e.Value.Context)
			}
			m["value"] = v
		}
		trace[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"output_type":   result.OutputType,
		"fragment":      result.Fragment.Canonical(),
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against the
// golden file {scenario.Name}.golden, stored in GoldenDir unless opts say
// otherwise.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	opts = append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)
	g := goldie.New(t, opts...)
	g.Assert(t, scenarioName, data)
	return nil
}
