package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_AllScenariosPass(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".yaml")
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_VectorAdd(t *testing.T) {
	result, err := Run(loadScenario(t, "vector_add"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, exprdoc.Vector, result.Type)
	assert.Equal(t, "Vector", result.OutputType)
	assert.True(t, result.Cheap)
	assert.Equal(t, map[string]int{"Value::Vector": 2, "Vector::Add": 1}, result.Primitives)
	assert.Equal(t, []exprdoc.Rendered{{Type: exprdoc.Vector, Value: "5,7,9"}}, result.Values)
	require.NotNil(t, result.Fragment)
}

func TestRun_TraceOrder(t *testing.T) {
	result, err := Run(loadScenario(t, "source_threshold"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var types []string
	for i, e := range result.Trace {
		types = append(types, e.Type)
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, []string{EventValue, EventSet, EventCycle, EventValue}, types)
	assert.Equal(t, "a", result.Trace[1].Name)
	assert.Equal(t, "writes[0]", result.Trace[3].Name)
	assert.Equal(t, "-1", result.Trace[3].Value.Value)
}

func TestRun_PersistRunsACyclePerWrite(t *testing.T) {
	result, err := Run(loadScenario(t, "persisted_source"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var cycles int
	for _, e := range result.Trace {
		if e.Type == EventCycle {
			cycles++
		}
	}
	assert.Equal(t, 2, cycles, "one after persisting, one after the write")
	assert.Equal(t, []exprdoc.Rendered{
		{Type: exprdoc.Double, Value: "-2"},
		{Type: exprdoc.Double, Value: "-5"},
	}, result.Values)
}

func TestRun_FailedExpectations(t *testing.T) {
	cheap := false
	s := &Scenario{
		Name:        "wrong",
		Description: "every expectation is wrong",
		Expr: &exprdoc.Node{Op: "add", Args: []*exprdoc.Node{
			{Op: "const", Type: "double", Value: 1},
			{Op: "writable", Name: "x", Type: "double", Value: 1},
		}},
		Writes: []Write{{Set: map[string]any{"x": 2}, Expect: 4}},
		Expect: Expect{
			Value:      3,
			OutputType: "Vector",
			Primitives: map[string]int{"Double::Add": 2},
			Cheap:      &cheap,
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "Assertion failed: value (writes[0])")
	assert.Contains(t, joined, "Assertion failed: output_type")
	assert.Contains(t, joined, "Double::Add: want 2, got 1")
	assert.Contains(t, joined, "Assertion failed: cheap")
	assert.Contains(t, joined, "Assertion failed: value (initial)")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := &Scenario{
		Name:        "no_error",
		Description: "builds fine",
		Expr:        &exprdoc.Node{Op: "const", Type: "double", Value: 1},
		Expect:      Expect{Error: "boom"},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected error containing "boom"`)
}

func TestRun_BuildErrorFailsScenario(t *testing.T) {
	s := &Scenario{
		Name:        "broken",
		Description: "unknown op",
		Expr:        &exprdoc.Node{Op: "frobnicate"},
		Expect:      Expect{OutputType: "Double"},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "build: expr (frobnicate): unknown op")
	assert.Nil(t, result.Fragment)
}

func TestRun_UnknownInput(t *testing.T) {
	s := &Scenario{
		Name:        "unknown_input",
		Description: "writes an input the expression does not have",
		Expr:        &exprdoc.Node{Op: "const", Type: "double", Value: 1},
		Writes:      []Write{{Set: map[string]any{"y": 1}}},
		Expect:      Expect{Value: 1},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `writes[0]: no input named "y"`)
}

func TestRun_MissingDocument(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Document: filepath.Join(t.TempDir(), "gone.cue")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load document")
}
