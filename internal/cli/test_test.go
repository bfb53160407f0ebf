package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

const sumScenario = `name: vector_sum
description: "Two constant vectors add up"
expr:
  op: add
  args:
    - {op: const, type: vector, value: [1, 2, 3]}
    - {op: const, type: vector, value: [4, 5, 6]}
expect:
  value: [5, 7, 9]
`

func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(jsonOpts()), t.TempDir())
	require.NoError(t, err)

	status, result, _ := decode[TestResult](t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.Scenarios)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), scenariosDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ vector_add")
	assert.Contains(t, out, "✓ framed_point")
	assert.Contains(t, out, "✓ type_error")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(jsonOpts()), scenariosDir, "--filter", "vector_*")
	require.NoError(t, err)

	_, result, _ := decode[TestResult](t, out)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "vector_add", result.Scenarios[0].Name)
	assert.True(t, result.Scenarios[0].Pass)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_sum.yaml", `name: wrong_sum
description: "Expects the wrong sum"
expr:
  op: add
  args:
    - {op: const, type: double, value: 1}
    - {op: const, type: double, value: 2}
expect:
  value: 4
`)
	writeScenario(t, dir, "broken.yaml", "name: [\n")

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ wrong_sum")
	assert.Contains(t, out, "Assertion failed: value")
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "Test Summary: 0 passed, 2 failed, 2 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_sum.yaml", `name: wrong_sum
description: "Expects the wrong output type"
expr: {op: const, type: double, value: 1}
expect:
  output_type: Vector
`)

	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)

	status, result, cliErr := decode[TestResult](t, out)
	assert.Equal(t, "error", status)
	require.NotNil(t, cliErr)
	assert.Equal(t, "E_TEST_FAILED", cliErr.Code)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "vector_sum.yaml", sumScenario)
	golden := filepath.Join(dir, "golden", "vector_sum.golden")

	out, err := execute(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err, out)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"vector_sum"`)

	out, err = execute(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ vector_sum")

	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0o644))
	out, err = execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandUpdateSkipsFailedBuild(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "type_error.yaml", `name: type_error
description: "Rejected while building"
expr:
  op: negate
  args: [{op: const, type: boolean, value: true}]
expect:
  error: "argument 0 is boolean"
`)

	_, err := execute(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "golden", "type_error.golden"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "a.golden"), goldenFilePath(filepath.Join("s", "a.yaml")))
}
