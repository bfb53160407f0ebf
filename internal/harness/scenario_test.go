package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Inline(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "source_threshold.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "source_threshold", s.Name)
	require.NotNil(t, s.Expr)
	assert.Equal(t, "conditional", s.Expr.Op)
	require.Len(t, s.Writes, 1)
	assert.Equal(t, 1, s.Writes[0].Cycles)
	assert.Equal(t, -1, s.Writes[0].Expect)
	assert.Equal(t, 1, s.Expect.Primitives["Double::Greater"])
	require.NotNil(t, s.Expect.Cheap)
	assert.False(t, *s.Expect.Cheap)
}

func TestLoadScenario_DocumentRelativeToScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "framed_point.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "documents", "tool_point.cue"), s.Document)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `
name: typo
description: "misspelled expect"
expr: {op: const, type: double, value: 1}
expects: {value: 1}
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nexpr: {op: const, type: double, value: 1}\nexpect: {value: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nexpr: {op: const, type: double, value: 1}\nexpect: {value: 1}\n",
			wantErr: "description is required",
		},
		{
			name:    "no expression",
			content: "name: n\ndescription: d\nexpect: {value: 1}\n",
			wantErr: "one of document or expr is required",
		},
		{
			name:    "both expression forms",
			content: "name: n\ndescription: d\ndocument: x.cue\nexpr: {op: const, type: double, value: 1}\nexpect: {value: 1}\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing document",
			content: "name: n\ndescription: d\ndocument: nowhere.cue\nexpect: {value: 1}\n",
			wantErr: "document not found",
		},
		{
			name:    "nothing checked",
			content: "name: n\ndescription: d\nexpr: {op: const, type: double, value: 1}\n",
			wantErr: "scenario checks nothing",
		},
		{
			name:    "empty write",
			content: "name: n\ndescription: d\nexpr: {op: const, type: double, value: 1}\nwrites: [{expect: 1}]\n",
			wantErr: "writes[0]: set or cycles is required",
		},
		{
			name:    "writes after error",
			content: "name: n\ndescription: d\nexpr: {op: const, type: double, value: 1}\nwrites: [{cycles: 1}]\nexpect: {error: boom}\n",
			wantErr: "writes cannot follow an expected error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_WriteExpectIsEnough(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: n
description: d
expr: {op: writable, name: x, type: double, value: 1}
writes:
  - set: {x: 2}
    expect: 2
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.True(t, s.Expect.empty())
}
