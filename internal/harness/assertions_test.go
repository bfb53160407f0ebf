package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
)

func resultWith(t exprdoc.ValueType, v any) *Result {
	r := NewResult()
	r.Type = t
	r.OutputType = "Vector"
	r.Cheap = true
	r.Primitives = map[string]int{"Value::Vector": 2, "Vector::Add": 1}
	r.raw = []any{v}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	cheap := true
	r := resultWith(exprdoc.Vector, geom.V(5, 7, 9))
	errs := EvaluateAssertions(r, Expect{
		Value:      []any{5, 7, 9},
		OutputType: "Vector",
		Primitives: map[string]int{"Vector::Add": 1, "Double::Add": 0},
		Cheap:      &cheap,
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_EmptyExpect(t *testing.T) {
	assert.Empty(t, EvaluateAssertions(resultWith(exprdoc.Vector, geom.V(0, 0, 0)), Expect{}))
}

func TestEvaluateAssertions_ValueTolerance(t *testing.T) {
	r := resultWith(exprdoc.Double, 0.1+0.2)
	assert.Empty(t, EvaluateAssertions(r, Expect{Value: 0.3}))
}

func TestEvaluateAssertions_ValueMismatch(t *testing.T) {
	r := resultWith(exprdoc.Vector, geom.V(5, 7, 9))
	errs := EvaluateAssertions(r, Expect{Value: "5,7,8"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: value (initial)")
	assert.Contains(t, errs[0], "Actual: vector(5,7,9)")
}

func TestEvaluateAssertions_UnparseableValue(t *testing.T) {
	r := resultWith(exprdoc.Vector, geom.V(5, 7, 9))
	errs := EvaluateAssertions(r, Expect{Value: []any{5, 7}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "expected 3 components")
}

func TestEvaluateAssertions_NoValue(t *testing.T) {
	r := NewResult()
	errs := EvaluateAssertions(r, Expect{Value: 1})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no value")
}

func TestEvaluateAssertions_Primitives(t *testing.T) {
	r := resultWith(exprdoc.Vector, geom.V(5, 7, 9))
	errs := EvaluateAssertions(r, Expect{Primitives: map[string]int{"Vector::Add": 2, "Value::Vector": 1}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Value::Vector: want 1, got 2; Vector::Add: want 2, got 1")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertCheap, Expected: "false", Actual: "true"}
	assert.Equal(t, "Assertion failed: cheap\n  Expected: false\n  Actual: true\n", err.Error())

	err.Step = "writes[1]"
	assert.Contains(t, err.Error(), "Assertion failed: cheap (writes[1])")
}
