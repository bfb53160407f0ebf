package dataflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// vectorSum builds (1,2,3) + (4,5,6) by hand.
func vectorSum(t *testing.T) (*Fragment, *Block) {
	t.Helper()
	f := NewFragment("root", nil)
	a := addBlock(t, f, "Value::Vector", map[string]string{"Value": "1,2,3"})
	b := addBlock(t, f, "Value::Vector", map[string]string{"Value": "4,5,6"})
	add := addBlock(t, f, "Vector::Add", nil)
	require.NoError(t, f.Connect(out(t, a), in(t, add, "inFirst")))
	require.NoError(t, f.Connect(out(t, b), in(t, add, "inSecond")))
	f.Expose("out", out(t, add))
	return f, add
}

func TestValidateValidFragment(t *testing.T) {
	f, _ := vectorSum(t)
	assert.Empty(t, Validate(f))
}

func TestValidateUnconnectedInput(t *testing.T) {
	f := NewFragment("root", nil)
	a := addBlock(t, f, "Value::Vector", nil)
	add := addBlock(t, f, "Vector::Add", nil)
	require.NoError(t, f.Connect(out(t, a), in(t, add, "inFirst")))

	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnconnectedInput, errs[0].Code)
	assert.Equal(t, "b2.inSecond", errs[0].Field)
}

func TestValidateCollectsAll(t *testing.T) {
	f := NewFragment("root", nil)
	addBlock(t, f, "Vector::Add", nil)
	addBlock(t, f, "Boolean::Not", nil)

	errs := Validate(f)
	assert.Equal(t, []string{ErrUnconnectedInput, ErrUnconnectedInput, ErrUnconnectedInput}, codes(errs))
}

func TestValidateEmptyRequiredParameter(t *testing.T) {
	f := NewFragment("root", nil)
	addBlock(t, f, "Net::ReadDouble", map[string]string{"RemoteNet": "", "Key": "k"})

	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingParameter, errs[0].Code)
	assert.Equal(t, "b1.RemoteNet", errs[0].Field)
}

func TestValidateWiringLoop(t *testing.T) {
	f := NewFragment("root", nil)
	n1 := addBlock(t, f, "Double::Negate", nil)
	n2 := addBlock(t, f, "Double::Negate", nil)
	require.NoError(t, f.Connect(out(t, n1), in(t, n2, "inValue")))
	require.NoError(t, f.Connect(out(t, n2), in(t, n1, "inValue")))

	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrWiringLoop, errs[0].Code)
	assert.Contains(t, errs[0].Message, "b1 -> b2 -> b1")
}

func TestValidateForeignOutput(t *testing.T) {
	other, add := vectorSum(t)
	_ = other

	f := NewFragment("root", nil)
	f.Expose("out", out(t, add))

	errs := Validate(f)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrForeignPort, errs[0].Code)
}

func TestFindCyclesSelfLoop(t *testing.T) {
	f := NewFragment("root", nil)
	n := addBlock(t, f, "Double::Negate", nil)
	require.NoError(t, f.Connect(out(t, n), in(t, n, "inValue")))

	cycles := FindCycles(f)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"b1", "b1"}, cycles[0].Path)
}

func TestFindCyclesDAG(t *testing.T) {
	f, _ := vectorSum(t)
	assert.Empty(t, FindCycles(f))
}

func TestTopologicalOrder(t *testing.T) {
	f := NewFragment("root", nil)
	add := addBlock(t, f, "Vector::Add", nil)
	a := addBlock(t, f, "Value::Vector", nil)
	b := addBlock(t, f, "Value::Vector", nil)
	require.NoError(t, f.Connect(out(t, a), in(t, add, "inFirst")))
	require.NoError(t, f.Connect(out(t, b), in(t, add, "inSecond")))

	order, err := TopologicalOrder(f)
	require.NoError(t, err)
	ids := make([]string, len(order))
	for i, blk := range order {
		ids[i] = blk.ID
	}
	assert.Equal(t, []string{"b2", "b3", "b1"}, ids)
}

func TestTopologicalOrderLoop(t *testing.T) {
	f := NewFragment("root", nil)
	n1 := addBlock(t, f, "Double::Negate", nil)
	n2 := addBlock(t, f, "Double::Negate", nil)
	require.NoError(t, f.Connect(out(t, n1), in(t, n2, "inValue")))
	require.NoError(t, f.Connect(out(t, n2), in(t, n1, "inValue")))

	_, err := TopologicalOrder(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiring loop")
}

func TestCanonicalDocument(t *testing.T) {
	f, _ := vectorSum(t)

	data, err := ir.MarshalCanonical(f.Canonical())
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, `{"blocks":[{"id":"b1","params":{"Value":"1,2,3"},"type":"Value::Vector"}`), s)
	assert.Contains(t, s, `{"from":"b1.outValue","tag":"Vector","to":"b3.inFirst"}`)
	assert.Contains(t, s, `"outputs":[{"name":"out","port":"b3.outValue","tag":"Vector"}]`)

	h1, err := f.Hash()
	require.NoError(t, err)
	g, _ := vectorSum(t)
	h2, err := g.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "identical construction hashes identically")
}

func TestDescribe(t *testing.T) {
	f, _ := vectorSum(t)
	text := f.Describe()
	assert.Contains(t, text, "fragment root\n")
	assert.Contains(t, text, "  block b1 Value::Vector {Value=1,2,3}\n")
	assert.Contains(t, text, "  link b2.outValue -> b3.inSecond [Vector]\n")
	assert.Contains(t, text, "  output out = b3.outValue:Vector\n")
}

func TestTagContext(t *testing.T) {
	tag := NewTag(TypeVector, map[string]string{"frame": "world", "a": "b"})
	assert.Equal(t, `{"a":"b","frame":"world"}`, tag.Context)
	assert.Equal(t, map[string]string{"a": "b", "frame": "world"}, tag.ContextMap())
	assert.Equal(t, Plain(TypeVector), tag.Plain())
	assert.True(t, tag.Plain().IsPlain())
	assert.Equal(t, Plain(TypeDouble), NewTag(TypeDouble, nil))
	assert.Equal(t, `Vector{"a":"b","frame":"world"}`, tag.String())
	assert.True(t, TypeTwist.Valid())
	assert.False(t, Type("Float").Valid())
}
