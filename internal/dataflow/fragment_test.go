package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addBlock(t *testing.T, f *Fragment, typ string, params map[string]string) *Block {
	t.Helper()
	b, err := f.AddBlock(typ, params)
	require.NoError(t, err)
	return b
}

func out(t *testing.T, b *Block) Port {
	t.Helper()
	p, err := b.Out("outValue")
	require.NoError(t, err)
	return p
}

func in(t *testing.T, b *Block, name string) Input {
	t.Helper()
	i, err := b.In(name)
	require.NoError(t, err)
	return i
}

func TestAddBlockDefaults(t *testing.T) {
	f := NewFragment("root", nil)
	b := addBlock(t, f, "Value::Vector", nil)

	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, map[string]string{"Value": "0,0,0"}, b.Params)
	assert.Equal(t, "Value::Vector", b.Primitive().Name)

	b2 := addBlock(t, f, "Value::Vector", map[string]string{"Value": "1,2,3"})
	assert.Equal(t, "b2", b2.ID)
	assert.Equal(t, "1,2,3", b2.Params["Value"])
}

func TestAddBlockErrors(t *testing.T) {
	f := NewFragment("root", nil)

	tests := []struct {
		name   string
		typ    string
		params map[string]string
		code   string
	}{
		{"unknown primitive", "Vector::Teleport", nil, ErrCodeUnknownPrimitive},
		{"unknown parameter", "Vector::Add", map[string]string{"Gain": "2"}, ErrCodeBadParameter},
		{"missing required", "Net::ReadVector", map[string]string{"Key": "k"}, ErrCodeBadParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.AddBlock(tt.typ, tt.params)
			var pe *PrimitiveError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
	assert.Empty(t, f.Blocks(), "failed instantiations add nothing")
}

func TestConnectMatchingTags(t *testing.T) {
	f := NewFragment("root", nil)
	a := addBlock(t, f, "Value::Vector", map[string]string{"Value": "1,2,3"})
	b := addBlock(t, f, "Value::Vector", map[string]string{"Value": "4,5,6"})
	add := addBlock(t, f, "Vector::Add", nil)

	require.NoError(t, f.Connect(out(t, a), in(t, add, "inFirst")))
	require.NoError(t, f.Connect(out(t, b), in(t, add, "inSecond")))

	assert.True(t, add.Fed("inFirst"))
	assert.True(t, add.Fed("inSecond"))
	require.Len(t, f.Links(), 2)
	assert.Equal(t, Plain(TypeVector), f.Links()[0].Tag)
}

func TestConnectTagMismatch(t *testing.T) {
	f := NewFragment("root", nil)
	d := addBlock(t, f, "Value::Double", nil)
	add := addBlock(t, f, "Vector::Add", nil)

	err := f.Connect(out(t, d), in(t, add, "inFirst"))
	require.Error(t, err)
	assert.True(t, IsTagMismatch(err))
	assert.False(t, add.Fed("inFirst"), "a rejected connection wires nothing")
	assert.Empty(t, f.Links())
}

func TestConnectContextMismatch(t *testing.T) {
	f := NewFragment("root", nil)
	v := addBlock(t, f, "Value::Vector", nil)
	add := addBlock(t, f, "Vector::Add", nil)

	inWorld, err := in(t, add, "inFirst").Expect(NewTag(TypeVector, map[string]string{"frame": "world"}))
	require.NoError(t, err)

	// plain port into a frame-tagged input
	err = f.Connect(out(t, v), inWorld)
	assert.True(t, IsTagMismatch(err))

	// other frame
	inBase, err := out(t, v).Retag(NewTag(TypeVector, map[string]string{"frame": "base"}))
	require.NoError(t, err)
	err = f.Connect(inBase, inWorld)
	assert.True(t, IsTagMismatch(err))

	// same frame
	atWorld, err := out(t, v).Retag(NewTag(TypeVector, map[string]string{"frame": "world"}))
	require.NoError(t, err)
	assert.NoError(t, f.Connect(atWorld, inWorld))
}

func TestConnectTwiceRejected(t *testing.T) {
	f := NewFragment("root", nil)
	a := addBlock(t, f, "Value::Double", nil)
	neg := addBlock(t, f, "Double::Negate", nil)

	require.NoError(t, f.Connect(out(t, a), in(t, neg, "inValue")))
	err := f.Connect(out(t, a), in(t, neg, "inValue"))
	var we *WiringError
	require.ErrorAs(t, err, &we)
	assert.Contains(t, we.Message, "already connected")
}

func TestConnectUnrelatedFragment(t *testing.T) {
	f := NewFragment("one", nil)
	g := NewFragment("two", nil)
	a := addBlock(t, f, "Value::Double", nil)
	neg := addBlock(t, g, "Double::Negate", nil)

	err := g.Connect(out(t, a), in(t, neg, "inValue"))
	var we *WiringError
	require.ErrorAs(t, err, &we)
}

func TestBlockUnknownPorts(t *testing.T) {
	f := NewFragment("root", nil)
	b := addBlock(t, f, "Vector::Add", nil)

	_, err := b.In("inThird")
	assert.Error(t, err)
	_, err = b.Out("outOther")
	assert.Error(t, err)
}

func TestRetagKeepsOutput(t *testing.T) {
	f := NewFragment("root", nil)
	v := addBlock(t, f, "Value::Vector", nil)
	p := out(t, v)

	q, err := p.Retag(NewTag(TypeVector, map[string]string{"frame": "flange"}))
	require.NoError(t, err)
	assert.Same(t, p.Output(), q.Output())
	assert.NotEqual(t, p.Tag(), q.Tag())
	assert.Len(t, f.Blocks(), 1)

	_, err = p.Retag(Plain(TypeDouble))
	assert.True(t, IsTagMismatch(err), "retag cannot change the value type")
}

func TestBeginCommit(t *testing.T) {
	root := NewFragment("root", nil)
	child := root.Begin("child")
	b := addBlock(t, child, "Value::Double", nil)
	child.Remember("k", out(t, b))

	assert.Empty(t, root.Blocks(), "uncommitted work is invisible to the parent")
	_, ok := root.Lookup("k")
	assert.False(t, ok)

	require.NoError(t, child.Commit())
	assert.Len(t, root.Blocks(), 1)
	assert.Len(t, root.Children(), 1)
	p, ok := root.Lookup("k")
	require.True(t, ok)
	assert.Same(t, b, p.Output().Block)

	assert.Error(t, child.Commit(), "second commit is rejected")
	assert.Error(t, root.Commit(), "root has no parent")
}

func TestDiscardedChildLeavesParentUnchanged(t *testing.T) {
	root := NewFragment("root", nil)
	first := root.Begin("first")
	addBlock(t, first, "Value::Double", nil)
	require.NoError(t, first.Commit())

	failed := root.Begin("failed")
	addBlock(t, failed, "Value::Double", nil)
	failed.Remember("lost", Port{})
	// never committed

	assert.Len(t, root.Blocks(), 1)
	_, ok := root.Lookup("lost")
	assert.False(t, ok)
}

func TestLookupSeesAncestors(t *testing.T) {
	root := NewFragment("root", nil)
	b := addBlock(t, root, "Value::Double", nil)
	root.Remember("shared", out(t, b))

	grandchild := root.Begin("child").Begin("grandchild")
	p, ok := grandchild.Lookup("shared")
	require.True(t, ok)
	assert.Same(t, b, p.Output().Block)

	// wiring from an ancestor's port is allowed
	neg := addBlock(t, grandchild, "Double::Negate", nil)
	assert.NoError(t, grandchild.Connect(p, in(t, neg, "inValue")))
}

func TestEmptyChildNotAttached(t *testing.T) {
	root := NewFragment("root", nil)
	child := root.Begin("retag")
	child.Remember("k", Port{})
	require.NoError(t, child.Commit())

	assert.Empty(t, root.Children())
	_, ok := root.Lookup("k")
	assert.True(t, ok, "memo entries of empty children still publish")
}

func TestExposeAndCount(t *testing.T) {
	f := NewFragment("root", nil)
	a := addBlock(t, f, "Value::Vector", nil)
	b := addBlock(t, f, "Value::Vector", nil)
	add := addBlock(t, f, "Vector::Add", nil)
	require.NoError(t, f.Connect(out(t, a), in(t, add, "inFirst")))
	require.NoError(t, f.Connect(out(t, b), in(t, add, "inSecond")))

	f.Expose("out", out(t, a))
	f.Expose("out", out(t, add))

	outs := f.Outputs()
	require.Len(t, outs, 1, "exposing the same name replaces the port")
	assert.Same(t, add, outs[0].Port.Output().Block)

	assert.Equal(t, map[string]int{"Value::Vector": 2, "Vector::Add": 1}, f.Count())
}
