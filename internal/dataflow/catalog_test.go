package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := DefaultCatalog()
	require.NotNil(t, c)
	assert.Equal(t, 57, c.Len())
	assert.Same(t, c, DefaultCatalog(), "catalog is loaded once")
}

func TestDefaultCatalogVectorAdd(t *testing.T) {
	p, ok := DefaultCatalog().Lookup("Vector::Add")
	require.True(t, ok)

	assert.Equal(t, []PortSpec{
		{Name: "inFirst", Type: TypeVector},
		{Name: "inSecond", Type: TypeVector},
	}, p.Inputs)
	assert.Equal(t, []PortSpec{{Name: "outValue", Type: TypeVector}}, p.Outputs)
	assert.Empty(t, p.Params)
}

func TestDefaultCatalogFamilies(t *testing.T) {
	c := DefaultCatalog()
	for _, typ := range Types {
		for _, name := range []string{
			"Value::" + string(typ),
			string(typ) + "::Conditional",
			string(typ) + "::AtTime",
			"Net::Read" + string(typ),
			"Net::Write" + string(typ),
		} {
			_, ok := c.Lookup(name)
			assert.True(t, ok, "missing %s", name)
		}
	}
}

func TestDefaultCatalogParams(t *testing.T) {
	c := DefaultCatalog()

	value, ok := c.Lookup("Value::Vector")
	require.True(t, ok)
	ps, ok := value.Param("Value")
	require.True(t, ok)
	assert.Equal(t, "0,0,0", ps.Default)
	assert.False(t, ps.Required)

	read, ok := c.Lookup("Net::ReadTransformation")
	require.True(t, ok)
	for _, name := range []string{"RemoteNet", "Key"} {
		ps, ok := read.Param(name)
		require.True(t, ok, name)
		assert.True(t, ps.Required, name)
	}
	out, ok := read.Output("outValue")
	require.True(t, ok)
	assert.Equal(t, TypeTransformation, out.Type)

	cond, ok := c.Lookup("Twist::Conditional")
	require.True(t, ok)
	in, ok := cond.Input("inCondition")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, in.Type)
}

func TestLoadCatalogRejectsUnknownType(t *testing.T) {
	_, err := LoadCatalog([]byte(`
primitive: "Odd::Thing": {
	in: inValue: "Float"
	out: outValue: "Double"
}
`))
	require.Error(t, err)

	var ce *CatalogError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Odd::Thing.in.inValue", ce.Field)
}

func TestLoadCatalogRequiresPrimitives(t *testing.T) {
	_, err := LoadCatalog([]byte(`other: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no primitives")
}

func TestLoadCatalogSyntaxError(t *testing.T) {
	_, err := LoadCatalog([]byte(`primitive: {`))
	assert.Error(t, err)
}

func TestCatalogExtend(t *testing.T) {
	base := DefaultCatalog()
	ext := base.Extend(Primitive{
		Name:    "Test::Source",
		Outputs: []PortSpec{{Name: "outValue", Type: TypeDouble}},
		Params:  []ParamSpec{{Name: "Name", Required: true}},
	})

	_, ok := ext.Lookup("Test::Source")
	assert.True(t, ok)
	_, ok = base.Lookup("Test::Source")
	assert.False(t, ok, "extend must not mutate the base catalog")
	assert.Equal(t, base.Len()+1, ext.Len())
	assert.Contains(t, ext.Names(), "Test::Source")
}
