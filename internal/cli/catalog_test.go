package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
)

func TestCatalogCommand_Text(t *testing.T) {
	out, err := execute(t, NewCatalogCommand(textOpts()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, sim.Catalog().Len())
	assert.Contains(t, lines, "Sim::SourceDouble() -> outValue Double [Name!]")
}

func TestCatalogCommand_Prefix(t *testing.T) {
	out, err := execute(t, NewCatalogCommand(jsonOpts()), "--prefix", "Vector::")
	require.NoError(t, err)

	status, prims, _ := decode[[]PrimitiveInfo](t, out)
	assert.Equal(t, "ok", status)
	require.NotEmpty(t, prims)

	names := make([]string, len(prims))
	for i, p := range prims {
		assert.True(t, strings.HasPrefix(p.Name, "Vector::"), p.Name)
		names[i] = p.Name
	}
	assert.Contains(t, names, "Vector::Add")
	assert.IsIncreasing(t, names)
}

func TestCatalogCommand_NoMatch(t *testing.T) {
	out, err := execute(t, NewCatalogCommand(textOpts()), "--prefix", "Gripper::")
	require.NoError(t, err)
	assert.Equal(t, "No primitives found.\n", out)

	out, err = execute(t, NewCatalogCommand(jsonOpts()), "--prefix", "Gripper::")
	require.NoError(t, err)
	_, prims, _ := decode[[]PrimitiveInfo](t, out)
	assert.NotNil(t, prims)
	assert.Empty(t, prims)
}

func TestListPrimitives_Params(t *testing.T) {
	prims := listPrimitives(sim.Catalog(), "Sim::SourceVector")
	require.Len(t, prims, 1)
	assert.Equal(t, []string{"outValue Vector"}, prims[0].Outputs)
	assert.Empty(t, prims[0].Inputs)
	assert.Equal(t, []string{"Name!"}, prims[0].Params)
}
