package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
)

var (
	base   = geom.NewFrame("base")
	tool   = geom.NewFrame("tool")
	flange = geom.NewFrame("flange")
)

func velocityCtx(moving, reference geom.Frame) geom.VelocityContext {
	return geom.VelocityContext{
		Moving:      moving,
		Reference:   reference,
		Pivot:       geom.Point{Frame: tool},
		Orientation: base,
	}
}

func TestPointsCarryTheirFrame(t *testing.T) {
	p, err := AsPoint(ConstVector(1, 2, 3), base)
	require.NoError(t, err)
	assert.Equal(t, PointTag(base), p.Node().Tag())
	assert.Equal(t, dataflow.TypeVector, p.Node().Tag().Type)

	v, ok := p.CheapValue()
	require.True(t, ok)
	assert.Equal(t, geom.Point{Frame: base, Vector: geom.V(1, 2, 3)}, v)

	back, err := PointVector(p)
	require.NoError(t, err)
	assert.True(t, back.Node().Tag().IsPlain())
	raw, ok := back.CheapValue()
	require.True(t, ok)
	assert.Equal(t, geom.V(1, 2, 3), raw)
}

func TestDisplace(t *testing.T) {
	p := ConstPoint(base, geom.V(1, 0, 0))
	d := ConstDirection(base, geom.V(0, 1, 0))

	moved, err := Displace(p, d)
	require.NoError(t, err)
	v, ok := moved.CheapValue()
	require.True(t, ok)
	assert.Equal(t, geom.Point{Frame: base, Vector: geom.V(1, 1, 0)}, v)

	_, err = Displace(p, ConstDirection(tool, geom.V(0, 1, 0)))
	assert.True(t, IsConstructionError(err, ErrCodeContextMismatch))
}

func TestAddDirections(t *testing.T) {
	sum, err := AddDirections(ConstDirection(base, geom.V(1, 0, 0)), ConstDirection(base, geom.V(0, 0, 1)))
	require.NoError(t, err)
	v, ok := sum.CheapValue()
	require.True(t, ok)
	assert.Equal(t, geom.Direction{Orientation: base, Vector: geom.V(1, 0, 1)}, v)

	_, err = AddDirections(ConstDirection(base, geom.V(1, 0, 0)), ConstDirection(tool, geom.V(1, 0, 0)))
	assert.True(t, IsConstructionError(err, ErrCodeContextMismatch))
}

func TestAddVelocityChainsFrames(t *testing.T) {
	// flange relative to base, then tool relative to flange
	a := ConstVelocity(velocityCtx(flange, base), geom.Twist{Linear: geom.V(1, 0, 0)})
	b := ConstVelocity(velocityCtx(tool, flange), geom.Twist{Linear: geom.V(0, 1, 0)})

	sum, err := AddVelocity(a, b)
	require.NoError(t, err)
	v, ok := sum.CheapValue()
	require.True(t, ok)
	assert.Equal(t, velocityCtx(tool, base), v.Context)
	assert.Equal(t, geom.V(1, 1, 0), v.Twist.Linear)
	assert.Equal(t, VelocityTag(velocityCtx(tool, base)), sum.Node().Tag())

	_, err = AddVelocity(b, a)
	assert.True(t, IsConstructionError(err, ErrCodeContextMismatch))

	other := velocityCtx(tool, flange)
	other.Orientation = tool
	_, err = AddVelocity(a, ConstVelocity(other, geom.Twist{}))
	assert.True(t, IsConstructionError(err, ErrCodeContextMismatch))
}

func TestInvertVelocitySwapsFrames(t *testing.T) {
	v := ConstVelocity(velocityCtx(tool, base), geom.Twist{Linear: geom.V(1, 0, 0), Angular: geom.V(0, 0, 1)})
	inv, err := InvertVelocity(v)
	require.NoError(t, err)

	got, ok := inv.CheapValue()
	require.True(t, ok)
	assert.Equal(t, velocityCtx(base, tool), got.Context)
	assert.True(t, got.Twist.ApproxEqual(geom.Twist{Linear: geom.V(-1, 0, 0), Angular: geom.V(0, 0, -1)}))
}

func TestChangeVelocityOrientationAndPivot(t *testing.T) {
	v := ConstVelocity(velocityCtx(tool, base), geom.Twist{Angular: geom.V(0, 0, 1)})

	offset := ConstDirection(base, geom.V(1, 0, 0))
	newPivot := geom.Point{Frame: tool, Vector: geom.V(1, 0, 0)}
	moved, err := ChangeVelocityPivot(v, offset, newPivot)
	require.NoError(t, err)
	got, ok := moved.CheapValue()
	require.True(t, ok)
	assert.Equal(t, newPivot, got.Context.Pivot)
	assert.True(t, got.Twist.Linear.ApproxEqual(geom.V(0, 1, 0)), got.Twist)

	_, err = ChangeVelocityPivot(v, ConstDirection(tool, geom.V(1, 0, 0)), newPivot)
	assert.True(t, IsConstructionError(err, ErrCodeContextMismatch))

	quarter := ConstRotation(geom.AxisAngle(geom.V(0, 0, 1), 1.5707963267948966))
	lin := ConstVelocity(velocityCtx(tool, base), geom.Twist{Linear: geom.V(1, 0, 0)})
	turned, err := ChangeVelocityOrientation(lin, quarter, flange)
	require.NoError(t, err)
	got, ok = turned.CheapValue()
	require.True(t, ok)
	assert.Equal(t, flange, got.Context.Orientation)
	assert.True(t, got.Twist.Linear.ApproxEqual(geom.V(0, 1, 0)), got.Twist)
}

func TestVelocityRetagRoundTrip(t *testing.T) {
	tw := ConstTwist(geom.Twist{Linear: geom.V(0, 0, 2)})
	vel, err := AsVelocity(tw, velocityCtx(tool, base))
	require.NoError(t, err)
	got, ok := vel.CheapValue()
	require.True(t, ok)
	assert.Equal(t, velocityCtx(tool, base), got.Context)

	plain, err := VelocityTwist(vel)
	require.NoError(t, err)
	assert.Equal(t, dataflow.Plain(dataflow.TypeTwist), plain.Node().Tag())
	twist, ok := plain.CheapValue()
	require.True(t, ok)
	assert.Equal(t, geom.V(0, 0, 2), twist.Linear)
}
