package sensor

import (
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
)

// Point, direction and velocity operator kinds.
const (
	KindDirectionAdd              = "direction.add"
	KindPointDisplace             = "point.displace"
	KindVelocityAdd               = "velocity.add"
	KindVelocityInvert            = "velocity.invert"
	KindVelocityChangeOrientation = "velocity.change_orientation"
	KindVelocityChangePivot       = "velocity.change_pivot"
)

// AsPoint interprets v as a point in frame. No computation is added.
func AsPoint(v VectorSensor, frame geom.Frame) (PointSensor, error) {
	if err := requireOperands(KindReinterpret, v.n); err != nil {
		return PointSensor{}, err
	}
	return retag[geom.Point](v.n, PointTag(frame))
}

// AsDirection interprets v as a direction in orientation.
func AsDirection(v VectorSensor, orientation geom.Frame) (DirectionSensor, error) {
	if err := requireOperands(KindReinterpret, v.n); err != nil {
		return DirectionSensor{}, err
	}
	return retag[geom.Direction](v.n, DirectionTag(orientation))
}

// PointVector drops the frame of p.
func PointVector(p PointSensor) (VectorSensor, error) {
	if err := requireOperands(KindReinterpret, p.n); err != nil {
		return VectorSensor{}, err
	}
	return retag[geom.Vector](p.n, p.n.tag.Plain())
}

// DirectionVector drops the orientation of d.
func DirectionVector(d DirectionSensor) (VectorSensor, error) {
	if err := requireOperands(KindReinterpret, d.n); err != nil {
		return VectorSensor{}, err
	}
	return retag[geom.Vector](d.n, d.n.tag.Plain())
}

// AsVelocity interprets t as a velocity with context c.
func AsVelocity(t TwistSensor, c geom.VelocityContext) (VelocitySensor, error) {
	if err := requireOperands(KindReinterpret, t.n); err != nil {
		return VelocitySensor{}, err
	}
	return retag[geom.Velocity](t.n, VelocityTag(c))
}

// VelocityTwist drops the context of v.
func VelocityTwist(v VelocitySensor) (TwistSensor, error) {
	if err := requireOperands(KindReinterpret, v.n); err != nil {
		return TwistSensor{}, err
	}
	return retag[geom.Twist](v.n, v.n.tag.Plain())
}

// AddDirections returns a + b. Both must be expressed in the same orientation.
func AddDirections(a, b DirectionSensor) (DirectionSensor, error) {
	if err := sameTag(KindDirectionAdd, a.n, b.n); err != nil {
		return DirectionSensor{}, err
	}
	return derive[geom.Direction](KindDirectionAdd, a.n.tag, nil,
		binary(func(x, y geom.Direction) geom.Direction {
			return geom.Direction{Orientation: x.Orientation, Vector: x.Vector.Add(y.Vector)}
		}), a.n, b.n)
}

// Displace moves p along d. d must be expressed in p's frame.
func Displace(p PointSensor, d DirectionSensor) (PointSensor, error) {
	if err := requireOperands(KindPointDisplace, p.n, d.n); err != nil {
		return PointSensor{}, err
	}
	frame := p.n.tag.ContextMap()[CtxFrame]
	orientation := d.n.tag.ContextMap()[CtxOrientation]
	if frame != orientation {
		return PointSensor{}, constructionError(ErrCodeContextMismatch, KindPointDisplace,
			"direction in %q cannot displace point in %q", orientation, frame)
	}
	return derive[geom.Point](KindPointDisplace, p.n.tag, nil,
		binary(func(p geom.Point, d geom.Direction) geom.Point {
			return geom.Point{Frame: p.Frame, Vector: p.Vector.Add(d.Vector)}
		}), p.n, d.n)
}

// AddVelocity chains a (moving M relative to R) and b (moving N relative
// to M) into the velocity of N relative to R. The moving frame of a must
// be the reference frame of b, and both must share pivot and orientation.
func AddVelocity(a, b VelocitySensor) (VelocitySensor, error) {
	if err := requireOperands(KindVelocityAdd, a.n, b.n); err != nil {
		return VelocitySensor{}, err
	}
	ca, err := velocityContext(a.n.tag)
	if err != nil {
		return VelocitySensor{}, constructionError(ErrCodeBadArgument, KindVelocityAdd, "%v", err)
	}
	cb, err := velocityContext(b.n.tag)
	if err != nil {
		return VelocitySensor{}, constructionError(ErrCodeBadArgument, KindVelocityAdd, "%v", err)
	}
	switch {
	case ca.Moving != cb.Reference:
		return VelocitySensor{}, constructionError(ErrCodeContextMismatch, KindVelocityAdd,
			"moving frame %q of first operand is not the reference frame %q of second", ca.Moving, cb.Reference)
	case ca.Pivot != cb.Pivot:
		return VelocitySensor{}, constructionError(ErrCodeContextMismatch, KindVelocityAdd,
			"pivot points differ: %v vs %v", ca.Pivot, cb.Pivot)
	case ca.Orientation != cb.Orientation:
		return VelocitySensor{}, constructionError(ErrCodeContextMismatch, KindVelocityAdd,
			"orientations differ: %q vs %q", ca.Orientation, cb.Orientation)
	}
	result := geom.VelocityContext{
		Moving:      cb.Moving,
		Reference:   ca.Reference,
		Pivot:       ca.Pivot,
		Orientation: ca.Orientation,
	}
	return derive[geom.Velocity](KindVelocityAdd, VelocityTag(result), nil,
		binary(func(x, y geom.Velocity) geom.Velocity {
			return geom.Velocity{Context: result, Twist: x.Twist.Add(y.Twist)}
		}), a.n, b.n)
}

// InvertVelocity returns the velocity of the reference frame relative to
// the moving frame. Inverting an inversion returns the original operand.
func InvertVelocity(v VelocitySensor) (VelocitySensor, error) {
	if err := requireOperands(KindVelocityInvert, v.n); err != nil {
		return VelocitySensor{}, err
	}
	if v.n.kind == KindVelocityInvert {
		return Sensor[geom.Velocity]{n: v.n.operands[0]}, nil
	}
	c, err := velocityContext(v.n.tag)
	if err != nil {
		return VelocitySensor{}, constructionError(ErrCodeBadArgument, KindVelocityInvert, "%v", err)
	}
	inv := c.Inverse()
	return derive[geom.Velocity](KindVelocityInvert, VelocityTag(inv), nil,
		unary(func(x geom.Velocity) geom.Velocity {
			return geom.Velocity{Context: inv, Twist: x.Twist.Negate()}
		}), v.n)
}

// ChangeVelocityOrientation re-expresses v in orientation, given the
// rotation r from v's orientation to the new one.
func ChangeVelocityOrientation(v VelocitySensor, r RotationSensor, orientation geom.Frame) (VelocitySensor, error) {
	if err := requireOperands(KindVelocityChangeOrientation, v.n, r.n); err != nil {
		return VelocitySensor{}, err
	}
	c, err := velocityContext(v.n.tag)
	if err != nil {
		return VelocitySensor{}, constructionError(ErrCodeBadArgument, KindVelocityChangeOrientation, "%v", err)
	}
	c.Orientation = orientation
	return derive[geom.Velocity](KindVelocityChangeOrientation, VelocityTag(c), nil,
		binary(func(x geom.Velocity, r geom.Rotation) geom.Velocity {
			return geom.Velocity{Context: c, Twist: x.Twist.Rotate(r)}
		}), v.n, r.n)
}

// ChangeVelocityPivot moves the pivot of v to pivot. offset is the vector
// from the old pivot to the new one and must be expressed in v's
// orientation.
func ChangeVelocityPivot(v VelocitySensor, offset DirectionSensor, pivot geom.Point) (VelocitySensor, error) {
	if err := requireOperands(KindVelocityChangePivot, v.n, offset.n); err != nil {
		return VelocitySensor{}, err
	}
	c, err := velocityContext(v.n.tag)
	if err != nil {
		return VelocitySensor{}, constructionError(ErrCodeBadArgument, KindVelocityChangePivot, "%v", err)
	}
	if o := offset.n.tag.ContextMap()[CtxOrientation]; o != c.Orientation.Name {
		return VelocitySensor{}, constructionError(ErrCodeContextMismatch, KindVelocityChangePivot,
			"offset in %q, velocity in %q", o, c.Orientation)
	}
	c.Pivot = pivot
	return derive[geom.Velocity](KindVelocityChangePivot, VelocityTag(c), nil,
		binary(func(x geom.Velocity, d geom.Direction) geom.Velocity {
			return geom.Velocity{Context: c, Twist: x.Twist.ChangePivot(d.Vector)}
		}), v.n, offset.n)
}
