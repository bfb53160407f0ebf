package sensor

import (
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// Vector, rotation, transformation and twist operator kinds.
const (
	KindVectorAdd       = "vector.add"
	KindVectorInvert    = "vector.invert"
	KindVectorScale     = "vector.scale"
	KindVectorComponent = "vector.component"
	KindVectorFromXYZ   = "vector.from_xyz"
	KindVectorTransform = "vector.transform"
	KindVectorRotate    = "vector.rotate"

	KindRotationInvert   = "rotation.invert"
	KindRotationMultiply = "rotation.multiply"

	KindTransformationInvert      = "transformation.invert"
	KindTransformationMultiply    = "transformation.multiply"
	KindTransformationTranslation = "transformation.translation"
	KindTransformationRotation    = "transformation.rotation"
	KindTransformationFromParts   = "transformation.from_parts"

	KindTwistAdd    = "twist.add"
	KindTwistInvert = "twist.invert"
)

// AddVector returns a + b. Operands must carry the same tag, which the
// result keeps.
func AddVector(a, b VectorSensor) (VectorSensor, error) {
	if err := sameTag(KindVectorAdd, a.n, b.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindVectorAdd, a.n.tag, nil,
		binary(geom.Vector.Add), a.n, b.n)
}

// InvertVector returns -v.
func InvertVector(v VectorSensor) (VectorSensor, error) {
	if err := requireOperands(KindVectorInvert, v.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindVectorInvert, v.n.tag, nil,
		unary(geom.Vector.Negate), v.n)
}

// ScaleVector returns v * factor.
func ScaleVector(v VectorSensor, factor DoubleSensor) (VectorSensor, error) {
	if err := requireOperands(KindVectorScale, v.n, factor.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindVectorScale, v.n.tag, nil,
		binary(geom.Vector.Scale), v.n, factor.n)
}

// Component extracts one Cartesian component of v.
func Component(v VectorSensor, axis geom.Axis) (DoubleSensor, error) {
	if err := requireOperands(KindVectorComponent, v.n); err != nil {
		return DoubleSensor{}, err
	}
	if !axis.Valid() {
		return DoubleSensor{}, constructionError(ErrCodeBadArgument, KindVectorComponent, "invalid axis %q", axis)
	}
	return derive[float64](KindVectorComponent, plainOf[float64](),
		ir.IRObject{"axis": ir.IRString(axis)},
		func(args []any) (any, error) {
			return args[0].(geom.Vector).Component(axis)
		}, v.n)
}

// VectorFromXYZ assembles a vector from three scalars.
func VectorFromXYZ(x, y, z DoubleSensor) (VectorSensor, error) {
	if err := requireOperands(KindVectorFromXYZ, x.n, y.n, z.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindVectorFromXYZ, plainOf[geom.Vector](), nil,
		func(args []any) (any, error) {
			return geom.V(args[0].(float64), args[1].(float64), args[2].(float64)), nil
		}, x.n, y.n, z.n)
}

// TransformVector applies t to v as a position.
func TransformVector(v VectorSensor, t TransformationSensor) (VectorSensor, error) {
	if err := requireOperands(KindVectorTransform, v.n, t.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindVectorTransform, plainOf[geom.Vector](), nil,
		binary(func(v geom.Vector, t geom.Transformation) geom.Vector { return t.Apply(v) }), v.n, t.n)
}

// RotateVector applies r to v.
func RotateVector(v VectorSensor, r RotationSensor) (VectorSensor, error) {
	if err := requireOperands(KindVectorRotate, v.n, r.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindVectorRotate, plainOf[geom.Vector](), nil,
		binary(func(v geom.Vector, r geom.Rotation) geom.Vector { return r.Apply(v) }), v.n, r.n)
}

// InvertRotation returns the inverse rotation. Inverting an inversion
// returns the original operand.
func InvertRotation(r RotationSensor) (RotationSensor, error) {
	if err := requireOperands(KindRotationInvert, r.n); err != nil {
		return RotationSensor{}, err
	}
	if r.n.kind == KindRotationInvert {
		return Sensor[geom.Rotation]{n: r.n.operands[0]}, nil
	}
	return derive[geom.Rotation](KindRotationInvert, r.n.tag, nil,
		unary(geom.Rotation.Invert), r.n)
}

// MultiplyRotation returns a * b: first b, then a.
func MultiplyRotation(a, b RotationSensor) (RotationSensor, error) {
	if err := requireOperands(KindRotationMultiply, a.n, b.n); err != nil {
		return RotationSensor{}, err
	}
	return derive[geom.Rotation](KindRotationMultiply, plainOf[geom.Rotation](), nil,
		binary(geom.Rotation.Multiply), a.n, b.n)
}

// InvertTransformation returns the inverse transformation. Inverting an
// inversion returns the original operand.
func InvertTransformation(t TransformationSensor) (TransformationSensor, error) {
	if err := requireOperands(KindTransformationInvert, t.n); err != nil {
		return TransformationSensor{}, err
	}
	if t.n.kind == KindTransformationInvert {
		return Sensor[geom.Transformation]{n: t.n.operands[0]}, nil
	}
	return derive[geom.Transformation](KindTransformationInvert, t.n.tag, nil,
		unary(geom.Transformation.Invert), t.n)
}

// MultiplyTransformation composes a and b: first b, then a.
func MultiplyTransformation(a, b TransformationSensor) (TransformationSensor, error) {
	if err := requireOperands(KindTransformationMultiply, a.n, b.n); err != nil {
		return TransformationSensor{}, err
	}
	return derive[geom.Transformation](KindTransformationMultiply, plainOf[geom.Transformation](), nil,
		binary(geom.Transformation.Multiply), a.n, b.n)
}

// Translation extracts the translation part of t.
func Translation(t TransformationSensor) (VectorSensor, error) {
	if err := requireOperands(KindTransformationTranslation, t.n); err != nil {
		return VectorSensor{}, err
	}
	return derive[geom.Vector](KindTransformationTranslation, plainOf[geom.Vector](), nil,
		unary(func(t geom.Transformation) geom.Vector { return t.Translation }), t.n)
}

// RotationOf extracts the rotation part of t.
func RotationOf(t TransformationSensor) (RotationSensor, error) {
	if err := requireOperands(KindTransformationRotation, t.n); err != nil {
		return RotationSensor{}, err
	}
	return derive[geom.Rotation](KindTransformationRotation, plainOf[geom.Rotation](), nil,
		unary(func(t geom.Transformation) geom.Rotation { return t.Rotation }), t.n)
}

// TransformationFromParts combines a translation and a rotation.
func TransformationFromParts(translation VectorSensor, rotation RotationSensor) (TransformationSensor, error) {
	if err := requireOperands(KindTransformationFromParts, translation.n, rotation.n); err != nil {
		return TransformationSensor{}, err
	}
	return derive[geom.Transformation](KindTransformationFromParts, plainOf[geom.Transformation](), nil,
		binary(geom.NewTransformation), translation.n, rotation.n)
}

// AddTwist returns a + b. Operands must carry the same tag.
func AddTwist(a, b TwistSensor) (TwistSensor, error) {
	if err := sameTag(KindTwistAdd, a.n, b.n); err != nil {
		return TwistSensor{}, err
	}
	return derive[geom.Twist](KindTwistAdd, a.n.tag, nil,
		binary(geom.Twist.Add), a.n, b.n)
}

// InvertTwist returns -t.
func InvertTwist(t TwistSensor) (TwistSensor, error) {
	if err := requireOperands(KindTwistInvert, t.n); err != nil {
		return TwistSensor{}, err
	}
	return derive[geom.Twist](KindTwistInvert, t.n.tag, nil,
		unary(geom.Twist.Negate), t.n)
}
