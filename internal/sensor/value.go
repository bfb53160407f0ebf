package sensor

import (
	"fmt"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
)

// Context keys of contextual value types.
const (
	CtxFrame       = "frame"
	CtxOrientation = "orientation"
	CtxMoving      = "moving"
	CtxReference   = "reference"
	CtxPivotFrame  = "pivot_frame"
	CtxPivot       = "pivot"
)

// valueType returns the dataflow type carrying values of type T.
func valueType[T any]() (dataflow.Type, error) {
	var zero T
	switch any(zero).(type) {
	case float64:
		return dataflow.TypeDouble, nil
	case bool:
		return dataflow.TypeBoolean, nil
	case geom.Vector, geom.Point, geom.Direction:
		return dataflow.TypeVector, nil
	case geom.Rotation:
		return dataflow.TypeRotation, nil
	case geom.Transformation:
		return dataflow.TypeTransformation, nil
	case geom.Twist, geom.Velocity:
		return dataflow.TypeTwist, nil
	default:
		return "", fmt.Errorf("unsupported value type %T", zero)
	}
}

// tagOf derives the dataflow tag of a concrete value, including its context.
func tagOf(v any) (dataflow.Tag, error) {
	switch val := v.(type) {
	case float64:
		return dataflow.Plain(dataflow.TypeDouble), nil
	case bool:
		return dataflow.Plain(dataflow.TypeBoolean), nil
	case geom.Vector:
		return dataflow.Plain(dataflow.TypeVector), nil
	case geom.Rotation:
		return dataflow.Plain(dataflow.TypeRotation), nil
	case geom.Transformation:
		return dataflow.Plain(dataflow.TypeTransformation), nil
	case geom.Twist:
		return dataflow.Plain(dataflow.TypeTwist), nil
	case geom.Point:
		return PointTag(val.Frame), nil
	case geom.Direction:
		return DirectionTag(val.Orientation), nil
	case geom.Velocity:
		return VelocityTag(val.Context), nil
	default:
		return dataflow.Tag{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// PointTag is the tag of a point in frame.
func PointTag(frame geom.Frame) dataflow.Tag {
	return dataflow.NewTag(dataflow.TypeVector, map[string]string{CtxFrame: frame.Name})
}

// DirectionTag is the tag of a direction expressed in orientation.
func DirectionTag(orientation geom.Frame) dataflow.Tag {
	return dataflow.NewTag(dataflow.TypeVector, map[string]string{CtxOrientation: orientation.Name})
}

// VelocityTag is the tag of a velocity with the given context.
func VelocityTag(c geom.VelocityContext) dataflow.Tag {
	return dataflow.NewTag(dataflow.TypeTwist, map[string]string{
		CtxMoving:      c.Moving.Name,
		CtxReference:   c.Reference.Name,
		CtxPivotFrame:  c.Pivot.Frame.Name,
		CtxPivot:       geom.MustFormat(c.Pivot.Vector),
		CtxOrientation: c.Orientation.Name,
	})
}

// VelocityContextOf decodes the context of a VelocityTag.
func VelocityContextOf(tag dataflow.Tag) (geom.VelocityContext, error) {
	return velocityContext(tag)
}

// velocityContext decodes a VelocityTag.
func velocityContext(tag dataflow.Tag) (geom.VelocityContext, error) {
	m := tag.ContextMap()
	pivot, err := geom.ParseVector(m[CtxPivot])
	if err != nil {
		return geom.VelocityContext{}, fmt.Errorf("velocity tag pivot: %w", err)
	}
	return geom.VelocityContext{
		Moving:      geom.NewFrame(m[CtxMoving]),
		Reference:   geom.NewFrame(m[CtxReference]),
		Pivot:       geom.Point{Frame: geom.NewFrame(m[CtxPivotFrame]), Vector: pivot},
		Orientation: geom.NewFrame(m[CtxOrientation]),
	}, nil
}

// codec converts between the primitive representation carried on a port
// (float64, bool, Vector, Rotation, Transformation, Twist) and the value
// type T of an expression with the given tag. It is fixed at construction
// so listener bridges never inspect value types at run time.
type codec struct {
	fromRaw func(any) any
	toRaw   func(any) any
}

func identity(v any) any { return v }

func codecFor[T any](tag dataflow.Tag) (codec, error) {
	var zero T
	switch any(zero).(type) {
	case geom.Point:
		frame := geom.NewFrame(tag.ContextMap()[CtxFrame])
		return codec{
			fromRaw: func(raw any) any { return geom.Point{Frame: frame, Vector: raw.(geom.Vector)} },
			toRaw:   func(v any) any { return v.(geom.Point).Vector },
		}, nil
	case geom.Direction:
		orientation := geom.NewFrame(tag.ContextMap()[CtxOrientation])
		return codec{
			fromRaw: func(raw any) any { return geom.Direction{Orientation: orientation, Vector: raw.(geom.Vector)} },
			toRaw:   func(v any) any { return v.(geom.Direction).Vector },
		}, nil
	case geom.Velocity:
		ctx, err := velocityContext(tag)
		if err != nil {
			return codec{}, err
		}
		return codec{
			fromRaw: func(raw any) any { return geom.Velocity{Context: ctx, Twist: raw.(geom.Twist)} },
			toRaw:   func(v any) any { return v.(geom.Velocity).Twist },
		}, nil
	}
	if _, err := valueType[T](); err != nil {
		return codec{}, err
	}
	return codec{fromRaw: identity, toRaw: identity}, nil
}
