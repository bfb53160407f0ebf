package exprdoc

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// ValueType names the value type of a built expression.
type ValueType string

const (
	Double         ValueType = "double"
	Boolean        ValueType = "boolean"
	Vector         ValueType = "vector"
	Rotation       ValueType = "rotation"
	Transformation ValueType = "transformation"
	Twist          ValueType = "twist"
	Point          ValueType = "point"
	Direction      ValueType = "direction"
	Velocity       ValueType = "velocity"
)

// ValueTypes lists every value type in a stable order.
var ValueTypes = []ValueType{Double, Boolean, Vector, Rotation, Transformation, Twist, Point, Direction, Velocity}

// Valid reports whether t is a known value type.
func (t ValueType) Valid() bool {
	_, ok := generics[t]
	return ok
}

// codecString renders a document value in the geom parameter codec.
func codecString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("value is required")
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			f, ok := number(e)
			if !ok {
				return "", fmt.Errorf("element %d is %T, not a number", i, e)
			}
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ","), nil
	}
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported value %T", v)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// velocityContext reads the velocity fields of n.
func velocityContext(n *Node) (geom.VelocityContext, error) {
	pivot := geom.Vector{}
	if n.Pivot != nil {
		s, err := codecString(n.Pivot)
		if err != nil {
			return geom.VelocityContext{}, fmt.Errorf("pivot: %w", err)
		}
		if pivot, err = geom.ParseVector(s); err != nil {
			return geom.VelocityContext{}, fmt.Errorf("pivot: %w", err)
		}
	}
	c := geom.VelocityContext{
		Moving:      geom.NewFrame(n.Moving),
		Reference:   geom.NewFrame(n.Reference),
		Pivot:       geom.Point{Frame: geom.NewFrame(n.PivotFrame), Vector: pivot},
		Orientation: geom.NewFrame(n.Orientation),
	}
	if c.Moving.IsZero() || c.Reference.IsZero() || c.Pivot.Frame.IsZero() || c.Orientation.IsZero() {
		return c, fmt.Errorf("velocity needs moving, reference, pivot_frame and orientation")
	}
	return c, nil
}

// ParseValue decodes a document value of type t. Framed types take their
// frames from n.
func ParseValue(t ValueType, n *Node, v any) (any, error) {
	s, err := codecString(v)
	if err != nil {
		return nil, err
	}
	switch t {
	case Double:
		return geom.ParseDouble(s)
	case Boolean:
		return geom.ParseBool(s)
	case Vector:
		return geom.ParseVector(s)
	case Rotation:
		return geom.ParseRotation(s)
	case Transformation:
		return geom.ParseTransformation(s)
	case Twist:
		return geom.ParseTwist(s)
	case Point:
		if n.Frame == "" {
			return nil, fmt.Errorf("point needs a frame")
		}
		vec, err := geom.ParseVector(s)
		return geom.Point{Frame: geom.NewFrame(n.Frame), Vector: vec}, err
	case Direction:
		if n.Orientation == "" {
			return nil, fmt.Errorf("direction needs an orientation")
		}
		vec, err := geom.ParseVector(s)
		return geom.Direction{Orientation: geom.NewFrame(n.Orientation), Vector: vec}, err
	case Velocity:
		c, err := velocityContext(n)
		if err != nil {
			return nil, err
		}
		tw, err := geom.ParseTwist(s)
		return geom.Velocity{Context: c, Twist: tw}, err
	default:
		return nil, fmt.Errorf("unknown value type %q", t)
	}
}

// tagContext is the tag context of a leaf of type t described by n.
func tagContext(t ValueType, n *Node) (map[string]string, error) {
	switch t {
	case Point:
		if n.Frame == "" {
			return nil, fmt.Errorf("point needs a frame")
		}
		return sensor.PointTag(geom.NewFrame(n.Frame)).ContextMap(), nil
	case Direction:
		if n.Orientation == "" {
			return nil, fmt.Errorf("direction needs an orientation")
		}
		return sensor.DirectionTag(geom.NewFrame(n.Orientation)).ContextMap(), nil
	case Velocity:
		c, err := velocityContext(n)
		if err != nil {
			return nil, err
		}
		return sensor.VelocityTag(c).ContextMap(), nil
	}
	return nil, nil
}

// Rendered is the document form of a value: the codec string of its
// context-free part plus the context that frames it.
type Rendered struct {
	Type    ValueType         `json:"type"`
	Value   string            `json:"value"`
	Context map[string]string `json:"context,omitempty"`
}

func (r Rendered) String() string {
	if len(r.Context) == 0 {
		return fmt.Sprintf("%s(%s)", r.Type, r.Value)
	}
	keys := make([]string, 0, len(r.Context))
	for k := range r.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.Context[k]
	}
	return fmt.Sprintf("%s(%s) [%s]", r.Type, r.Value, strings.Join(parts, " "))
}

// Render converts a value of type t to its document form.
func Render(t ValueType, v any) (Rendered, error) {
	plain, ctx := split(v)
	s, err := geom.Format(plain)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Type: t, Value: s, Context: ctx}, nil
}

// split separates a framed value into its context-free part and context.
func split(v any) (any, map[string]string) {
	switch x := v.(type) {
	case geom.Point:
		return x.Vector, sensor.PointTag(x.Frame).ContextMap()
	case geom.Direction:
		return x.Vector, sensor.DirectionTag(x.Orientation).ContextMap()
	case geom.Velocity:
		return x.Twist, sensor.VelocityTag(x.Context).ContextMap()
	}
	return v, nil
}

// Matches reports whether got, a value of type t, equals the document value
// want within geom.Epsilon. Context is ignored.
func Matches(t ValueType, got, want any) (bool, error) {
	plain, _ := split(got)
	wantPlain, err := ParseValue(plainType(t), &Node{}, want)
	if err != nil {
		return false, err
	}
	switch g := plain.(type) {
	case float64:
		return math.Abs(g-wantPlain.(float64)) <= geom.Epsilon, nil
	case bool:
		return g == wantPlain.(bool), nil
	case geom.Vector:
		return g.ApproxEqual(wantPlain.(geom.Vector)), nil
	case geom.Rotation:
		return g.ApproxEqual(wantPlain.(geom.Rotation)), nil
	case geom.Transformation:
		return g.ApproxEqual(wantPlain.(geom.Transformation)), nil
	case geom.Twist:
		return g.ApproxEqual(wantPlain.(geom.Twist)), nil
	}
	return false, fmt.Errorf("cannot compare %T", got)
}

func plainType(t ValueType) ValueType {
	switch t {
	case Point, Direction:
		return Vector
	case Velocity:
		return Twist
	}
	return t
}
