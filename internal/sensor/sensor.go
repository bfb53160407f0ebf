package sensor

import (
	"context"

	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
)

// Sensor is a typed view of an expression node producing values of type T.
// The zero Sensor is invalid; passing it to a combinator is a NIL_OPERAND
// construction error.
type Sensor[T any] struct {
	n *Node
}

// Common sensor types.
type (
	DoubleSensor         = Sensor[float64]
	BooleanSensor        = Sensor[bool]
	VectorSensor         = Sensor[geom.Vector]
	RotationSensor       = Sensor[geom.Rotation]
	TransformationSensor = Sensor[geom.Transformation]
	TwistSensor          = Sensor[geom.Twist]
	PointSensor          = Sensor[geom.Point]
	DirectionSensor      = Sensor[geom.Direction]
	VelocitySensor       = Sensor[geom.Velocity]
)

// Wrap returns a typed view of n. It is meant for environments and
// translators that hold untyped nodes; T must match the node's value type.
func Wrap[T any](n *Node) Sensor[T] {
	return Sensor[T]{n: n}
}

// Must unwraps the result of a constructor, panicking on error.
func Must[T any](s Sensor[T], err error) Sensor[T] {
	if err != nil {
		panic(err)
	}
	return s
}

// Node returns the underlying untyped node.
func (s Sensor[T]) Node() *Node { return s.n }

// IsZero reports whether s wraps no node.
func (s Sensor[T]) IsZero() bool { return s.n == nil }

// Kind returns the operator kind.
func (s Sensor[T]) Kind() string { return s.n.kind }

// Key returns the structural hash.
func (s Sensor[T]) Key() string { return s.n.key }

// Environment returns the bound environment, or nil.
func (s Sensor[T]) Environment() Environment { return s.n.env }

// Equal reports structural equality: same operator kind, attributes and
// pairwise equal operands.
func (s Sensor[T]) Equal(o Sensor[T]) bool {
	return s.n.Equal(o.n)
}

// IsAvailable reports whether the expression can ever be computed, as
// opposed to whether a value is cached right now.
func (s Sensor[T]) IsAvailable() bool {
	return s.n.Available()
}

// CheapValue evaluates the expression without contacting any environment.
// It reports false when some operand needs an environment.
func (s Sensor[T]) CheapValue() (T, bool) {
	v, ok := s.n.Cheap()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// CurrentValue returns the cheap value if there is one, and otherwise asks
// the bound environment.
func (s Sensor[T]) CurrentValue(ctx context.Context) (T, error) {
	var zero T
	if v, ok := s.CheapValue(); ok {
		return v, nil
	}
	if s.n.env == nil {
		return zero, &ReadError{Code: ErrCodeNoEnvironment, Kind: s.n.kind}
	}
	v, err := s.n.env.Evaluate(ctx, s.n)
	if err != nil {
		return zero, &ReadError{Code: ErrCodeEnvironmentFailure, Kind: s.n.kind, Err: err}
	}
	return v.(T), nil
}

// Subscribe registers fn for value updates. Environment-free expressions
// deliver the current value immediately; bound ones register with their
// environment.
func (s Sensor[T]) Subscribe(ctx context.Context, fn func(T)) (*Subscription, error) {
	reg := Listen(s, fn)
	if err := SubscribeAll(ctx, reg); err != nil {
		return nil, err
	}
	return &Subscription{reg: reg}, nil
}

func (s Sensor[T]) String() string {
	if s.n == nil {
		return "<nil>"
	}
	return s.n.String()
}

// Subscription is an active registration returned by Subscribe.
type Subscription struct {
	reg Registration
}

// Registration returns the underlying registration.
func (s *Subscription) Registration() Registration {
	return s.reg
}

// Unsubscribe detaches the listener.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	return UnsubscribeAll(ctx, s.reg)
}
