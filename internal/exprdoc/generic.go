package exprdoc

import (
	"context"

	"github.com/roboticsapi/robotics-api-sub003/internal/command"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
)

// typedOps applies the generic operators to untyped nodes of one value
// type.
type typedOps interface {
	constant(v any) (*sensor.Node, error)
	writable(v any) (*sensor.Node, func(any) error, error)
	source(env *sim.Environment, name string, ctx map[string]string) (*sensor.Node, func(any) error, error)
	conditional(cond, a, b *sensor.Node) (*sensor.Node, error)
	reinterpret(n *sensor.Node, ctx map[string]string) (*sensor.Node, error)
	atAge(n, age *sensor.Node, maxAge float64) (*sensor.Node, error)
	slidingAverage(n *sensor.Node, duration float64) (*sensor.Node, error)
	current(ctx context.Context, n *sensor.Node) (any, error)
	persist(ctx context.Context, n *sensor.Node, runner mapping.Runner, opts ...command.Option) (*Persisted, error)
}

type ops[T any] struct{}

var generics = map[ValueType]typedOps{
	Double:         ops[float64]{},
	Boolean:        ops[bool]{},
	Vector:         ops[geom.Vector]{},
	Rotation:       ops[geom.Rotation]{},
	Transformation: ops[geom.Transformation]{},
	Twist:          ops[geom.Twist]{},
	Point:          ops[geom.Point]{},
	Direction:      ops[geom.Direction]{},
	Velocity:       ops[geom.Velocity]{},
}

func nodeOf[T any](s sensor.Sensor[T], err error) (*sensor.Node, error) {
	if err != nil {
		return nil, err
	}
	return s.Node(), nil
}

func (ops[T]) constant(v any) (*sensor.Node, error) {
	return nodeOf(sensor.Constant(v.(T)))
}

func (ops[T]) writable(v any) (*sensor.Node, func(any) error, error) {
	w, err := sensor.NewWritable(v.(T))
	if err != nil {
		return nil, nil, err
	}
	return w.Node(), func(x any) error { return w.Set(x.(T)) }, nil
}

func (ops[T]) source(env *sim.Environment, name string, ctx map[string]string) (*sensor.Node, func(any) error, error) {
	s, err := sim.NewSource[T](env, name, ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.Node(), func(x any) error {
		s.Set(x.(T))
		return nil
	}, nil
}

func (ops[T]) conditional(cond, a, b *sensor.Node) (*sensor.Node, error) {
	return nodeOf(sensor.Conditional(sensor.Wrap[bool](cond), sensor.Wrap[T](a), sensor.Wrap[T](b)))
}

func (ops[T]) reinterpret(n *sensor.Node, ctx map[string]string) (*sensor.Node, error) {
	return nodeOf(sensor.Reinterpret(sensor.Wrap[T](n), ctx))
}

func (ops[T]) atAge(n, age *sensor.Node, maxAge float64) (*sensor.Node, error) {
	h, err := sensor.NewHistory(sensor.Wrap[T](n), maxAge)
	if err != nil {
		return nil, err
	}
	return nodeOf(h.AtAge(sensor.Wrap[float64](age)))
}

func (ops[T]) slidingAverage(n *sensor.Node, duration float64) (*sensor.Node, error) {
	return nodeOf(sensor.SlidingAverage(sensor.Wrap[T](n), duration))
}

func (ops[T]) current(ctx context.Context, n *sensor.Node) (any, error) {
	return sensor.Wrap[T](n).CurrentValue(ctx)
}
