package sensor

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/petermattis/goid"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// Leaf operator kinds.
const (
	KindConstant  = "constant"
	KindWritable  = "writable"
	KindPersisted = "persisted"
)

// Constant returns an expression that always yields v.
func Constant[T any](v T) (Sensor[T], error) {
	tag, err := tagOf(v)
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindConstant, "%v", err)
	}
	c, err := codecFor[T](tag)
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindConstant, "%v", err)
	}
	raw, err := geom.Format(c.toRaw(v))
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindConstant, "%v", err)
	}
	n, err := newNode(nodeSpec{
		kind:    KindConstant,
		tag:     tag,
		attrs:   ir.IRObject{"value": ir.IRString(raw)},
		codec:   c,
		payload: c.toRaw(v),
		eval:    func([]any) (any, error) { return v, nil },
		leaf:    true,
	})
	if err != nil {
		return Sensor[T]{}, err
	}
	return Sensor[T]{n: n}, nil
}

// ConstDouble returns a constant scalar.
func ConstDouble(v float64) DoubleSensor { return Must(Constant(v)) }

// ConstBool returns a constant boolean.
func ConstBool(v bool) BooleanSensor { return Must(Constant(v)) }

// ConstVector returns a constant vector.
func ConstVector(x, y, z float64) VectorSensor { return Must(Constant(geom.V(x, y, z))) }

// ConstRotation returns a constant rotation.
func ConstRotation(r geom.Rotation) RotationSensor { return Must(Constant(r)) }

// ConstTransformation returns a constant transformation.
func ConstTransformation(t geom.Transformation) TransformationSensor { return Must(Constant(t)) }

// ConstTwist returns a constant twist.
func ConstTwist(t geom.Twist) TwistSensor { return Must(Constant(t)) }

// ConstPoint returns a constant point in frame.
func ConstPoint(frame geom.Frame, v geom.Vector) PointSensor {
	return Must(Constant(geom.Point{Frame: frame, Vector: v}))
}

// ConstDirection returns a constant direction in orientation.
func ConstDirection(orientation geom.Frame, v geom.Vector) DirectionSensor {
	return Must(Constant(geom.Direction{Orientation: orientation, Vector: v}))
}

// ConstVelocity returns a constant velocity.
func ConstVelocity(c geom.VelocityContext, t geom.Twist) VelocitySensor {
	return Must(Constant(geom.Velocity{Context: c, Twist: t}))
}

// cell is the mutable state of a writable leaf.
type cell struct {
	gen   atomic.Uint64
	mu    sync.Mutex
	value any
	busy  sync.Map // goroutine ID -> struct{} while cascading
}

func (c *cell) load() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *cell) store(v any) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	c.gen.Add(1)
}

// Writable is an environment-free leaf whose value the application sets.
// Each Set cascades to the listeners of every expression computed from it.
type Writable[T any] struct {
	Sensor[T]
	cell *cell
}

// NewWritable creates a writable leaf holding initial. Its context, if any,
// is fixed by initial.
func NewWritable[T any](initial T) (*Writable[T], error) {
	tag, err := tagOf(initial)
	if err != nil {
		return nil, constructionError(ErrCodeBadArgument, KindWritable, "%v", err)
	}
	c, err := codecFor[T](tag)
	if err != nil {
		return nil, constructionError(ErrCodeBadArgument, KindWritable, "%v", err)
	}
	cl := &cell{value: initial}
	n, err := newNode(nodeSpec{
		kind:  KindWritable,
		tag:   tag,
		attrs: ir.IRObject{"id": ir.IRString(uuid.NewString())},
		codec: c,
		eval:  func([]any) (any, error) { return cl.load(), nil },
		leaf:  true,
		cell:  cl,
	})
	if err != nil {
		return nil, err
	}
	return &Writable[T]{Sensor: Sensor[T]{n: n}, cell: cl}, nil
}

// Set stores v and notifies dependents. A value with a different context
// than the leaf's is rejected. Setting a leaf from its own cascade on the
// same goroutine returns ErrReentrantWrite.
func (w *Writable[T]) Set(v T) error {
	tag, err := tagOf(v)
	if err != nil {
		return constructionError(ErrCodeBadArgument, KindWritable, "%v", err)
	}
	if tag != w.n.tag {
		return constructionError(ErrCodeContextMismatch, KindWritable, "value tagged %s, leaf is %s", tag, w.n.tag)
	}

	gid := goid.Get()
	if _, busy := w.cell.busy.LoadOrStore(gid, struct{}{}); busy {
		return ErrReentrantWrite
	}
	defer w.cell.busy.Delete(gid)

	w.cell.store(v)
	observers.cascade(w.n)
	return nil
}

// Get returns the stored value.
func (w *Writable[T]) Get() T {
	return w.cell.load().(T)
}

// NewLeaf creates an environment-bound leaf. Environments use it for their
// own value sources; the leaf is compiled by a translator registered for
// (env.Kind(), kind). attrs must identify the source within env.
func NewLeaf[T any](env Environment, kind string, ctx map[string]string, attrs ir.IRObject, payload any) (Sensor[T], error) {
	if env == nil {
		return Sensor[T]{}, constructionError(ErrCodeNilOperand, kind, "environment leaf needs an environment")
	}
	typ, err := valueType[T]()
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, kind, "%v", err)
	}
	tag := dataflow.NewTag(typ, ctx)
	c, err := codecFor[T](tag)
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, kind, "%v", err)
	}
	n, err := newNode(nodeSpec{
		kind:    kind,
		tag:     tag,
		attrs:   attrs,
		codec:   c,
		payload: payload,
		env:     env,
	})
	if err != nil {
		return Sensor[T]{}, err
	}
	return Sensor[T]{n: n}, nil
}

// Resolver locates the value a persisted binding keeps alive.
type Resolver interface {
	// Key is the value key within the producing run.
	Key() string
	// RemoteNet names the producing run. It reports false before the run
	// has a handle and after the binding is released.
	RemoteNet() (string, bool)
}

// NewPersisted creates a leaf reading a value kept alive by another command.
func NewPersisted[T any](env Environment, tag dataflow.Tag, r Resolver) (Sensor[T], error) {
	if r == nil {
		return Sensor[T]{}, constructionError(ErrCodeNilOperand, KindPersisted, "resolver is nil")
	}
	if env == nil {
		return Sensor[T]{}, constructionError(ErrCodeNilOperand, KindPersisted, "persisted value needs an environment")
	}
	typ, err := valueType[T]()
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindPersisted, "%v", err)
	}
	if typ != tag.Type {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindPersisted, "tag %s does not carry %T", tag, *new(T))
	}
	c, err := codecFor[T](tag)
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindPersisted, "%v", err)
	}
	n, err := newNode(nodeSpec{
		kind:    KindPersisted,
		tag:     tag,
		attrs:   ir.IRObject{"key": ir.IRString(r.Key())},
		codec:   c,
		payload: r,
		env:     env,
		avail: func() bool {
			_, ok := r.RemoteNet()
			return ok
		},
	})
	if err != nil {
		return Sensor[T]{}, err
	}
	return Sensor[T]{n: n}, nil
}
