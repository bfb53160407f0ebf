package exprdoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
)

// Expr is a built expression together with its document value type.
type Expr struct {
	Type ValueType
	Node *sensor.Node
}

// Value reads the current value: the cheap value when there is one,
// otherwise the bound environment is asked.
func (e Expr) Value(ctx context.Context) (any, error) {
	return generics[e.Type].current(ctx, e.Node)
}

// BuildError reports an invalid document node.
type BuildError struct {
	Path    string
	Op      string
	Message string
	Err     error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s (%s): %s", e.Path, e.Op, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

type input struct {
	typ   ValueType
	node  *Node
	built *sensor.Node
	set   func(any) error
}

// Builder turns documents into expressions. Named writables and sources
// are created once per builder, so documents built by the same builder
// share them.
type Builder struct {
	env    *sim.Environment
	inputs map[string]*input
	order  []string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithEnvironment enables "source" nodes, bound to env.
func WithEnvironment(env *sim.Environment) BuilderOption {
	return func(b *Builder) {
		b.env = env
	}
}

// NewBuilder creates a builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{inputs: make(map[string]*input)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds the document's expression.
func (b *Builder) Build(doc *Document) (Expr, error) {
	if doc == nil || doc.Expr == nil {
		return Expr{}, &BuildError{Path: "expr", Message: "expr is required"}
	}
	return b.BuildNode("expr", doc.Expr)
}

// Inputs returns the names of the writables and sources built so far, in
// creation order.
func (b *Builder) Inputs() []string {
	return append([]string(nil), b.order...)
}

// InputType returns the value type of a named input.
func (b *Builder) InputType(name string) (ValueType, bool) {
	in, ok := b.inputs[name]
	if !ok {
		return "", false
	}
	return in.typ, true
}

// Set assigns a document value to a named writable or source.
func (b *Builder) Set(name string, v any) error {
	in, ok := b.inputs[name]
	if !ok {
		return fmt.Errorf("no input named %q", name)
	}
	val, err := ParseValue(in.typ, in.node, v)
	if err != nil {
		return fmt.Errorf("input %q: %w", name, err)
	}
	return in.set(val)
}

// BuildNode builds n; path names n in errors.
func (b *Builder) BuildNode(path string, n *Node) (Expr, error) {
	if n == nil {
		return Expr{}, &BuildError{Path: path, Message: "node is empty"}
	}
	fail := func(format string, args ...any) (Expr, error) {
		return Expr{}, &BuildError{Path: path, Op: n.Op, Message: fmt.Sprintf(format, args...)}
	}
	wrap := func(err error) (Expr, error) {
		return Expr{}, &BuildError{Path: path, Op: n.Op, Message: "invalid expression", Err: err}
	}

	switch n.Op {
	case "const", "writable", "source":
		return b.leaf(path, n)
	}

	args := make([]Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := b.BuildNode(fmt.Sprintf("%s.args[%d]", path, i), a)
		if err != nil {
			return Expr{}, err
		}
		args[i] = e
	}
	if want, ok := arity[n.Op]; ok && len(args) != want {
		return fail("takes %d arguments, got %d", want, len(args))
	}
	typ := func(i int) ValueType { return args[i].Type }
	expect := func(types ...ValueType) error {
		for i, t := range types {
			if args[i].Type != t {
				return fmt.Errorf("argument %d is %s, want %s", i, args[i].Type, t)
			}
		}
		return nil
	}

	var (
		out ValueType
		nd  *sensor.Node
		err error
	)
	switch n.Op {
	case "add":
		if typ(0) != typ(1) {
			return fail("cannot add %s and %s", typ(0), typ(1))
		}
		out = typ(0)
		switch out {
		case Double:
			nd, err = nodeOf(sensor.AddDouble(sensor.Wrap[float64](args[0].Node), sensor.Wrap[float64](args[1].Node)))
		case Vector:
			nd, err = nodeOf(sensor.AddVector(sensor.Wrap[geom.Vector](args[0].Node), sensor.Wrap[geom.Vector](args[1].Node)))
		case Twist:
			nd, err = nodeOf(sensor.AddTwist(sensor.Wrap[geom.Twist](args[0].Node), sensor.Wrap[geom.Twist](args[1].Node)))
		case Direction:
			nd, err = nodeOf(sensor.AddDirections(sensor.Wrap[geom.Direction](args[0].Node), sensor.Wrap[geom.Direction](args[1].Node)))
		case Velocity:
			nd, err = nodeOf(sensor.AddVelocity(sensor.Wrap[geom.Velocity](args[0].Node), sensor.Wrap[geom.Velocity](args[1].Node)))
		default:
			return fail("cannot add %s values", out)
		}

	case "multiply":
		if typ(0) != typ(1) {
			return fail("cannot multiply %s and %s", typ(0), typ(1))
		}
		out = typ(0)
		switch out {
		case Double:
			nd, err = nodeOf(sensor.MultiplyDouble(sensor.Wrap[float64](args[0].Node), sensor.Wrap[float64](args[1].Node)))
		case Rotation:
			nd, err = nodeOf(sensor.MultiplyRotation(sensor.Wrap[geom.Rotation](args[0].Node), sensor.Wrap[geom.Rotation](args[1].Node)))
		case Transformation:
			nd, err = nodeOf(sensor.MultiplyTransformation(sensor.Wrap[geom.Transformation](args[0].Node), sensor.Wrap[geom.Transformation](args[1].Node)))
		default:
			return fail("cannot multiply %s values", out)
		}

	case "negate":
		if err := expect(Double); err != nil {
			return wrap(err)
		}
		out = Double
		nd, err = nodeOf(sensor.NegateDouble(sensor.Wrap[float64](args[0].Node)))

	case "invert":
		out = typ(0)
		switch out {
		case Vector:
			nd, err = nodeOf(sensor.InvertVector(sensor.Wrap[geom.Vector](args[0].Node)))
		case Rotation:
			nd, err = nodeOf(sensor.InvertRotation(sensor.Wrap[geom.Rotation](args[0].Node)))
		case Transformation:
			nd, err = nodeOf(sensor.InvertTransformation(sensor.Wrap[geom.Transformation](args[0].Node)))
		case Twist:
			nd, err = nodeOf(sensor.InvertTwist(sensor.Wrap[geom.Twist](args[0].Node)))
		case Velocity:
			nd, err = nodeOf(sensor.InvertVelocity(sensor.Wrap[geom.Velocity](args[0].Node)))
		default:
			return fail("cannot invert %s", out)
		}

	case "greater":
		if err := expect(Double, Double); err != nil {
			return wrap(err)
		}
		out = Boolean
		nd, err = nodeOf(sensor.Greater(sensor.Wrap[float64](args[0].Node), sensor.Wrap[float64](args[1].Node)))

	case "and", "or":
		if err := expect(Boolean, Boolean); err != nil {
			return wrap(err)
		}
		out = Boolean
		f := sensor.And
		if n.Op == "or" {
			f = sensor.Or
		}
		nd, err = nodeOf(f(sensor.Wrap[bool](args[0].Node), sensor.Wrap[bool](args[1].Node)))

	case "not":
		if err := expect(Boolean); err != nil {
			return wrap(err)
		}
		out = Boolean
		nd, err = nodeOf(sensor.Not(sensor.Wrap[bool](args[0].Node)))

	case "scale":
		if err := expect(Vector, Double); err != nil {
			return wrap(err)
		}
		out = Vector
		nd, err = nodeOf(sensor.ScaleVector(sensor.Wrap[geom.Vector](args[0].Node), sensor.Wrap[float64](args[1].Node)))

	case "component":
		if err := expect(Vector); err != nil {
			return wrap(err)
		}
		out = Double
		nd, err = nodeOf(sensor.Component(sensor.Wrap[geom.Vector](args[0].Node), geom.Axis(strings.ToUpper(n.Axis))))

	case "from_xyz":
		if err := expect(Double, Double, Double); err != nil {
			return wrap(err)
		}
		out = Vector
		nd, err = nodeOf(sensor.VectorFromXYZ(sensor.Wrap[float64](args[0].Node), sensor.Wrap[float64](args[1].Node), sensor.Wrap[float64](args[2].Node)))

	case "transform":
		if err := expect(Vector, Transformation); err != nil {
			return wrap(err)
		}
		out = Vector
		nd, err = nodeOf(sensor.TransformVector(sensor.Wrap[geom.Vector](args[0].Node), sensor.Wrap[geom.Transformation](args[1].Node)))

	case "rotate":
		if err := expect(Vector, Rotation); err != nil {
			return wrap(err)
		}
		out = Vector
		nd, err = nodeOf(sensor.RotateVector(sensor.Wrap[geom.Vector](args[0].Node), sensor.Wrap[geom.Rotation](args[1].Node)))

	case "translation":
		if err := expect(Transformation); err != nil {
			return wrap(err)
		}
		out = Vector
		nd, err = nodeOf(sensor.Translation(sensor.Wrap[geom.Transformation](args[0].Node)))

	case "rotation_of":
		if err := expect(Transformation); err != nil {
			return wrap(err)
		}
		out = Rotation
		nd, err = nodeOf(sensor.RotationOf(sensor.Wrap[geom.Transformation](args[0].Node)))

	case "from_parts":
		if err := expect(Vector, Rotation); err != nil {
			return wrap(err)
		}
		out = Transformation
		nd, err = nodeOf(sensor.TransformationFromParts(sensor.Wrap[geom.Vector](args[0].Node), sensor.Wrap[geom.Rotation](args[1].Node)))

	case "as_point":
		if err := expect(Vector); err != nil {
			return wrap(err)
		}
		if n.Frame == "" {
			return fail("frame is required")
		}
		out = Point
		nd, err = nodeOf(sensor.AsPoint(sensor.Wrap[geom.Vector](args[0].Node), geom.NewFrame(n.Frame)))

	case "as_direction":
		if err := expect(Vector); err != nil {
			return wrap(err)
		}
		if n.Orientation == "" {
			return fail("orientation is required")
		}
		out = Direction
		nd, err = nodeOf(sensor.AsDirection(sensor.Wrap[geom.Vector](args[0].Node), geom.NewFrame(n.Orientation)))

	case "vector_of":
		out = Vector
		switch typ(0) {
		case Point:
			nd, err = nodeOf(sensor.PointVector(sensor.Wrap[geom.Point](args[0].Node)))
		case Direction:
			nd, err = nodeOf(sensor.DirectionVector(sensor.Wrap[geom.Direction](args[0].Node)))
		default:
			return fail("%s has no vector", typ(0))
		}

	case "displace":
		if err := expect(Point, Direction); err != nil {
			return wrap(err)
		}
		out = Point
		nd, err = nodeOf(sensor.Displace(sensor.Wrap[geom.Point](args[0].Node), sensor.Wrap[geom.Direction](args[1].Node)))

	case "as_velocity":
		if err := expect(Twist); err != nil {
			return wrap(err)
		}
		c, cerr := velocityContext(n)
		if cerr != nil {
			return wrap(cerr)
		}
		out = Velocity
		nd, err = nodeOf(sensor.AsVelocity(sensor.Wrap[geom.Twist](args[0].Node), c))

	case "twist_of":
		if err := expect(Velocity); err != nil {
			return wrap(err)
		}
		out = Twist
		nd, err = nodeOf(sensor.VelocityTwist(sensor.Wrap[geom.Velocity](args[0].Node)))

	case "change_orientation":
		if err := expect(Velocity, Rotation); err != nil {
			return wrap(err)
		}
		if n.Orientation == "" {
			return fail("orientation is required")
		}
		out = Velocity
		nd, err = nodeOf(sensor.ChangeVelocityOrientation(sensor.Wrap[geom.Velocity](args[0].Node), sensor.Wrap[geom.Rotation](args[1].Node), geom.NewFrame(n.Orientation)))

	case "change_pivot":
		if err := expect(Velocity, Direction); err != nil {
			return wrap(err)
		}
		pv, perr := ParseValue(Point, &Node{Frame: n.PivotFrame}, n.Pivot)
		if perr != nil {
			return wrap(fmt.Errorf("pivot: %w", perr))
		}
		out = Velocity
		nd, err = nodeOf(sensor.ChangeVelocityPivot(sensor.Wrap[geom.Velocity](args[0].Node), sensor.Wrap[geom.Direction](args[1].Node), pv.(geom.Point)))

	case "conditional":
		if typ(0) != Boolean || typ(1) != typ(2) {
			return fail("want (boolean, T, T), got (%s, %s, %s)", typ(0), typ(1), typ(2))
		}
		out = typ(1)
		nd, err = generics[out].conditional(args[0].Node, args[1].Node, args[2].Node)

	case "reinterpret":
		out = typ(0)
		nd, err = generics[out].reinterpret(args[0].Node, n.Context)

	case "at_age":
		if typ(1) != Double {
			return fail("age is %s, want double", typ(1))
		}
		out = typ(0)
		nd, err = generics[out].atAge(args[0].Node, args[1].Node, n.MaxAge)

	case "sliding_average":
		out = typ(0)
		nd, err = generics[out].slidingAverage(args[0].Node, n.Duration)

	default:
		return fail("unknown op")
	}
	if err != nil {
		return wrap(err)
	}
	return Expr{Type: out, Node: nd}, nil
}

var arity = map[string]int{
	"add": 2, "multiply": 2, "negate": 1, "invert": 1, "greater": 2,
	"and": 2, "or": 2, "not": 1, "scale": 2, "component": 1, "from_xyz": 3,
	"transform": 2, "rotate": 2, "translation": 1, "rotation_of": 1, "from_parts": 2,
	"as_point": 1, "as_direction": 1, "vector_of": 1, "displace": 2,
	"as_velocity": 1, "twist_of": 1, "change_orientation": 2, "change_pivot": 2,
	"conditional": 3, "reinterpret": 1, "at_age": 2, "sliding_average": 1,
}

func (b *Builder) leaf(path string, n *Node) (Expr, error) {
	fail := func(err error) (Expr, error) {
		return Expr{}, &BuildError{Path: path, Op: n.Op, Message: "invalid leaf", Err: err}
	}
	t := ValueType(n.Type)
	if !t.Valid() {
		return fail(fmt.Errorf("unknown type %q", n.Type))
	}
	ops := generics[t]

	if n.Op == "const" {
		v, err := ParseValue(t, n, n.Value)
		if err != nil {
			return fail(err)
		}
		nd, err := ops.constant(v)
		if err != nil {
			return fail(err)
		}
		return Expr{Type: t, Node: nd}, nil
	}

	if n.Name == "" {
		return fail(fmt.Errorf("name is required"))
	}
	if in, ok := b.inputs[n.Name]; ok {
		if in.typ != t || in.node.Op != n.Op {
			return fail(fmt.Errorf("%q is already a %s %s", n.Name, in.typ, in.node.Op))
		}
		return Expr{Type: t, Node: in.built}, nil
	}

	var (
		nd  *sensor.Node
		set func(any) error
		err error
	)
	if n.Op == "writable" {
		v, verr := ParseValue(t, n, n.Value)
		if verr != nil {
			return fail(verr)
		}
		nd, set, err = ops.writable(v)
	} else {
		if b.env == nil {
			return fail(fmt.Errorf("source %q needs an environment", n.Name))
		}
		ctx, cerr := tagContext(t, n)
		if cerr != nil {
			return fail(cerr)
		}
		nd, set, err = ops.source(b.env, n.Name, ctx)
	}
	if err != nil {
		return fail(err)
	}

	decl := *n
	b.inputs[n.Name] = &input{typ: t, node: &decl, built: nd, set: set}
	b.order = append(b.order, n.Name)

	if n.Op == "source" && n.Value != nil {
		if err := b.Set(n.Name, n.Value); err != nil {
			return fail(err)
		}
	}
	return Expr{Type: t, Node: nd}, nil
}
