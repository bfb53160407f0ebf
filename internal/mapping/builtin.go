package mapping

import (
	"context"
	"fmt"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// ValueOutput is the output every built-in primitive delivers its result on.
const ValueOutput = "outValue"

// primitiveOp maps an operator to one primitive whose inputs take the
// operands in order.
type primitiveOp struct {
	primitive string
	inputs    []string
}

var (
	binaryInputs = []string{"inFirst", "inSecond"}
	unaryInputs  = []string{"inValue"}
)

var primitiveOps = map[string]primitiveOp{
	sensor.KindDoubleAdd:      {"Double::Add", binaryInputs},
	sensor.KindDoubleMultiply: {"Double::Multiply", binaryInputs},
	sensor.KindDoubleNegate:   {"Double::Negate", unaryInputs},
	sensor.KindDoubleGreater:  {"Double::Greater", binaryInputs},
	sensor.KindBooleanAnd:     {"Boolean::And", binaryInputs},
	sensor.KindBooleanOr:      {"Boolean::Or", binaryInputs},
	sensor.KindBooleanNot:     {"Boolean::Not", unaryInputs},

	sensor.KindVectorAdd:       {"Vector::Add", binaryInputs},
	sensor.KindVectorInvert:    {"Vector::Invert", unaryInputs},
	sensor.KindVectorScale:     {"Vector::Scale", []string{"inValue", "inFactor"}},
	sensor.KindVectorFromXYZ:   {"Vector::FromXYZ", []string{"inX", "inY", "inZ"}},
	sensor.KindVectorTransform: {"Vector::Transform", []string{"inValue", "inTransform"}},
	sensor.KindVectorRotate:    {"Vector::Rotate", []string{"inValue", "inRotation"}},

	sensor.KindRotationInvert:   {"Rotation::Invert", unaryInputs},
	sensor.KindRotationMultiply: {"Rotation::Multiply", binaryInputs},

	sensor.KindTransformationInvert:      {"Transformation::Invert", unaryInputs},
	sensor.KindTransformationMultiply:    {"Transformation::Multiply", binaryInputs},
	sensor.KindTransformationTranslation: {"Transformation::Translation", unaryInputs},
	sensor.KindTransformationRotation:    {"Transformation::Rotation", unaryInputs},
	sensor.KindTransformationFromParts:   {"Transformation::FromParts", []string{"inTranslation", "inRotation"}},

	sensor.KindTwistAdd:    {"Twist::Add", binaryInputs},
	sensor.KindTwistInvert: {"Twist::Invert", unaryInputs},

	sensor.KindDirectionAdd:              {"Vector::Add", binaryInputs},
	sensor.KindPointDisplace:             {"Vector::Add", binaryInputs},
	sensor.KindVelocityAdd:               {"Twist::Add", binaryInputs},
	sensor.KindVelocityInvert:            {"Twist::Invert", unaryInputs},
	sensor.KindVelocityChangeOrientation: {"Twist::ChangeOrientation", []string{"inValue", "inRotation"}},
	sensor.KindVelocityChangePivot:       {"Twist::ChangePivot", []string{"inValue", "inOffset"}},
}

// RegisterBuiltins installs generic translators for every operator of the
// sensor package.
func RegisterBuiltins(r *Registry) {
	for kind, op := range primitiveOps {
		r.Register(Generic, kind, op)
	}
	r.RegisterFunc(Generic, sensor.KindConstant, translateConstant)
	r.RegisterFunc(Generic, sensor.KindWritable, translateWritable)
	r.RegisterFunc(Generic, sensor.KindReinterpret, translateReinterpret)
	r.RegisterFunc(Generic, sensor.KindPersisted, translatePersisted)
	r.RegisterFunc(Generic, sensor.KindConditional, translateConditional)
	r.RegisterFunc(Generic, sensor.KindHistoryAtAge, translateAtAge)
	r.RegisterFunc(Generic, sensor.KindSlidingAverage, translateSlidingAverage)
	r.RegisterFunc(Generic, sensor.KindVectorComponent, translateComponent)
}

// Translate emits the primitive and wires the operands.
func (op primitiveOp) Translate(ctx context.Context, p *Pass) (dataflow.Port, error) {
	b, err := p.Block(op.primitive, nil)
	if err != nil {
		return dataflow.Port{}, err
	}
	if err := p.Wire(ctx, b, op.inputs...); err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

// ValuePrimitive names the constant primitive of t.
func ValuePrimitive(t dataflow.Type) string {
	return "Value::" + string(t)
}

func translateConstant(_ context.Context, p *Pass) (dataflow.Port, error) {
	b, err := p.Block(ValuePrimitive(p.Node().Tag().Type), map[string]string{"Value": p.Node().Attr("value")})
	if err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

// translateWritable compiles the value the leaf holds now. Later writes are
// not seen by the compiled fragment.
func translateWritable(ctx context.Context, p *Pass) (dataflow.Port, error) {
	v, ok := p.Node().Cheap()
	if !ok {
		return dataflow.Port{}, fmt.Errorf("writable %s has no value", p.Node())
	}
	raw, err := geom.Format(p.Node().ToRaw(v))
	if err != nil {
		return dataflow.Port{}, err
	}
	b, err := p.Block(ValuePrimitive(p.Node().Tag().Type), map[string]string{"Value": raw})
	if err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

// translateReinterpret emits nothing: the operand's port is returned and
// retagged by the compiler.
func translateReinterpret(ctx context.Context, p *Pass) (dataflow.Port, error) {
	port, bridge, err := p.Operand(ctx, 0)
	if err != nil {
		return dataflow.Port{}, err
	}
	n, op := p.Node(), p.Node().Operand(0)
	p.SetBridge(bridge.Then(func(v any) any { return n.FromRaw(op.ToRaw(v)) }))
	return port, nil
}

// NetReadPrimitive names the primitive reading a persisted value of t.
func NetReadPrimitive(t dataflow.Type) string {
	return "Net::Read" + string(t)
}

// NetWritePrimitive names the primitive publishing a value of t.
func NetWritePrimitive(t dataflow.Type) string {
	return "Net::Write" + string(t)
}

func translatePersisted(_ context.Context, p *Pass) (dataflow.Port, error) {
	n := p.Node()
	r, ok := n.Payload().(sensor.Resolver)
	if !ok {
		return dataflow.Port{}, fmt.Errorf("persisted node carries %T, not a resolver", n.Payload())
	}
	remote, ok := r.RemoteNet()
	if !ok {
		return dataflow.Port{}, &MappingError{
			Code:    ErrCodeSourceNotFound,
			Kind:    n.Kind(),
			Key:     n.Key(),
			Message: fmt.Sprintf("value %q has no producing run", r.Key()),
		}
	}
	b, err := p.Block(NetReadPrimitive(n.Tag().Type), map[string]string{"RemoteNet": remote, "Key": r.Key()})
	if err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

func translateConditional(ctx context.Context, p *Pass) (dataflow.Port, error) {
	b, err := p.Block(string(p.Node().Tag().Type)+"::Conditional", nil)
	if err != nil {
		return dataflow.Port{}, err
	}
	if err := p.Wire(ctx, b, "inCondition", "inTrue", "inFalse"); err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

func translateAtAge(ctx context.Context, p *Pass) (dataflow.Port, error) {
	b, err := p.Block(string(p.Node().Tag().Type)+"::AtTime", map[string]string{"MaxAge": p.Node().Attr("max_age")})
	if err != nil {
		return dataflow.Port{}, err
	}
	if err := p.Wire(ctx, b, "inValue", "inAge"); err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

func translateSlidingAverage(ctx context.Context, p *Pass) (dataflow.Port, error) {
	b, err := p.Block(string(p.Node().Tag().Type)+"::SlidingAverage", map[string]string{"Duration": p.Node().Attr("duration")})
	if err != nil {
		return dataflow.Port{}, err
	}
	if err := p.Wire(ctx, b, "inValue"); err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}

func translateComponent(ctx context.Context, p *Pass) (dataflow.Port, error) {
	b, err := p.Block("Vector::Get", map[string]string{"Axis": p.Node().Attr("axis")})
	if err != nil {
		return dataflow.Port{}, err
	}
	if err := p.Wire(ctx, b, "inValue"); err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(ValueOutput)
}
