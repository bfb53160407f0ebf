package sim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
)

// cycle identifies one evaluation step of a run.
type cycle struct {
	n    int64
	time float64
}

// errNoValue marks a block output that has no value in this cycle. It
// propagates downstream without being logged.
var errNoValue = errors.New("no value")

// blockFunc computes a block's output from its input values, ordered as
// the impl's inputs.
type blockFunc func(c cycle, args []any) (any, error)

// impl is the simulation of one primitive.
type impl struct {
	inputs []string
	build  func(b *dataflow.Block, r *Run) (blockFunc, error)
}

func op1[A, R any](in string, f func(A) R) impl {
	return impl{
		inputs: []string{in},
		build: func(*dataflow.Block, *Run) (blockFunc, error) {
			return func(_ cycle, args []any) (any, error) {
				return f(args[0].(A)), nil
			}, nil
		},
	}
}

func op2[A, B, R any](in1, in2 string, f func(A, B) R) impl {
	return impl{
		inputs: []string{in1, in2},
		build: func(*dataflow.Block, *Run) (blockFunc, error) {
			return func(_ cycle, args []any) (any, error) {
				return f(args[0].(A), args[1].(B)), nil
			}, nil
		},
	}
}

const (
	inFirst  = "inFirst"
	inSecond = "inSecond"
	inValue  = "inValue"
)

var impls = map[string]impl{
	"Double::Add":      op2(inFirst, inSecond, func(a, b float64) float64 { return a + b }),
	"Double::Multiply": op2(inFirst, inSecond, func(a, b float64) float64 { return a * b }),
	"Double::Negate":   op1(inValue, func(a float64) float64 { return -a }),
	"Double::Greater":  op2(inFirst, inSecond, func(a, b float64) bool { return a > b }),

	"Boolean::And": op2(inFirst, inSecond, func(a, b bool) bool { return a && b }),
	"Boolean::Or":  op2(inFirst, inSecond, func(a, b bool) bool { return a || b }),
	"Boolean::Not": op1(inValue, func(a bool) bool { return !a }),

	"Vector::Add":    op2(inFirst, inSecond, geom.Vector.Add),
	"Vector::Invert": op1(inValue, geom.Vector.Negate),
	"Vector::Scale":  op2(inValue, "inFactor", geom.Vector.Scale),
	"Vector::Get": {
		inputs: []string{inValue},
		build: func(b *dataflow.Block, _ *Run) (blockFunc, error) {
			axis := geom.Axis(b.Params["Axis"])
			if !axis.Valid() {
				return nil, fmt.Errorf("%s: invalid axis %q", b.ID, axis)
			}
			return func(_ cycle, args []any) (any, error) {
				return args[0].(geom.Vector).Component(axis)
			}, nil
		},
	},
	"Vector::FromXYZ": {
		inputs: []string{"inX", "inY", "inZ"},
		build: func(*dataflow.Block, *Run) (blockFunc, error) {
			return func(_ cycle, args []any) (any, error) {
				return geom.V(args[0].(float64), args[1].(float64), args[2].(float64)), nil
			}, nil
		},
	},
	"Vector::Transform": op2(inValue, "inTransform", func(v geom.Vector, t geom.Transformation) geom.Vector { return t.Apply(v) }),
	"Vector::Rotate":    op2(inValue, "inRotation", func(v geom.Vector, r geom.Rotation) geom.Vector { return r.Apply(v) }),

	"Rotation::Invert":   op1(inValue, geom.Rotation.Invert),
	"Rotation::Multiply": op2(inFirst, inSecond, geom.Rotation.Multiply),

	"Transformation::Invert":      op1(inValue, geom.Transformation.Invert),
	"Transformation::Multiply":    op2(inFirst, inSecond, geom.Transformation.Multiply),
	"Transformation::Translation": op1(inValue, func(t geom.Transformation) geom.Vector { return t.Translation }),
	"Transformation::Rotation":    op1(inValue, func(t geom.Transformation) geom.Rotation { return t.Rotation }),
	"Transformation::FromParts":   op2("inTranslation", "inRotation", geom.NewTransformation),

	"Twist::Add":               op2(inFirst, inSecond, geom.Twist.Add),
	"Twist::Invert":            op1(inValue, geom.Twist.Negate),
	"Twist::ChangeOrientation": op2(inValue, "inRotation", geom.Twist.Rotate),
	"Twist::ChangePivot":       op2(inValue, "inOffset", geom.Twist.ChangePivot),

	"Double::SlidingAverage": slidingAverage(func(vs []any) any {
		var sum float64
		for _, v := range vs {
			sum += v.(float64)
		}
		return sum / float64(len(vs))
	}),
	"Vector::SlidingAverage": slidingAverage(func(vs []any) any {
		var sum geom.Vector
		for _, v := range vs {
			sum = sum.Add(v.(geom.Vector))
		}
		return sum.Scale(1 / float64(len(vs)))
	}),
}

// implFor returns the simulation of a primitive type, including the
// per-type families.
func implFor(typ string) (impl, bool) {
	if im, ok := impls[typ]; ok {
		return im, true
	}
	switch {
	case strings.HasPrefix(typ, "Value::"):
		return constant, true
	case strings.HasSuffix(typ, "::Conditional"):
		return conditional, true
	case strings.HasSuffix(typ, "::AtTime"):
		return atTime, true
	case strings.HasPrefix(typ, "Net::Read"):
		return netRead, true
	case strings.HasPrefix(typ, "Net::Write"):
		return netWrite, true
	case strings.HasPrefix(typ, SourcePrefix):
		return sourceImpl, true
	case strings.HasPrefix(typ, WritablePrefix):
		return writableImpl, true
	}
	return impl{}, false
}

// parseRaw decodes a parameter string into the raw value of type t.
func parseRaw(t dataflow.Type, s string) (any, error) {
	switch t {
	case dataflow.TypeDouble:
		return geom.ParseDouble(s)
	case dataflow.TypeBoolean:
		return geom.ParseBool(s)
	case dataflow.TypeVector:
		return geom.ParseVector(s)
	case dataflow.TypeRotation:
		return geom.ParseRotation(s)
	case dataflow.TypeTransformation:
		return geom.ParseTransformation(s)
	case dataflow.TypeTwist:
		return geom.ParseTwist(s)
	default:
		return nil, fmt.Errorf("unknown value type %q", t)
	}
}

var constant = impl{
	build: func(b *dataflow.Block, _ *Run) (blockFunc, error) {
		outs := b.Primitive().Outputs
		if len(outs) != 1 {
			return nil, fmt.Errorf("%s: constant needs one output", b.ID)
		}
		v, err := parseRaw(outs[0].Type, b.Params["Value"])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.ID, err)
		}
		return func(cycle, []any) (any, error) { return v, nil }, nil
	},
}

var conditional = impl{
	inputs: []string{"inCondition", "inTrue", "inFalse"},
	build: func(*dataflow.Block, *Run) (blockFunc, error) {
		return func(_ cycle, args []any) (any, error) {
			if args[0].(bool) {
				return args[1], nil
			}
			return args[2], nil
		}, nil
	},
}

type sample struct {
	time  float64
	value any
}

// atTime keeps MaxAge seconds of samples and yields the newest one at
// least inAge seconds old.
var atTime = impl{
	inputs: []string{inValue, "inAge"},
	build: func(b *dataflow.Block, _ *Run) (blockFunc, error) {
		maxAge, err := strconv.ParseFloat(b.Params["MaxAge"], 64)
		if err != nil || maxAge <= 0 {
			return nil, fmt.Errorf("%s: invalid MaxAge %q", b.ID, b.Params["MaxAge"])
		}
		var history []sample
		return func(c cycle, args []any) (any, error) {
			history = append(history, sample{time: c.time, value: args[0]})
			for len(history) > 0 && history[0].time < c.time-maxAge-geom.Epsilon {
				history = history[1:]
			}
			age := args[1].(float64)
			if age < 0 || age > maxAge {
				return nil, fmt.Errorf("%s: age %g outside [0, %g]", b.ID, age, maxAge)
			}
			target := c.time - age + geom.Epsilon
			for i := len(history) - 1; i >= 0; i-- {
				if history[i].time <= target {
					return history[i].value, nil
				}
			}
			return nil, errNoValue
		}, nil
	},
}

func slidingAverage(mean func([]any) any) impl {
	return impl{
		inputs: []string{inValue},
		build: func(b *dataflow.Block, _ *Run) (blockFunc, error) {
			duration, err := strconv.ParseFloat(b.Params["Duration"], 64)
			if err != nil || duration <= 0 {
				return nil, fmt.Errorf("%s: invalid Duration %q", b.ID, b.Params["Duration"])
			}
			var window []sample
			return func(c cycle, args []any) (any, error) {
				window = append(window, sample{time: c.time, value: args[0]})
				for len(window) > 0 && window[0].time <= c.time-duration+geom.Epsilon {
					window = window[1:]
				}
				vs := make([]any, len(window))
				for i, s := range window {
					vs[i] = s.value
				}
				return mean(vs), nil
			}, nil
		},
	}
}

var netRead = impl{
	build: func(b *dataflow.Block, r *Run) (blockFunc, error) {
		remote, key := b.Params["RemoteNet"], b.Params["Key"]
		return func(cycle, []any) (any, error) {
			v, ok := r.env.readNet(remote, key)
			if !ok {
				return nil, errNoValue
			}
			return v, nil
		}, nil
	},
}

var netWrite = impl{
	inputs: []string{inValue},
	build: func(b *dataflow.Block, r *Run) (blockFunc, error) {
		key := b.Params["Key"]
		return func(_ cycle, args []any) (any, error) {
			r.env.writeNet(r.name, key, args[0])
			return nil, nil
		}, nil
	},
}

var sourceImpl = impl{
	build: func(b *dataflow.Block, r *Run) (blockFunc, error) {
		name := b.Params["Name"]
		return func(cycle, []any) (any, error) {
			v, ok := r.env.readSource(name)
			if !ok {
				return nil, errNoValue
			}
			return v, nil
		}, nil
	},
}
