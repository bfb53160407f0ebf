package sensor

import (
	"fmt"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// Generic operator kinds.
const (
	KindConditional    = "conditional"
	KindReinterpret    = "reinterpret"
	KindHistoryAtAge   = "history.at_age"
	KindSlidingAverage = "sliding_average"
)

// Conditional selects ifTrue while cond holds and ifFalse otherwise. Both
// branches must carry the same tag.
func Conditional[T any](cond BooleanSensor, ifTrue, ifFalse Sensor[T]) (Sensor[T], error) {
	if err := requireOperands(KindConditional, cond.n, ifTrue.n, ifFalse.n); err != nil {
		return Sensor[T]{}, err
	}
	if err := sameTag(KindConditional, ifTrue.n, ifFalse.n); err != nil {
		return Sensor[T]{}, err
	}
	s, err := derive[T](KindConditional, ifTrue.n.tag, nil,
		func(args []any) (any, error) {
			if args[0].(bool) {
				return args[1], nil
			}
			return args[2], nil
		},
		cond.n, ifTrue.n, ifFalse.n)
	if err != nil {
		return Sensor[T]{}, err
	}
	// only the branch that can be selected matters
	s.n.avail = func() bool {
		if !cond.n.Available() {
			return false
		}
		if c, ok := cond.CheapValue(); ok {
			if c {
				return ifTrue.n.Available()
			}
			return ifFalse.n.Available()
		}
		return ifTrue.n.Available() && ifFalse.n.Available()
	}
	return s, nil
}

// Reinterpret returns s under a new interpretive context. The computation is
// shared with s; only the tag, and for contextual types the delivered
// value's frames, change.
func Reinterpret[T any](s Sensor[T], ctx map[string]string) (Sensor[T], error) {
	if err := requireOperands(KindReinterpret, s.n); err != nil {
		return Sensor[T]{}, err
	}
	return retag[T](s.n, s.n.tag.WithContext(ctx))
}

// retag is the zero-cost derivation behind Reinterpret and the conversions
// between plain and contextual types.
func retag[To any](op *Node, tag dataflow.Tag) (Sensor[To], error) {
	if err := requireOperands(KindReinterpret, op); err != nil {
		return Sensor[To]{}, err
	}
	if tag.Type != op.tag.Type {
		return Sensor[To]{}, constructionError(ErrCodeBadArgument, KindReinterpret, "cannot retag %s as %s", op.tag, tag)
	}
	if err := checkContext[To](tag); err != nil {
		return Sensor[To]{}, err
	}
	c, err := codecFor[To](tag)
	if err != nil {
		return Sensor[To]{}, constructionError(ErrCodeBadArgument, KindReinterpret, "%v", err)
	}
	var zero To
	n, err := newNode(nodeSpec{
		kind:     KindReinterpret,
		tag:      tag,
		operands: []*Node{op},
		attrs:    ir.IRObject{"as": ir.IRString(fmt.Sprintf("%T", zero))},
		codec:    c,
		eval: func(args []any) (any, error) {
			return c.fromRaw(op.ToRaw(args[0])), nil
		},
	})
	if err != nil {
		return Sensor[To]{}, err
	}
	return Sensor[To]{n: n}, nil
}

// checkContext requires the context keys a contextual value type is built from.
func checkContext[T any](tag dataflow.Tag) error {
	var zero T
	var required []string
	switch any(zero).(type) {
	case geom.Point:
		required = []string{CtxFrame}
	case geom.Direction:
		required = []string{CtxOrientation}
	case geom.Velocity:
		required = []string{CtxMoving, CtxReference, CtxPivotFrame, CtxPivot, CtxOrientation}
	}
	m := tag.ContextMap()
	for _, k := range required {
		if _, ok := m[k]; !ok {
			return constructionError(ErrCodeContextMismatch, KindReinterpret, "%T context needs %q", zero, k)
		}
	}
	return nil
}

// History gives access to past values of an expression up to MaxAge
// seconds old.
type History[T any] struct {
	s      Sensor[T]
	maxAge float64
}

// NewHistory records the history of s. maxAge must be positive.
func NewHistory[T any](s Sensor[T], maxAge float64) (History[T], error) {
	if err := requireOperands(KindHistoryAtAge, s.n); err != nil {
		return History[T]{}, err
	}
	if maxAge <= 0 {
		return History[T]{}, constructionError(ErrCodeBadArgument, KindHistoryAtAge, "max age must be positive, got %g", maxAge)
	}
	return History[T]{s: s, maxAge: maxAge}, nil
}

// MaxAge returns the recorded time span in seconds.
func (h History[T]) MaxAge() float64 { return h.maxAge }

// AtAge yields the value the expression had age seconds ago. Only
// constant expressions have a cheap value: their history is the constant.
func (h History[T]) AtAge(age DoubleSensor) (Sensor[T], error) {
	if err := requireOperands(KindHistoryAtAge, h.s.n, age.n); err != nil {
		return Sensor[T]{}, err
	}
	c, err := codecFor[T](h.s.n.tag)
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindHistoryAtAge, "%v", err)
	}
	n, err := newNode(nodeSpec{
		kind:       KindHistoryAtAge,
		tag:        h.s.n.tag,
		operands:   []*Node{h.s.n, age.n},
		attrs:      ir.IRObject{"max_age": ir.IRString(geom.MustFormat(h.maxAge))},
		codec:      c,
		eval:       func(args []any) (any, error) { return args[0], nil },
		staticOnly: true,
	})
	if err != nil {
		return Sensor[T]{}, err
	}
	return Sensor[T]{n: n}, nil
}

// SlidingAverage averages s over the last duration seconds. Only scalar and
// vector expressions can be averaged.
func SlidingAverage[T any](s Sensor[T], duration float64) (Sensor[T], error) {
	if err := requireOperands(KindSlidingAverage, s.n); err != nil {
		return Sensor[T]{}, err
	}
	if t := s.n.tag.Type; t != dataflow.TypeDouble && t != dataflow.TypeVector {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindSlidingAverage, "cannot average %s", t)
	}
	if duration <= 0 {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, KindSlidingAverage, "duration must be positive, got %g", duration)
	}
	n, err := newNode(nodeSpec{
		kind:       KindSlidingAverage,
		tag:        s.n.tag,
		operands:   []*Node{s.n},
		attrs:      ir.IRObject{"duration": ir.IRString(geom.MustFormat(duration))},
		codec:      s.n.codec,
		eval:       func(args []any) (any, error) { return args[0], nil },
		staticOnly: true,
	})
	if err != nil {
		return Sensor[T]{}, err
	}
	return Sensor[T]{n: n}, nil
}
