package sensor

import (
	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// derive builds a composite node of value type T.
func derive[T any](kind string, tag dataflow.Tag, attrs ir.IRObject, eval evalFunc, operands ...*Node) (Sensor[T], error) {
	c, err := codecFor[T](tag)
	if err != nil {
		return Sensor[T]{}, constructionError(ErrCodeBadArgument, kind, "%v", err)
	}
	n, err := newNode(nodeSpec{
		kind:     kind,
		tag:      tag,
		operands: operands,
		attrs:    attrs,
		codec:    c,
		eval:     eval,
	})
	if err != nil {
		return Sensor[T]{}, err
	}
	return Sensor[T]{n: n}, nil
}

// plainOf returns the plain tag for T.
func plainOf[T any]() dataflow.Tag {
	typ, err := valueType[T]()
	if err != nil {
		panic("sensor: " + err.Error())
	}
	return dataflow.Plain(typ)
}

// requireOperands reports the first nil operand.
func requireOperands(kind string, nodes ...*Node) error {
	for i, n := range nodes {
		if n == nil {
			return constructionError(ErrCodeNilOperand, kind, "operand %d is nil", i)
		}
	}
	return nil
}

// sameTag requires operands of a binary operator to share their tag.
func sameTag(kind string, a, b *Node) error {
	if err := requireOperands(kind, a, b); err != nil {
		return err
	}
	if a.tag != b.tag {
		return constructionError(ErrCodeContextMismatch, kind, "operand tags differ: %s vs %s", a.tag, b.tag)
	}
	return nil
}

func unary[A, R any](f func(A) R) evalFunc {
	return func(args []any) (any, error) {
		return f(args[0].(A)), nil
	}
}

func binary[A, B, R any](f func(A, B) R) evalFunc {
	return func(args []any) (any, error) {
		return f(args[0].(A), args[1].(B)), nil
	}
}
