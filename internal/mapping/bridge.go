package mapping

import (
	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
)

// Bridge turns raw values appearing on a compiled output into the value
// type of the expression it was compiled from. The conversion is fixed when
// the bridge is built.
type Bridge struct {
	out   *dataflow.Output
	adapt func(any) any
}

// NewBridge returns a bridge reading out through adapt. A nil adapt
// delivers raw values unchanged.
func NewBridge(out *dataflow.Output, adapt func(any) any) *Bridge {
	if adapt == nil {
		adapt = func(v any) any { return v }
	}
	return &Bridge{out: out, adapt: adapt}
}

// Output returns the block output the bridge reads.
func (b *Bridge) Output() *dataflow.Output {
	return b.out
}

// Map converts a raw output value.
func (b *Bridge) Map(raw any) any {
	return b.adapt(raw)
}

// Then wraps b with a further conversion of its delivered values. The
// output stays the same.
func (b *Bridge) Then(f func(any) any) *Bridge {
	inner := b.adapt
	return &Bridge{out: b.out, adapt: func(raw any) any { return f(inner(raw)) }}
}

// ListenerBridge is a Bridge whose delivered values have type T.
type ListenerBridge[T any] struct {
	b *Bridge
}

// Typed views b as delivering T. T must be the value type of the compiled
// expression.
func Typed[T any](b *Bridge) ListenerBridge[T] {
	return ListenerBridge[T]{b: b}
}

// Output returns the block output the bridge reads.
func (lb ListenerBridge[T]) Output() *dataflow.Output {
	return lb.b.out
}

// Value converts a raw output value.
func (lb ListenerBridge[T]) Value(raw any) T {
	return lb.b.Map(raw).(T)
}

// Listener adapts fn to receive raw output values.
func (lb ListenerBridge[T]) Listener(fn func(T)) func(raw any) {
	return func(raw any) { fn(lb.Value(raw)) }
}
