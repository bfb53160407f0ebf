package sensor

import (
	"context"
	"sync/atomic"
)

// Environment is an execution environment able to compile and run
// expressions bound to it.
//
// Evaluate and listener deliveries must produce values of the node's own
// value type, i.e. already passed through Node.FromRaw.
type Environment interface {
	// ID identifies this environment instance. Nodes bound to environments
	// with equal IDs may be combined.
	ID() string

	// Kind selects the translator set used to compile for this environment.
	Kind() string

	// Evaluate performs a one-shot read of n.
	Evaluate(ctx context.Context, n *Node) (any, error)

	// RegisterListeners attaches every listener in batch to its node.
	RegisterListeners(ctx context.Context, batch []Registration) error

	// UnregisterListeners detaches listeners registered earlier.
	UnregisterListeners(ctx context.Context, batch []Registration) error
}

// Listener is a callback with identity, so it can be unregistered.
type Listener struct {
	id uint64
	fn func(any)
}

var listenerIDs atomic.Uint64

// NewListener wraps fn.
func NewListener(fn func(any)) *Listener {
	return &Listener{id: listenerIDs.Add(1), fn: fn}
}

// ID returns the listener's process-unique number.
func (l *Listener) ID() uint64 { return l.id }

// Deliver invokes the callback.
func (l *Listener) Deliver(v any) { l.fn(v) }

// Registration pairs a node with a listener.
type Registration struct {
	Node     *Node
	Listener *Listener
}

// Listen builds a typed registration for s.
func Listen[T any](s Sensor[T], fn func(T)) Registration {
	return Registration{
		Node:     s.n,
		Listener: NewListener(func(v any) { fn(v.(T)) }),
	}
}

// SelectEnvironment returns the single environment the nodes are bound to,
// nil if none is bound, or a construction error if two disagree.
func SelectEnvironment(nodes ...*Node) (Environment, error) {
	return selectEnvironment("select", nodes)
}

func selectEnvironment(kind string, nodes []*Node) (Environment, error) {
	var env Environment
	for i, n := range nodes {
		if n == nil {
			return nil, constructionError(ErrCodeNilOperand, kind, "operand %d is nil", i)
		}
		if n.env == nil {
			continue
		}
		if env == nil {
			env = n.env
			continue
		}
		if env.ID() != n.env.ID() {
			return nil, constructionError(ErrCodeEnvMismatch, kind,
				"operands bound to environments %q and %q", env.ID(), n.env.ID())
		}
	}
	return env, nil
}
