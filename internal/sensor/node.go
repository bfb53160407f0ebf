package sensor

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

var nodeIDs atomic.Uint64

// evalFunc computes a node's value from its operands' values.
type evalFunc func(args []any) (any, error)

// Node is the untyped expression node behind every Sensor. Nodes are
// immutable after construction apart from their cache cell and listener
// list, which are synchronized per node.
type Node struct {
	id       uint64
	kind     string
	tag      dataflow.Tag
	operands []*Node
	attrs    ir.IRObject
	env      Environment
	key      string
	height   int
	codec    codec
	payload  any
	eval     evalFunc
	avail    func() bool

	cheapable bool
	static    bool
	writables []*cell

	mu    sync.Mutex
	cache cacheCell

	lmu       sync.Mutex
	listeners atomic.Pointer[[]*Listener]
}

// cacheCell holds the last cheap value together with the generation stamp
// it was computed at. A cell is current only while the stamp matches.
type cacheCell struct {
	value any
	stamp uint64
	valid bool
}

// nodeSpec describes a node under construction.
type nodeSpec struct {
	kind     string
	tag      dataflow.Tag
	operands []*Node
	attrs    ir.IRObject
	codec    codec
	payload  any
	eval     evalFunc
	avail    func() bool

	// env binds a leaf. Composite nodes derive theirs from operands.
	env Environment
	// leaf marks nodes without operands that are still cheaply evaluable.
	leaf bool
	// cell is set for writable leaves.
	cell *cell
	// staticOnly restricts cheap evaluation to constant-only operand trees.
	staticOnly bool
}

func newNode(spec nodeSpec) (*Node, error) {
	for i, op := range spec.operands {
		if op == nil {
			return nil, constructionError(ErrCodeNilOperand, spec.kind, "operand %d is nil", i)
		}
	}

	env := spec.env
	if len(spec.operands) > 0 {
		var err error
		env, err = selectEnvironment(spec.kind, spec.operands)
		if err != nil {
			return nil, err
		}
	}

	attrs := make(ir.IRObject, len(spec.attrs)+1)
	maps.Copy(attrs, spec.attrs)
	attrs["tag"] = ir.IRString(spec.tag.String())
	if env != nil && len(spec.operands) == 0 {
		attrs["env"] = ir.IRString(env.ID())
	}

	operandKeys := make([]string, len(spec.operands))
	height := 0
	for i, op := range spec.operands {
		operandKeys[i] = op.key
		height = max(height, op.height+1)
	}
	key, err := ir.ExpressionKey(spec.kind, attrs, operandKeys)
	if err != nil {
		return nil, constructionError(ErrCodeBadArgument, spec.kind, "attributes not canonical: %v", err)
	}

	n := &Node{
		id:       nodeIDs.Add(1),
		kind:     spec.kind,
		tag:      spec.tag,
		operands: spec.operands,
		attrs:    attrs,
		env:      env,
		key:      key,
		height:   height,
		codec:    spec.codec,
		payload:  spec.payload,
		eval:     spec.eval,
		avail:    spec.avail,
	}

	switch {
	case len(spec.operands) == 0:
		n.static = spec.leaf && spec.cell == nil
		n.cheapable = spec.leaf && spec.eval != nil
		if spec.cell != nil {
			n.writables = []*cell{spec.cell}
		}
	default:
		n.static = true
		n.cheapable = spec.eval != nil
		seen := make(map[*cell]bool)
		for _, op := range spec.operands {
			n.static = n.static && op.static
			n.cheapable = n.cheapable && op.cheapable
			for _, c := range op.writables {
				if !seen[c] {
					seen[c] = true
					n.writables = append(n.writables, c)
				}
			}
		}
		if spec.staticOnly && !n.static {
			n.cheapable = false
		}
	}
	return n, nil
}

// ID returns the node's process-unique instance number.
func (n *Node) ID() uint64 { return n.id }

// Kind returns the operator kind.
func (n *Node) Kind() string { return n.kind }

// Tag returns the dataflow tag the node compiles to.
func (n *Node) Tag() dataflow.Tag { return n.tag }

// Operands returns the operand nodes in declaration order.
func (n *Node) Operands() []*Node { return append([]*Node(nil), n.operands...) }

// Operand returns operand i.
func (n *Node) Operand(i int) *Node { return n.operands[i] }

// Attrs returns the operator attributes, including the tag.
func (n *Node) Attrs() ir.IRObject { return maps.Clone(n.attrs) }

// Attr returns a string attribute, or "" if absent.
func (n *Node) Attr(name string) string {
	if s, ok := n.attrs[name].(ir.IRString); ok {
		return string(s)
	}
	return ""
}

// Environment returns the bound environment, or nil.
func (n *Node) Environment() Environment { return n.env }

// Key returns the structural hash of the node. Nodes with equal keys are
// structurally equal.
func (n *Node) Key() string { return n.key }

// Height is 0 for leaves and one more than the highest operand otherwise.
func (n *Node) Height() int { return n.height }

// Payload returns operator data for translators, such as a leaf's resolver.
func (n *Node) Payload() any { return n.payload }

// Static reports whether the node depends on constants only.
func (n *Node) Static() bool { return n.static }

// Equal reports structural equality.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.key == o.key
}

// FromRaw converts a primitive port value into the node's value type.
func (n *Node) FromRaw(raw any) any { return n.codec.fromRaw(raw) }

// ToRaw converts a node value into its primitive port representation.
func (n *Node) ToRaw(v any) any { return n.codec.toRaw(v) }

func (n *Node) String() string {
	return fmt.Sprintf("%s[%s]", n.kind, n.tag)
}

// Available reports whether the node can ever produce a value.
func (n *Node) Available() bool {
	if n.avail != nil {
		return n.avail()
	}
	for _, op := range n.operands {
		if !op.Available() {
			return false
		}
	}
	return true
}

// stamp sums the generations of reachable writable leaves. Generations only
// grow, so any Set changes the stamp.
func (n *Node) stamp() uint64 {
	var s uint64
	for _, c := range n.writables {
		s += c.gen.Load()
	}
	return s
}

// Cheap returns the environment-free value, memoized until a reachable
// writable leaf changes.
func (n *Node) Cheap() (any, bool) {
	if !n.cheapable {
		return nil, false
	}
	stamp := n.stamp()

	n.mu.Lock()
	if n.cache.valid && n.cache.stamp == stamp {
		v := n.cache.value
		n.mu.Unlock()
		return v, true
	}
	n.mu.Unlock()

	args := make([]any, len(n.operands))
	for i, op := range n.operands {
		v, ok := op.Cheap()
		if !ok {
			return nil, false
		}
		args[i] = v
	}
	v, err := n.eval(args)
	if err != nil {
		return nil, false
	}

	n.mu.Lock()
	n.cache = cacheCell{value: v, stamp: stamp, valid: true}
	n.mu.Unlock()
	return v, true
}

// Listeners returns the current snapshot of directly registered listeners.
func (n *Node) Listeners() []*Listener {
	p := n.listeners.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (n *Node) addListener(l *Listener) {
	n.lmu.Lock()
	defer n.lmu.Unlock()
	old := n.Listeners()
	next := make([]*Listener, len(old), len(old)+1)
	copy(next, old)
	next = append(next, l)
	n.listeners.Store(&next)
}

func (n *Node) removeListener(l *Listener) bool {
	n.lmu.Lock()
	defer n.lmu.Unlock()
	old := n.Listeners()
	next := make([]*Listener, 0, len(old))
	found := false
	for _, cur := range old {
		if cur == l && !found {
			found = true
			continue
		}
		next = append(next, cur)
	}
	if found {
		n.listeners.Store(&next)
	}
	return found
}

func (n *Node) notify(v any) {
	for _, l := range n.Listeners() {
		l.Deliver(v)
	}
}
