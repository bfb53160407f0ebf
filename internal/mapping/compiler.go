package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// RootOutput is the name under which Compile exposes the result port.
const RootOutput = "out"

// Compiler translates expression DAGs into dataflow fragments.
//
// Compilation is synchronous and runs on the caller's goroutine. Each node
// is compiled into its own child fragment, committed only when the node and
// all its operands succeed, so a failed pass never leaves blocks in a
// fragment shared with earlier compilations. Structurally equal
// sub-expressions compiled into the same fragment tree share one port.
type Compiler struct {
	registry *Registry
	catalog  *dataflow.Catalog
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry sets the translator registry. Default: DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(c *Compiler) {
		c.registry = r
	}
}

// WithCatalog sets the primitive catalog of fragments created by Compile.
// Default: dataflow.DefaultCatalog().
func WithCatalog(cat *dataflow.Catalog) Option {
	return func(c *Compiler) {
		c.catalog = cat
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.catalog == nil {
		c.catalog = dataflow.DefaultCatalog()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Registry returns the translator registry.
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// Catalog returns the primitive catalog.
func (c *Compiler) Catalog() *dataflow.Catalog {
	return c.catalog
}

// Compile translates the expression rooted at n into a new fragment whose
// single exposed output, RootOutput, carries n's value.
func (c *Compiler) Compile(ctx context.Context, n *sensor.Node) (*dataflow.Fragment, *Bridge, error) {
	if n == nil {
		return nil, nil, &MappingError{Code: ErrCodeNoTranslator, Message: "nil expression"}
	}
	frag := dataflow.NewFragment("expr", c.catalog)
	_, port, bridge, err := c.CompileInto(ctx, n, frag)
	if err != nil {
		return nil, nil, err
	}
	frag.Expose(RootOutput, port)

	if verrs := dataflow.Validate(frag); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, nil, &MappingError{
			Code:    ErrCodeInvalidFragment,
			Kind:    n.Kind(),
			Key:     n.Key(),
			Message: strings.Join(msgs, "; "),
		}
	}
	return frag, bridge, nil
}

// CompileInto translates n into frag, reusing ports already compiled there
// or in frag's ancestors for structurally equal sub-expressions. It returns
// the result port, its tag and the bridge for listener delivery.
func (c *Compiler) CompileInto(ctx context.Context, n *sensor.Node, frag *dataflow.Fragment) (dataflow.Tag, dataflow.Port, *Bridge, error) {
	if n == nil {
		return dataflow.Tag{}, dataflow.Port{}, nil, &MappingError{Code: ErrCodeNoTranslator, Message: "nil expression"}
	}
	port, bridge, err := c.compile(ctx, n, frag)
	if err != nil {
		return dataflow.Tag{}, dataflow.Port{}, nil, err
	}
	return port.Tag(), port, bridge, nil
}

func (c *Compiler) compile(ctx context.Context, n *sensor.Node, parent *dataflow.Fragment) (dataflow.Port, *Bridge, error) {
	if err := ctx.Err(); err != nil {
		return dataflow.Port{}, nil, err
	}
	if port, ok := parent.Lookup(n.Key()); ok {
		return port, NewBridge(port.Output(), n.FromRaw), nil
	}

	t, err := c.translatorFor(n)
	if err != nil {
		return dataflow.Port{}, nil, err
	}

	child := parent.Begin(n.Kind())
	p := &Pass{c: c, node: n, frag: child}
	raw, err := t.Translate(ctx, p)
	if err != nil {
		return dataflow.Port{}, nil, c.wrap(n, err)
	}
	if raw.IsZero() {
		return dataflow.Port{}, nil, &MappingError{Code: ErrCodeBadWiring, Kind: n.Kind(), Key: n.Key(), Message: "translator returned no port"}
	}
	port, err := raw.Retag(n.Tag())
	if err != nil {
		return dataflow.Port{}, nil, c.wrap(n, err)
	}

	bridge := p.bridge
	if bridge == nil {
		bridge = NewBridge(port.Output(), n.FromRaw)
	}

	child.Remember(n.Key(), port)
	if err := child.Commit(); err != nil {
		return dataflow.Port{}, nil, c.wrap(n, err)
	}
	c.logger.Debug("compiled node", "kind", n.Kind(), "port", port.String())
	return port, bridge, nil
}

func (c *Compiler) translatorFor(n *sensor.Node) (Translator, error) {
	envKind := Generic
	if env := n.Environment(); env != nil {
		envKind = env.Kind()
	}
	if t, ok := c.registry.Lookup(envKind, n.Kind()); ok {
		return t, nil
	}
	if envs := c.registry.environmentsFor(n.Kind()); len(envs) > 0 && n.Environment() == nil {
		return nil, &MappingError{
			Code:    ErrCodeNoEnvironment,
			Kind:    n.Kind(),
			Key:     n.Key(),
			Message: fmt.Sprintf("only compilable for environments %s", strings.Join(envs, ", ")),
		}
	}
	return nil, &MappingError{
		Code:    ErrCodeNoTranslator,
		Kind:    n.Kind(),
		Key:     n.Key(),
		Message: fmt.Sprintf("no translator for environment kind %q", envKind),
	}
}

// wrap converts dataflow errors into mapping errors. Mapping errors from
// operands pass through unchanged.
func (c *Compiler) wrap(n *sensor.Node, err error) error {
	var me *MappingError
	if errors.As(err, &me) {
		return err
	}
	out := &MappingError{Kind: n.Kind(), Key: n.Key(), Err: err}

	var tm *dataflow.TagMismatchError
	var pe *dataflow.PrimitiveError
	var we *dataflow.WiringError
	switch {
	case errors.As(err, &tm):
		out.Code = ErrCodeTagMismatch
		out.Message = "port tags differ"
	case errors.As(err, &pe) && pe.Code == dataflow.ErrCodeUnknownPrimitive:
		out.Code = ErrCodeUnknownPrimitive
		out.Message = "cannot instantiate " + pe.Primitive
	case errors.As(err, &pe):
		out.Code = ErrCodeBadParameter
		out.Message = "cannot instantiate " + pe.Primitive
	case errors.As(err, &we):
		out.Code = ErrCodeBadWiring
		out.Message = "cannot wire " + we.Block + "." + we.Port
	default:
		out.Code = ErrCodeBadWiring
		out.Message = "translation failed"
	}
	return out
}

// Pass is the state of compiling one node. Translators use it to compile
// operands and emit blocks into the node's fragment.
type Pass struct {
	c      *Compiler
	node   *sensor.Node
	frag   *dataflow.Fragment
	bridge *Bridge
}

// Node returns the node being compiled.
func (p *Pass) Node() *sensor.Node {
	return p.node
}

// Fragment returns the fragment blocks are added to.
func (p *Pass) Fragment() *dataflow.Fragment {
	return p.frag
}

// Operand compiles operand i of the node.
func (p *Pass) Operand(ctx context.Context, i int) (dataflow.Port, *Bridge, error) {
	return p.c.compile(ctx, p.node.Operand(i), p.frag)
}

// Block instantiates a primitive in the node's fragment.
func (p *Pass) Block(typ string, params map[string]string) (*dataflow.Block, error) {
	return p.frag.AddBlock(typ, params)
}

// Connect wires port into input of b. The port's tag must equal expect.
func (p *Pass) Connect(b *dataflow.Block, input string, port dataflow.Port, expect dataflow.Tag) error {
	in, err := b.In(input)
	if err != nil {
		return err
	}
	in, err = in.Expect(expect)
	if err != nil {
		return err
	}
	return p.frag.Connect(port, in)
}

// Wire compiles the node's operands in order and connects operand i to
// inputs[i], expecting the tag the operator requires of it.
func (p *Pass) Wire(ctx context.Context, b *dataflow.Block, inputs ...string) error {
	if len(inputs) != len(p.node.Operands()) {
		return fmt.Errorf("%s: %d inputs for %d operands", b.Type, len(inputs), len(p.node.Operands()))
	}
	expect, err := OperandTags(p.node)
	if err != nil {
		return err
	}
	for i, name := range inputs {
		port, _, err := p.Operand(ctx, i)
		if err != nil {
			return err
		}
		if err := p.Connect(b, name, port, expect[i]); err != nil {
			return err
		}
	}
	return nil
}

// SetBridge overrides the bridge built for the node's result, for
// translators that derive it from an operand's bridge.
func (p *Pass) SetBridge(b *Bridge) {
	p.bridge = b
}
