package dataflow

import (
	"fmt"
	"maps"
	"strconv"
)

// Block is one primitive instance inside a fragment.
type Block struct {
	ID     string
	Type   string
	Params map[string]string

	seq     int
	prim    *Primitive
	frag    *Fragment
	outputs map[string]*Output
	fed     map[string]bool
}

// Primitive returns the catalog entry the block instantiates.
func (b *Block) Primitive() *Primitive {
	return b.prim
}

// Out returns the named output as a port tagged with its plain type. The same
// *Output is returned on every call, so ports compare by identity.
func (b *Block) Out(name string) (Port, error) {
	out, ok := b.outputs[name]
	if !ok {
		return Port{}, &WiringError{Block: b.ID, Port: name, Message: fmt.Sprintf("%s has no output %q", b.Type, name)}
	}
	return Port{out: out, tag: Plain(out.Type)}, nil
}

// In returns the named input, expecting its plain type.
func (b *Block) In(name string) (Input, error) {
	spec, ok := b.prim.Input(name)
	if !ok {
		return Input{}, &WiringError{Block: b.ID, Port: name, Message: fmt.Sprintf("%s has no input %q", b.Type, name)}
	}
	return Input{Block: b, Name: name, Tag: Plain(spec.Type)}, nil
}

// Fed reports whether the named input has been connected.
func (b *Block) Fed(input string) bool {
	return b.fed[input]
}

// Output is a concrete output slot of a block. Ports are tagged views of it.
type Output struct {
	Block *Block
	Name  string
	Type  Type
}

func (o *Output) String() string {
	return o.Block.ID + "." + o.Name
}

// Port is a tagged reference to a block output. Retagging creates a new Port
// over the same *Output and never adds a block.
type Port struct {
	out *Output
	tag Tag
}

// Output returns the underlying block output.
func (p Port) Output() *Output {
	return p.out
}

// Tag returns the port's dataflow tag.
func (p Port) Tag() Tag {
	return p.tag
}

// IsZero reports whether p references no output.
func (p Port) IsZero() bool {
	return p.out == nil
}

// Retag returns the same output under a new tag. The value type cannot change.
func (p Port) Retag(tag Tag) (Port, error) {
	if p.out == nil {
		return Port{}, fmt.Errorf("retag of zero port")
	}
	if tag.Type != p.tag.Type {
		return Port{}, &TagMismatchError{From: p.tag, To: tag, Block: p.out.Block.ID, Input: p.out.Name}
	}
	return Port{out: p.out, tag: tag}, nil
}

func (p Port) String() string {
	if p.out == nil {
		return "<none>"
	}
	return p.out.String() + ":" + p.tag.String()
}

// Input is a block input together with the tag a connected port must carry.
type Input struct {
	Block *Block
	Name  string
	Tag   Tag
}

// Expect narrows the accepted tag, for example to a frame context. The value
// type must stay the same as the primitive declares.
func (in Input) Expect(tag Tag) (Input, error) {
	if tag.Type != in.Tag.Type {
		return Input{}, &TagMismatchError{From: tag, To: in.Tag, Block: in.Block.ID, Input: in.Name}
	}
	in.Tag = tag
	return in, nil
}

// Link is a connection from a block output to a block input.
type Link struct {
	From  *Output
	To    *Block
	Input string
	Tag   Tag
}

// Exposed is a named output port of a fragment.
type Exposed struct {
	Name string
	Port Port
}

// Fragment is a composable unit of blocks and links. Fragments nest: the
// compiled form of an operator embeds the fragments of its operands.
//
// Work on a shared fragment happens in a child opened with Begin. The child
// sees its ancestors' memoized ports but its own blocks and memo entries only
// become part of the parent on Commit, so a failed compile leaves the parent
// unchanged.
type Fragment struct {
	name     string
	parent   *Fragment
	catalog  *Catalog
	seq      *int
	blocks   []*Block
	links    []Link
	children []*Fragment
	outputs  []Exposed
	memo     map[string]Port
	done     bool
}

// NewFragment creates an empty root fragment drawing primitives from catalog.
func NewFragment(name string, catalog *Catalog) *Fragment {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Fragment{
		name:    name,
		catalog: catalog,
		seq:     new(int),
		memo:    make(map[string]Port),
	}
}

// Name returns the fragment name.
func (f *Fragment) Name() string {
	return f.name
}

// Catalog returns the primitive catalog blocks are drawn from.
func (f *Fragment) Catalog() *Catalog {
	return f.catalog
}

// Begin opens a detached child fragment.
func (f *Fragment) Begin(name string) *Fragment {
	return &Fragment{
		name:    name,
		parent:  f,
		catalog: f.catalog,
		seq:     f.seq,
		memo:    make(map[string]Port),
	}
}

// Commit attaches a child opened with Begin to its parent and publishes its
// memoized ports there. Empty children are not attached.
func (f *Fragment) Commit() error {
	if f.parent == nil {
		return fmt.Errorf("fragment %q: commit of root fragment", f.name)
	}
	if f.done {
		return fmt.Errorf("fragment %q: already committed", f.name)
	}
	f.done = true
	if len(f.blocks) > 0 || len(f.children) > 0 {
		f.parent.children = append(f.parent.children, f)
	}
	maps.Copy(f.parent.memo, f.memo)
	return nil
}

// AddBlock instantiates a primitive. Parameters not supplied take their
// defaults; unknown or missing required parameters are rejected.
func (f *Fragment) AddBlock(typ string, params map[string]string) (*Block, error) {
	prim, ok := f.catalog.Lookup(typ)
	if !ok {
		return nil, &PrimitiveError{Code: ErrCodeUnknownPrimitive, Primitive: typ, Message: "not in catalog"}
	}

	resolved := make(map[string]string, len(prim.Params))
	for name := range params {
		if _, ok := prim.Param(name); !ok {
			return nil, &PrimitiveError{Code: ErrCodeBadParameter, Primitive: typ, Param: name, Message: "unknown parameter"}
		}
	}
	for _, ps := range prim.Params {
		v, ok := params[ps.Name]
		switch {
		case ok:
			resolved[ps.Name] = v
		case ps.Required:
			return nil, &PrimitiveError{Code: ErrCodeBadParameter, Primitive: typ, Param: ps.Name, Message: "required parameter not set"}
		default:
			resolved[ps.Name] = ps.Default
		}
	}

	*f.seq++
	b := &Block{
		ID:      "b" + strconv.Itoa(*f.seq),
		Type:    typ,
		Params:  resolved,
		seq:     *f.seq,
		prim:    prim,
		frag:    f,
		outputs: make(map[string]*Output, len(prim.Outputs)),
		fed:     make(map[string]bool, len(prim.Inputs)),
	}
	for _, spec := range prim.Outputs {
		b.outputs[spec.Name] = &Output{Block: b, Name: spec.Name, Type: spec.Type}
	}
	f.blocks = append(f.blocks, b)
	return b, nil
}

// Connect wires from into to. Tags must be equal; a mismatch is reported as
// *TagMismatchError and nothing is wired.
func (f *Fragment) Connect(from Port, to Input) error {
	if from.out == nil {
		return &WiringError{Block: to.Block.ID, Port: to.Name, Message: "source port is empty"}
	}
	if to.Block.frag != f {
		return &WiringError{Block: to.Block.ID, Port: to.Name, Message: fmt.Sprintf("block belongs to fragment %q, not %q", to.Block.frag.name, f.name)}
	}
	if from.out.Block.frag.root() != f.root() {
		return &WiringError{Block: to.Block.ID, Port: to.Name, Message: "source port belongs to an unrelated fragment"}
	}
	if to.Block.fed[to.Name] {
		return &WiringError{Block: to.Block.ID, Port: to.Name, Message: "input already connected"}
	}
	if from.tag != to.Tag {
		return &TagMismatchError{From: from.tag, To: to.Tag, Block: to.Block.ID, Input: to.Name}
	}
	to.Block.fed[to.Name] = true
	f.links = append(f.links, Link{From: from.out, To: to.Block, Input: to.Name, Tag: from.tag})
	return nil
}

// Expose publishes p as a named output of f, replacing any earlier port with
// the same name.
func (f *Fragment) Expose(name string, p Port) {
	for i := range f.outputs {
		if f.outputs[i].Name == name {
			f.outputs[i].Port = p
			return
		}
	}
	f.outputs = append(f.outputs, Exposed{Name: name, Port: p})
}

// Output returns the named exposed port.
func (f *Fragment) Output(name string) (Port, bool) {
	for _, e := range f.outputs {
		if e.Name == name {
			return e.Port, true
		}
	}
	return Port{}, false
}

// Outputs returns the exposed ports in exposure order.
func (f *Fragment) Outputs() []Exposed {
	return append([]Exposed(nil), f.outputs...)
}

// Remember memoizes the compiled port for an expression key.
func (f *Fragment) Remember(key string, p Port) {
	f.memo[key] = p
}

// Lookup finds a memoized port in f or any ancestor.
func (f *Fragment) Lookup(key string) (Port, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if p, ok := cur.memo[key]; ok {
			return p, true
		}
	}
	return Port{}, false
}

// Children returns the committed child fragments.
func (f *Fragment) Children() []*Fragment {
	return append([]*Fragment(nil), f.children...)
}

// OwnBlocks returns the blocks added directly to f.
func (f *Fragment) OwnBlocks() []*Block {
	return append([]*Block(nil), f.blocks...)
}

// Blocks returns every block in f and its committed children, depth first,
// children before the fragment's own blocks.
func (f *Fragment) Blocks() []*Block {
	var out []*Block
	f.walk(func(frag *Fragment) {
		out = append(out, frag.blocks...)
	})
	return out
}

// Links returns every link in f and its committed children.
func (f *Fragment) Links() []Link {
	var out []Link
	f.walk(func(frag *Fragment) {
		out = append(out, frag.links...)
	})
	return out
}

// Count returns the number of blocks of each primitive type.
func (f *Fragment) Count() map[string]int {
	counts := make(map[string]int)
	for _, b := range f.Blocks() {
		counts[b.Type]++
	}
	return counts
}

func (f *Fragment) walk(visit func(*Fragment)) {
	for _, c := range f.children {
		c.walk(visit)
	}
	visit(f)
}

func (f *Fragment) root() *Fragment {
	cur := f
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}
