package dataflow

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed catalog.cue
var catalogSource []byte

// PortSpec is one typed input or output of a primitive.
type PortSpec struct {
	Name string
	Type Type
}

// ParamSpec is a named primitive parameter. Parameters without a default
// are required.
type ParamSpec struct {
	Name     string
	Default  string
	Required bool
}

// Primitive describes one entry of the fixed instruction set. The compiler
// only instantiates primitives, sets their parameters and wires their ports.
type Primitive struct {
	Name    string
	Inputs  []PortSpec
	Outputs []PortSpec
	Params  []ParamSpec
}

// Input returns the input port spec with the given name.
func (p *Primitive) Input(name string) (PortSpec, bool) {
	for _, in := range p.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return PortSpec{}, false
}

// Output returns the output port spec with the given name.
func (p *Primitive) Output(name string) (PortSpec, bool) {
	for _, out := range p.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return PortSpec{}, false
}

// Param returns the parameter spec with the given name.
func (p *Primitive) Param(name string) (ParamSpec, bool) {
	for _, ps := range p.Params {
		if ps.Name == name {
			return ps, true
		}
	}
	return ParamSpec{}, false
}

// Catalog is an immutable set of primitives keyed by type name.
type Catalog struct {
	prims map[string]*Primitive
}

// Lookup returns the primitive with the given type name.
func (c *Catalog) Lookup(name string) (*Primitive, bool) {
	p, ok := c.prims[name]
	return p, ok
}

// Names returns all primitive type names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.prims))
	for name := range c.prims {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of primitives.
func (c *Catalog) Len() int {
	return len(c.prims)
}

// Extend returns a new catalog holding c's primitives plus prims.
// Environments use it to add their own leaf primitives. A primitive with an
// existing name replaces the earlier one.
func (c *Catalog) Extend(prims ...Primitive) *Catalog {
	out := &Catalog{prims: make(map[string]*Primitive, len(c.prims)+len(prims))}
	for name, p := range c.prims {
		out.prims[name] = p
	}
	for i := range prims {
		p := prims[i]
		out.prims[p.Name] = &p
	}
	return out
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded primitive catalog. It panics if the
// embedded document is broken, which tests catch.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(catalogSource)
		if err != nil {
			panic(fmt.Sprintf("dataflow: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadCatalog compiles a CUE catalog document. The document must define a
// top-level "primitive" struct mapping type names to {in, out, param}.
func LoadCatalog(src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src, cue.Filename("catalog.cue"))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	primsVal := root.LookupPath(cue.ParsePath("primitive"))
	if !primsVal.Exists() {
		return nil, &CatalogError{Field: "primitive", Message: "catalog defines no primitives", Pos: root.Pos()}
	}

	iter, err := primsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{prims: make(map[string]*Primitive)}
	for iter.Next() {
		name := iter.Label()
		prim, err := parsePrimitive(name, iter.Value())
		if err != nil {
			return nil, err
		}
		c.prims[name] = prim
	}
	return c, nil
}

func parsePrimitive(name string, v cue.Value) (*Primitive, error) {
	prim := &Primitive{Name: name}

	var err error
	prim.Inputs, err = parsePorts(name+".in", v.LookupPath(cue.ParsePath("in")))
	if err != nil {
		return nil, err
	}
	prim.Outputs, err = parsePorts(name+".out", v.LookupPath(cue.ParsePath("out")))
	if err != nil {
		return nil, err
	}

	paramsVal := v.LookupPath(cue.ParsePath("param"))
	if paramsVal.Exists() {
		iter, err := paramsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			ps := ParamSpec{Name: iter.Label()}
			if iter.Value().IsConcrete() {
				def, err := iter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				ps.Default = def
			} else {
				ps.Required = true
			}
			prim.Params = append(prim.Params, ps)
		}
	}
	return prim, nil
}

func parsePorts(field string, v cue.Value) ([]PortSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ports []PortSpec
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t := Type(s)
		if !t.Valid() {
			return nil, &CatalogError{
				Field:   field + "." + iter.Label(),
				Message: fmt.Sprintf("unknown value type %q", s),
				Pos:     iter.Value().Pos(),
			}
		}
		ports = append(ports, PortSpec{Name: iter.Label(), Type: t})
	}
	return ports, nil
}

// CatalogError is a catalog decoding error with source position.
type CatalogError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CatalogError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CatalogError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return first
}
