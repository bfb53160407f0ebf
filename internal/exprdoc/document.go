package exprdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Document is a named expression.
type Document struct {
	Name string `yaml:"name" json:"name"`
	Expr *Node  `yaml:"expr" json:"expr"`
}

// Node is one operator application. Which fields apply depends on Op.
type Node struct {
	Op   string  `yaml:"op" json:"op"`
	Type string  `yaml:"type,omitempty" json:"type,omitempty"`
	Args []*Node `yaml:"args,omitempty" json:"args,omitempty"`

	// Value is a number, a bool, a list of numbers or a codec string
	// such as "1,0,0".
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Axis  string `yaml:"axis,omitempty" json:"axis,omitempty"`

	Frame       string `yaml:"frame,omitempty" json:"frame,omitempty"`
	Orientation string `yaml:"orientation,omitempty" json:"orientation,omitempty"`
	Moving      string `yaml:"moving,omitempty" json:"moving,omitempty"`
	Reference   string `yaml:"reference,omitempty" json:"reference,omitempty"`
	PivotFrame  string `yaml:"pivot_frame,omitempty" json:"pivot_frame,omitempty"`
	Pivot       any    `yaml:"pivot,omitempty" json:"pivot,omitempty"`

	Context  map[string]string `yaml:"context,omitempty" json:"context,omitempty"`
	MaxAge   float64           `yaml:"max_age,omitempty" json:"max_age,omitempty"`
	Duration float64           `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// LoadError is a document error with source position, when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadYAML parses a YAML (or JSON) document.
func LoadYAML(src []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, &LoadError{Field: "yaml", Message: err.Error()}
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadCUE evaluates a CUE document. filename is used in error positions.
func LoadCUE(filename string, src []byte) (*Document, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.LookupPath(cue.ParsePath("expr")).Exists() {
		return nil, &LoadError{Field: "expr", Message: "expr is required", Pos: v.Pos()}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	js, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var doc Document
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil, &LoadError{Field: "cue", Message: err.Error(), Pos: v.Pos()}
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile loads a document, choosing the format by extension.
func LoadFile(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc *Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		doc, err = LoadCUE(path, src)
	case ".yaml", ".yml", ".json":
		doc, err = LoadYAML(src)
	default:
		return nil, fmt.Errorf("%s: unsupported document format", path)
	}
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

func (d *Document) check() error {
	if d.Expr == nil {
		return &LoadError{Field: "expr", Message: "expr is required"}
	}
	return checkNode("expr", d.Expr)
}

func checkNode(path string, n *Node) error {
	if n == nil {
		return &LoadError{Field: path, Message: "node is empty"}
	}
	if n.Op == "" {
		return &LoadError{Field: path + ".op", Message: "op is required"}
	}
	for i, a := range n.Args {
		if err := checkNode(fmt.Sprintf("%s.args[%d]", path, i), a); err != nil {
			return err
		}
	}
	return nil
}

func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return first
}
