package dataflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// Canonical renders f as an IR document suitable for MarshalCanonical.
// Parameters are included so that the document fully describes the network.
func (f *Fragment) Canonical() ir.IRObject {
	blocks := make(ir.IRArray, 0, len(f.blocks))
	for _, b := range f.blocks {
		blocks = append(blocks, ir.IRObject{
			"id":     ir.IRString(b.ID),
			"type":   ir.IRString(b.Type),
			"params": ir.Strings(b.Params),
		})
	}

	links := make(ir.IRArray, 0, len(f.links))
	for _, l := range f.links {
		links = append(links, ir.IRObject{
			"from": ir.IRString(l.From.String()),
			"to":   ir.IRString(l.To.ID + "." + l.Input),
			"tag":  ir.IRString(l.Tag.String()),
		})
	}

	outputs := make(ir.IRArray, 0, len(f.outputs))
	for _, e := range f.outputs {
		outputs = append(outputs, ir.IRObject{
			"name": ir.IRString(e.Name),
			"port": ir.IRString(e.Port.Output().String()),
			"tag":  ir.IRString(e.Port.Tag().String()),
		})
	}

	children := make(ir.IRArray, 0, len(f.children))
	for _, c := range f.children {
		children = append(children, c.Canonical())
	}

	return ir.IRObject{
		"name":     ir.IRString(f.name),
		"blocks":   blocks,
		"links":    links,
		"outputs":  outputs,
		"children": children,
	}
}

// Hash returns the content hash of the canonical document.
func (f *Fragment) Hash() (string, error) {
	return ir.FragmentHash(f.Canonical())
}

// Describe renders f as indented text, one line per block, link and output.
func (f *Fragment) Describe() string {
	var sb strings.Builder
	f.describe(&sb, 0)
	return sb.String()
}

func (f *Fragment) describe(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%sfragment %s\n", indent, f.name)
	for _, c := range f.children {
		c.describe(sb, depth+1)
	}
	for _, b := range f.blocks {
		fmt.Fprintf(sb, "%s  block %s %s%s\n", indent, b.ID, b.Type, formatParams(b.Params))
	}
	for _, l := range f.links {
		fmt.Fprintf(sb, "%s  link %s -> %s.%s [%s]\n", indent, l.From, l.To.ID, l.Input, l.Tag)
	}
	for _, e := range f.outputs {
		fmt.Fprintf(sb, "%s  output %s = %s\n", indent, e.Name, e.Port)
	}
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return " {" + strings.Join(parts, ", ") + "}"
}
