package dataflow

import (
	"encoding/json"
	"fmt"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// Type is the primitive value type carried by a port.
type Type string

const (
	TypeDouble         Type = "Double"
	TypeBoolean        Type = "Boolean"
	TypeVector         Type = "Vector"
	TypeRotation       Type = "Rotation"
	TypeTransformation Type = "Transformation"
	TypeTwist          Type = "Twist"
)

// Types lists every value type in catalog order.
var Types = []Type{TypeDouble, TypeBoolean, TypeVector, TypeRotation, TypeTransformation, TypeTwist}

// Valid reports whether t is a known value type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Tag is the compile-time type of a port: a value type plus the geometric
// context the value is interpreted in. Context is the canonical JSON of a
// string map, or empty for plain values, so tags compare with ==.
type Tag struct {
	Type    Type
	Context string
}

// Plain returns a tag without context.
func Plain(t Type) Tag {
	return Tag{Type: t}
}

// NewTag builds a tag with the given context entries. An empty context
// yields a plain tag.
func NewTag(t Type, ctx map[string]string) Tag {
	if len(ctx) == 0 {
		return Plain(t)
	}
	b, err := ir.MarshalCanonical(ir.Strings(ctx))
	if err != nil {
		// string maps always marshal
		panic(fmt.Sprintf("dataflow: context not canonical: %v", err))
	}
	return Tag{Type: t, Context: string(b)}
}

// Plain drops the context.
func (t Tag) Plain() Tag {
	return Plain(t.Type)
}

// IsPlain reports whether t has no context.
func (t Tag) IsPlain() bool {
	return t.Context == ""
}

// WithContext returns t with its context replaced.
func (t Tag) WithContext(ctx map[string]string) Tag {
	return NewTag(t.Type, ctx)
}

// ContextMap decodes the context entries. Plain tags return an empty map.
func (t Tag) ContextMap() map[string]string {
	m := map[string]string{}
	if t.Context == "" {
		return m
	}
	if err := json.Unmarshal([]byte(t.Context), &m); err != nil {
		panic(fmt.Sprintf("dataflow: corrupt tag context %q: %v", t.Context, err))
	}
	return m
}

// Equal reports whether two tags may be connected: same type and same context.
func (t Tag) Equal(o Tag) bool {
	return t == o
}

func (t Tag) String() string {
	if t.Context == "" {
		return string(t.Type)
	}
	return string(t.Type) + t.Context
}

// TagMismatchError reports an attempt to wire ports with unequal tags.
type TagMismatchError struct {
	From  Tag
	To    Tag
	Block string
	Input string
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("tag mismatch wiring %s into %s.%s (expects %s)", e.From, e.Block, e.Input, e.To)
}
