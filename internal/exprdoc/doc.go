// Package exprdoc loads declarative expression documents and builds them
// into sensor expressions.
//
// A document holds one expression tree:
//
//	name: tool-offset
//	expr:
//	  op: add
//	  args:
//	    - {op: writable, name: joint, type: vector, value: [1, 0, 0]}
//	    - {op: const, type: vector, value: [0, 0, 0.5]}
//
// Documents are YAML, JSON or CUE. In CUE the same structure is written as
// fields of the file's top-level value; constraints and references are
// resolved before the expression is read.
package exprdoc
