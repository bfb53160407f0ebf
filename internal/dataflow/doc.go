// Package dataflow models compiled dataflow fragments: typed primitive
// blocks drawn from a fixed catalog, tagged ports and the links between them.
//
// Tags pair a value type with a geometric context. Two ports may be linked
// only when their tags are equal, and retagging a port is free: it yields a
// new Port over the same block output.
package dataflow
