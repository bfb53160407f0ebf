// Package mapping compiles sensor expressions into dataflow fragments.
//
// Translators are looked up per node in a Registry keyed by environment
// kind and operator kind, so environments can add operators of their own
// without touching the algebra. Each node compiles into a child fragment
// that is committed to its parent only when the whole sub-expression
// succeeded.
//
// Every compiled result comes with a Bridge that turns raw values on the
// output into the expression's own value type.
package mapping
