// Package ir provides the canonical representation shared by the compiler,
// the execution environments and the binding store.
//
// All other internal packages may import ir; ir imports nothing internal.
//
// Key constraints:
//   - no float values: geometric constants travel as geom.Format strings
//   - structural identity of expressions and fragments is a domain-separated
//     SHA-256 over canonical JSON
//   - all JSON tags use snake_case
package ir
