// Package sensor implements the value-expression algebra: immutable typed
// expression nodes ("sensors") over scalars, booleans, vectors, rotations,
// transformations, twists and their frame-carrying variants.
//
// Expressions can be read in two ways. CheapValue evaluates locally and
// works whenever every leaf is a constant or a Writable. CurrentValue falls
// back to the execution environment the expression is bound to.
//
// Listeners on environment-free expressions are driven by Writable.Set:
// each Set notifies every affected listener once, in operand-before-
// dependent order. Listeners on bound expressions are registered with the
// environment in batches, one call per environment.
package sensor
