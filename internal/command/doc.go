// Package command keeps expression values alive beyond the command that
// defined them.
//
// Persist starts a keep-alive run that computes an expression and
// publishes it under a fresh key. The returned binding resolves to a leaf
// expression reading that published value, so later commands can build on
// it without recomputing it:
//
//	b, err := command.Persist(ctx, offset, env, command.WithRegistry(st))
//	...
//	p, _ := b.Resolve()
//	x, _ := sensor.Component(p, geom.AxisX)
//	...
//	b.Release(ctx)
package command
