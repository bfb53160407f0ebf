package exprdoc

import (
	"context"

	"github.com/roboticsapi/robotics-api-sub003/internal/command"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

type binding interface {
	Key() string
	RemoteNet() (string, bool)
	Released() bool
	Release(ctx context.Context) error
}

// Persisted is a persisted document expression.
type Persisted struct {
	Type    ValueType
	binding binding
	resolve func() (*sensor.Node, error)
}

// Persist keeps e's value alive in runner. See command.Persist.
func (e Expr) Persist(ctx context.Context, runner mapping.Runner, opts ...command.Option) (*Persisted, error) {
	p, err := generics[e.Type].persist(ctx, e.Node, runner, opts...)
	if err != nil {
		return nil, err
	}
	p.Type = e.Type
	return p, nil
}

func (p *Persisted) Key() string                       { return p.binding.Key() }
func (p *Persisted) RemoteNet() (string, bool)         { return p.binding.RemoteNet() }
func (p *Persisted) Released() bool                    { return p.binding.Released() }
func (p *Persisted) Release(ctx context.Context) error { return p.binding.Release(ctx) }

// Resolve returns an expression reading the persisted value.
func (p *Persisted) Resolve() (Expr, error) {
	n, err := p.resolve()
	if err != nil {
		return Expr{}, err
	}
	return Expr{Type: p.Type, Node: n}, nil
}

func (ops[T]) persist(ctx context.Context, n *sensor.Node, runner mapping.Runner, opts ...command.Option) (*Persisted, error) {
	b, err := command.Persist(ctx, sensor.Wrap[T](n), runner, opts...)
	if err != nil {
		return nil, err
	}
	return &Persisted{
		binding: b,
		resolve: func() (*sensor.Node, error) { return nodeOf(b.Resolve()) },
	}, nil
}
