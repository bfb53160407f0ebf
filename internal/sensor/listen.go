package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// observerRegistry links environment-free nodes to the environment-free
// nodes computed from them, keyed by node ID. Only nodes with at least one
// listener, directly or through a dependent, are registered. Operand nodes
// hold no pointers back to their dependents.
type observerRegistry struct {
	mu         sync.Mutex
	refs       map[uint64]int
	dependents map[uint64]map[uint64]*Node
}

var observers = &observerRegistry{
	refs:       make(map[uint64]int),
	dependents: make(map[uint64]map[uint64]*Node),
}

func (r *observerRegistry) retain(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retainLocked(n)
}

func (r *observerRegistry) retainLocked(n *Node) {
	r.refs[n.id]++
	if r.refs[n.id] > 1 {
		return
	}
	for _, op := range n.operands {
		if op.env != nil {
			continue
		}
		deps := r.dependents[op.id]
		if deps == nil {
			deps = make(map[uint64]*Node)
			r.dependents[op.id] = deps
		}
		deps[n.id] = n
		r.retainLocked(op)
	}
}

func (r *observerRegistry) release(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(n)
}

func (r *observerRegistry) releaseLocked(n *Node) {
	if r.refs[n.id] == 0 {
		return
	}
	r.refs[n.id]--
	if r.refs[n.id] > 0 {
		return
	}
	delete(r.refs, n.id)
	for _, op := range n.operands {
		if op.env != nil {
			continue
		}
		if deps := r.dependents[op.id]; deps != nil {
			delete(deps, n.id)
			if len(deps) == 0 {
				delete(r.dependents, op.id)
			}
		}
		r.releaseLocked(op)
	}
}

// active reports whether n is hooked into the registry.
func (r *observerRegistry) active(n *Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[n.id] > 0
}

// affected returns leaf and every registered node computed from it, ordered
// by height so each node sees operands that already reflect the change.
func (r *observerRegistry) affected(leaf *Node) []*Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs[leaf.id] == 0 {
		return nil
	}
	seen := map[uint64]bool{leaf.id: true}
	out := []*Node{leaf}
	for i := 0; i < len(out); i++ {
		for id, dep := range r.dependents[out[i].id] {
			if !seen[id] {
				seen[id] = true
				out = append(out, dep)
			}
		}
	}
	slices.SortFunc(out, func(a, b *Node) int {
		if a.height != b.height {
			return a.height - b.height
		}
		return int(a.id) - int(b.id)
	})
	return out
}

// cascade notifies every listener affected by a change of leaf exactly once.
func (r *observerRegistry) cascade(leaf *Node) {
	for _, n := range r.affected(leaf) {
		v, ok := n.Cheap()
		if !ok {
			slog.Warn("cascade skipped node without cheap value", "kind", n.kind, "node", n.id)
			continue
		}
		n.notify(v)
	}
}

// SubscribeAll registers a batch of listeners. Environment-free
// registrations are attached locally; the rest are grouped by environment
// and submitted with one RegisterListeners call per environment. Failures
// are reported per environment in a *ListenerError and do not roll back
// other environments.
func SubscribeAll(ctx context.Context, regs ...Registration) error {
	local, groups, order, err := partition(regs)
	if err != nil {
		return err
	}

	failures := make(map[string]error)
	var localErrs []error
	for _, reg := range local {
		if err := attachLocal(reg); err != nil {
			localErrs = append(localErrs, err)
		}
	}
	if err := errors.Join(localErrs...); err != nil {
		failures[LocalEnvironment] = err
	}
	for _, id := range order {
		g := groups[id]
		if err := g.env.RegisterListeners(ctx, g.regs); err != nil {
			slog.Warn("listener registration failed", "env", id, "count", len(g.regs), "error", err)
			failures[id] = err
		}
	}
	if len(failures) > 0 {
		return &ListenerError{Failures: failures}
	}
	return nil
}

// UnsubscribeAll is the symmetric counterpart of SubscribeAll.
func UnsubscribeAll(ctx context.Context, regs ...Registration) error {
	local, groups, order, err := partition(regs)
	if err != nil {
		return err
	}

	failures := make(map[string]error)
	for _, reg := range local {
		if reg.Node.removeListener(reg.Listener) {
			observers.release(reg.Node)
		}
	}
	for _, id := range order {
		g := groups[id]
		if err := g.env.UnregisterListeners(ctx, g.regs); err != nil {
			slog.Warn("listener unregistration failed", "env", id, "count", len(g.regs), "error", err)
			failures[id] = err
		}
	}
	if len(failures) > 0 {
		return &ListenerError{Failures: failures}
	}
	return nil
}

type envGroup struct {
	env  Environment
	regs []Registration
}

func partition(regs []Registration) (local []Registration, groups map[string]*envGroup, order []string, err error) {
	groups = make(map[string]*envGroup)
	for i, reg := range regs {
		if reg.Node == nil || reg.Listener == nil {
			return nil, nil, nil, fmt.Errorf("registration %d: node and listener are required", i)
		}
		env := reg.Node.env
		if env == nil {
			local = append(local, reg)
			continue
		}
		g, ok := groups[env.ID()]
		if !ok {
			g = &envGroup{env: env}
			groups[env.ID()] = g
			order = append(order, env.ID())
		}
		g.regs = append(g.regs, reg)
	}
	return local, groups, order, nil
}

// attachLocal delivers the current value once, then stores the listener and
// hooks the node into the cascade.
func attachLocal(reg Registration) error {
	n := reg.Node
	v, ok := n.Cheap()
	if !ok {
		return &ReadError{Code: ErrCodeNoEnvironment, Kind: n.kind}
	}
	reg.Listener.Deliver(v)
	n.addListener(reg.Listener)
	observers.retain(n)
	return nil
}
