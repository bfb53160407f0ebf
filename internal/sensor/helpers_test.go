package sensor

import (
	"context"
	"sync"
	"testing"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// fakeEnv records listener batches and answers Evaluate with a fixed result.
type fakeEnv struct {
	id    string
	value any
	err   error

	mu           sync.Mutex
	registered   [][]Registration
	unregistered [][]Registration
	evaluated    int
}

func newFakeEnv(id string) *fakeEnv {
	return &fakeEnv{id: id}
}

func (e *fakeEnv) ID() string   { return e.id }
func (e *fakeEnv) Kind() string { return "fake" }

func (e *fakeEnv) Evaluate(_ context.Context, _ *Node) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluated++
	return e.value, e.err
}

func (e *fakeEnv) RegisterListeners(_ context.Context, batch []Registration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, batch)
	return e.err
}

func (e *fakeEnv) UnregisterListeners(_ context.Context, batch []Registration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unregistered = append(e.unregistered, batch)
	return e.err
}

func source[T any](t *testing.T, env Environment, name string) Sensor[T] {
	t.Helper()
	s, err := NewLeaf[T](env, "fake.source", nil, ir.IRObject{"name": ir.IRString(name)}, nil)
	if err != nil {
		t.Fatalf("NewLeaf: %v", err)
	}
	return s
}

// recorder collects delivered values.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

type staticResolver struct {
	key       string
	remoteNet string
}

func (r staticResolver) Key() string { return r.key }

func (r staticResolver) RemoteNet() (string, bool) {
	return r.remoteNet, r.remoteNet != ""
}
