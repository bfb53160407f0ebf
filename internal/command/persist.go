package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// Registry records bindings durably. store.Store and bolt.Store implement
// it.
type Registry interface {
	PutBinding(ctx context.Context, rec ir.BindingRecord) error
	ReleaseBinding(ctx context.Context, key string, seq int64) error
}

// KeyGenerator names persisted values.
type KeyGenerator interface {
	Generate() string
}

type uuidKeys struct{}

func (uuidKeys) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// seq is the logical clock stamping binding records.
var seq atomic.Int64

type options struct {
	registry Registry
	keys     KeyGenerator
	logger   *slog.Logger
}

// Option configures Persist.
type Option func(*options)

// WithRegistry records the binding in r. Default: no record is kept.
func WithRegistry(r Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithKeyGenerator sets the generator of value keys. Default: UUIDv7.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(o *options) {
		o.keys = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// PersistedBinding is a value kept alive by a keep-alive run. It is the
// resolver of the Persisted leaves returned by Resolve.
//
// Thread-safety: all methods are safe for concurrent use.
type PersistedBinding[T any] struct {
	key      string
	tag      dataflow.Tag
	env      mapping.Runner
	registry Registry
	logger   *slog.Logger

	mu       sync.Mutex
	handle   mapping.Handle
	released bool
}

// Persist compiles s together with a Net::Write block publishing its value,
// starts the result on runner and returns the binding. s must be unbound or
// bound to runner.
func Persist[T any](ctx context.Context, s sensor.Sensor[T], runner mapping.Runner, opts ...Option) (*PersistedBinding[T], error) {
	o := options{keys: uuidKeys{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	n := s.Node()
	if n == nil {
		return nil, &PersistError{Stage: StageCompile, Err: fmt.Errorf("expression is empty")}
	}
	if env := n.Environment(); env != nil && env.ID() != runner.ID() {
		return nil, &PersistError{Stage: StageEnvironment, Err: fmt.Errorf("%s is bound to environment %s, not %s", n, env.ID(), runner.ID())}
	}

	key := o.keys.Generate()
	frag, err := keepAlive(ctx, runner.Compiler(), n, key)
	if err != nil {
		return nil, &PersistError{Stage: StageCompile, Key: key, Err: err}
	}

	h, err := runner.CompileAndRun(ctx, frag)
	if err != nil {
		return nil, &PersistError{Stage: StageRun, Key: key, Err: err}
	}

	b := &PersistedBinding[T]{
		key:      key,
		tag:      n.Tag(),
		env:      runner,
		registry: o.registry,
		logger:   o.logger,
		handle:   h,
	}
	if o.registry != nil {
		rec := ir.BindingRecord{
			Key:         key,
			RemoteNet:   h.Name(),
			Environment: runner.ID(),
			ValueType:   string(n.Tag().Type),
			Context:     n.Tag().Context,
			ExprKey:     n.Key(),
			CreatedSeq:  seq.Add(1),
		}
		if err := o.registry.PutBinding(ctx, rec); err != nil {
			if stopErr := h.Stop(ctx); stopErr != nil {
				o.logger.Warn("keep-alive run not stopped", "key", key, "run", h.Name(), "error", stopErr)
			}
			return nil, &PersistError{Stage: StageRecord, Key: key, Err: err}
		}
	}

	o.logger.Info("value persisted", "key", key, "run", h.Name(), "tag", n.Tag().String())
	return b, nil
}

// keepAlive builds the fragment computing n and publishing it under key.
func keepAlive(ctx context.Context, c *mapping.Compiler, n *sensor.Node, key string) (*dataflow.Fragment, error) {
	frag, _, err := c.Compile(ctx, n)
	if err != nil {
		return nil, err
	}
	out, ok := frag.Output(mapping.RootOutput)
	if !ok {
		return nil, fmt.Errorf("fragment %s exposes no %q", frag.Name(), mapping.RootOutput)
	}
	w, err := frag.AddBlock(mapping.NetWritePrimitive(out.Tag().Type), map[string]string{"Key": key})
	if err != nil {
		return nil, err
	}
	in, err := w.In("inValue")
	if err != nil {
		return nil, err
	}
	if in, err = in.Expect(out.Tag()); err != nil {
		return nil, err
	}
	if err := frag.Connect(out, in); err != nil {
		return nil, err
	}
	if verrs := dataflow.Validate(frag); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return frag, nil
}

// Key returns the value key within the keep-alive run.
func (b *PersistedBinding[T]) Key() string {
	return b.key
}

// Tag returns the tag of the persisted value.
func (b *PersistedBinding[T]) Tag() dataflow.Tag {
	return b.tag
}

// RemoteNet names the keep-alive run. It reports false once released.
func (b *PersistedBinding[T]) RemoteNet() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released || b.handle == nil {
		return "", false
	}
	return b.handle.Name(), true
}

// Released reports whether Release was called.
func (b *PersistedBinding[T]) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Resolve returns an expression reading the persisted value. Expressions
// resolved from the same binding are structurally equal.
func (b *PersistedBinding[T]) Resolve() (sensor.Sensor[T], error) {
	if b.Released() {
		return sensor.Sensor[T]{}, fmt.Errorf("resolve %s: %w", b.key, ErrReleased)
	}
	return sensor.NewPersisted[T](b.env, b.tag, b)
}

// Release stops the keep-alive run and marks the record released. Calling
// it again is a no-op. Expressions resolved earlier no longer compile.
func (b *PersistedBinding[T]) Release(ctx context.Context) error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil
	}
	b.released = true
	h := b.handle
	b.mu.Unlock()

	if err := h.Stop(ctx); err != nil {
		return fmt.Errorf("release %s: %w", b.key, err)
	}
	if b.registry != nil {
		if err := b.registry.ReleaseBinding(ctx, b.key, seq.Add(1)); err != nil {
			return fmt.Errorf("release %s: %w", b.key, err)
		}
	}
	b.logger.Info("value released", "key", b.key, "run", h.Name())
	return nil
}
