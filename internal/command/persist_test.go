package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
	"github.com/roboticsapi/robotics-api-sub003/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEnv(t *testing.T, names ...string) *sim.Environment {
	t.Helper()
	opts := []sim.Option{sim.WithLogger(quiet)}
	if len(names) > 0 {
		opts = append(opts, sim.WithGenerator(sim.NewFixedGenerator(names...)))
	}
	env := sim.New(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.Close(ctx)
	})
	return env
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bindings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type keys []string

func (k *keys) Generate() string {
	next := (*k)[0]
	*k = (*k)[1:]
	return next
}

type failingRegistry struct{}

func (failingRegistry) PutBinding(context.Context, ir.BindingRecord) error {
	return errors.New("disk full")
}

func (failingRegistry) ReleaseBinding(context.Context, string, int64) error { return nil }

type recorder[T any] struct {
	mu  sync.Mutex
	got []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.got...)
}

func step(t *testing.T, env *sim.Environment) {
	t.Helper()
	require.NoError(t, env.Step(context.Background()))
	require.NoError(t, env.Sync(context.Background()))
}

func TestPersist_ResolveFeedsLaterExpressions(t *testing.T) {
	env := newEnv(t, "keep-1", "listen-1")
	st := newStore(t)
	ctx := context.Background()

	x, err := sim.NewSource[float64](env, "x", nil)
	require.NoError(t, err)
	x.Set(2)
	tripled, err := sensor.MultiplyDouble(x.Sensor, sensor.ConstDouble(3))
	require.NoError(t, err)

	k := keys{"value-1"}
	b, err := Persist(ctx, tripled, env, WithRegistry(st), WithKeyGenerator(&k), WithLogger(quiet))
	require.NoError(t, err)
	assert.Equal(t, "value-1", b.Key())

	remote, ok := b.RemoteNet()
	require.True(t, ok)
	assert.Equal(t, "keep-1", remote)

	resolved, err := b.Resolve()
	require.NoError(t, err)
	again, err := b.Resolve()
	require.NoError(t, err)
	assert.True(t, resolved.Equal(again))

	neg, err := sensor.NegateDouble(resolved)
	require.NoError(t, err)
	var rec recorder[float64]
	_, err = neg.Subscribe(ctx, rec.add)
	require.NoError(t, err)

	step(t, env)
	assert.Equal(t, []float64{-6}, rec.all())

	x.Set(1)
	step(t, env)
	assert.Equal(t, []float64{-6, -3}, rec.all())

	got, err := st.Binding(ctx, "value-1")
	require.NoError(t, err)
	assert.Equal(t, "keep-1", got.RemoteNet)
	assert.Equal(t, env.ID(), got.Environment)
	assert.Equal(t, "Double", got.ValueType)
	assert.Equal(t, tripled.Key(), got.ExprKey)
	assert.True(t, got.Active())
}

func TestPersist_KeepsFrameContext(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	base := geom.NewFrame("base")

	v, err := sim.NewSource[geom.Vector](env, "v", nil)
	require.NoError(t, err)
	v.Set(geom.V(1, 2, 3))
	p, err := sensor.AsPoint(v.Sensor, base)
	require.NoError(t, err)

	b, err := Persist(ctx, p, env, WithLogger(quiet))
	require.NoError(t, err)
	assert.Equal(t, p.Node().Tag(), b.Tag())

	step(t, env)

	resolved, err := b.Resolve()
	require.NoError(t, err)
	got, err := resolved.CurrentValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, geom.Point{Frame: base, Vector: geom.V(1, 2, 3)}, got)
}

func TestPersist_UnboundExpression(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	b, err := Persist(ctx, sensor.ConstDouble(4), env, WithLogger(quiet))
	require.NoError(t, err)
	step(t, env)

	remote, _ := b.RemoteNet()
	v, ok := env.Published(remote, b.Key())
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
}

func TestPersistedBinding_Release(t *testing.T) {
	env := newEnv(t)
	st := newStore(t)
	ctx := context.Background()

	b, err := Persist(ctx, sensor.ConstDouble(1), env, WithRegistry(st), WithLogger(quiet))
	require.NoError(t, err)
	step(t, env)
	resolved, err := b.Resolve()
	require.NoError(t, err)

	require.NoError(t, b.Release(ctx))
	require.NoError(t, b.Release(ctx), "second release is a no-op")

	assert.True(t, b.Released())
	_, ok := b.RemoteNet()
	assert.False(t, ok)
	assert.Empty(t, env.Runs(), "keep-alive run stopped")

	_, err = b.Resolve()
	assert.ErrorIs(t, err, ErrReleased)

	_, err = resolved.CurrentValue(ctx)
	require.Error(t, err)
	assert.True(t, sensor.IsEnvironmentFailure(err))
	assert.True(t, mapping.IsSourceNotFound(err))

	rec, err := st.Binding(ctx, b.Key())
	require.NoError(t, err)
	assert.False(t, rec.Active())
}

func TestPersist_ForeignEnvironment(t *testing.T) {
	env := newEnv(t)
	other := newEnv(t)
	x, err := sim.NewSource[float64](other, "x", nil)
	require.NoError(t, err)

	_, err = Persist(context.Background(), x.Sensor, env, WithLogger(quiet))
	require.Error(t, err)
	assert.True(t, IsPersistError(err, StageEnvironment))
	assert.Empty(t, env.Runs())
}

func TestPersist_RecordFailureStopsRun(t *testing.T) {
	env := newEnv(t)

	_, err := Persist(context.Background(), sensor.ConstDouble(1), env, WithRegistry(failingRegistry{}), WithLogger(quiet))
	require.Error(t, err)
	assert.True(t, IsPersistError(err, StageRecord))
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, env.Runs())
}

func TestPersist_CompileFailure(t *testing.T) {
	env := newEnv(t)
	released := &PersistedBinding[float64]{key: "gone", tag: dataflow.Plain(dataflow.TypeDouble), env: env, released: true}
	orphan, err := sensor.NewPersisted[float64](env, released.Tag(), released)
	require.NoError(t, err)

	_, err = Persist(context.Background(), orphan, env, WithLogger(quiet))
	require.Error(t, err)
	assert.True(t, IsPersistError(err, StageCompile))
	assert.True(t, mapping.IsSourceNotFound(err))
}

func TestIsPersistError(t *testing.T) {
	err := &PersistError{Stage: StageRun, Key: "k", Err: errors.New("boom")}

	assert.True(t, IsPersistError(err, ""))
	assert.True(t, IsPersistError(err, StageRun))
	assert.False(t, IsPersistError(err, StageCompile))
	assert.False(t, IsPersistError(errors.New("other"), ""))
	assert.Equal(t, "persist k: run: boom", err.Error())
}
