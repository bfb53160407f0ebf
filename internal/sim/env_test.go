package sim

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

func newTestEnv(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	env := New(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.Close(ctx)
	})
	return env
}

func mustSource[T any](t *testing.T, env *Environment, name string, ctx map[string]string) *Source[T] {
	t.Helper()
	s, err := NewSource[T](env, name, ctx)
	require.NoError(t, err)
	return s
}

// step advances one cycle and waits for its deliveries.
func step(t *testing.T, env *Environment) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.Step(ctx))
	require.NoError(t, env.Sync(ctx))
}

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

type fixedResolver struct {
	key    string
	remote string
}

func (r fixedResolver) Key() string { return r.key }

func (r fixedResolver) RemoteNet() (string, bool) { return r.remote, r.remote != "" }

func TestEnvironment_New(t *testing.T) {
	env := newTestEnv(t, WithID("robot-1"), WithPeriod(5*time.Millisecond))

	assert.Equal(t, "robot-1", env.ID())
	assert.Equal(t, Kind, env.Kind())
	assert.Equal(t, 5*time.Millisecond, env.Clock().Period())
	assert.Equal(t, int64(0), env.Clock().Current())
	assert.NotNil(t, env.Compiler())
	assert.Empty(t, env.Runs())
}

func TestEnvironment_New_DefaultID(t *testing.T) {
	a := newTestEnv(t)
	b := newTestEnv(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestEnvironment_Evaluate(t *testing.T) {
	env := newTestEnv(t)
	a := mustSource[geom.Vector](t, env, "a", nil)
	b := mustSource[geom.Vector](t, env, "b", nil)
	a.Set(geom.V(1, 2, 3))
	b.Set(geom.V(4, 5, 6))

	sum, err := sensor.AddVector(a.Sensor, b.Sensor)
	require.NoError(t, err)

	_, cheap := sum.CheapValue()
	assert.False(t, cheap, "a source has no cheap value")

	got, err := sum.CurrentValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, geom.V(5, 7, 9), got)
	assert.Empty(t, env.Runs(), "one-shot reads leave no run behind")
}

func TestEnvironment_Evaluate_FramedValue(t *testing.T) {
	env := newTestEnv(t)
	base := geom.NewFrame("base")
	v := mustSource[geom.Vector](t, env, "v", nil)
	v.Set(geom.V(1, 0, 0))

	p, err := sensor.AsPoint(v.Sensor, base)
	require.NoError(t, err)

	got, err := p.CurrentValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base, got.Frame)
	assert.Equal(t, geom.V(1, 0, 0), got.Vector)
}

func TestEnvironment_Evaluate_NoValue(t *testing.T) {
	env := newTestEnv(t)
	s := mustSource[float64](t, env, "unset", nil)

	_, err := s.CurrentValue(context.Background())
	require.Error(t, err)
	assert.True(t, sensor.IsEnvironmentFailure(err))
}

func TestEnvironment_Subscribe_DeliversChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := mustSource[float64](t, env, "x", nil)
	s.Set(1)

	doubled, err := sensor.MultiplyDouble(s.Sensor, sensor.ConstDouble(2))
	require.NoError(t, err)

	var rec recorder[float64]
	sub, err := doubled.Subscribe(ctx, rec.add)
	require.NoError(t, err)
	require.Len(t, env.Runs(), 1)

	step(t, env)
	assert.Equal(t, []float64{2}, rec.all())

	// unchanged value is not delivered again
	step(t, env)
	assert.Equal(t, []float64{2}, rec.all())

	s.Set(3)
	step(t, env)
	assert.Equal(t, []float64{2, 6}, rec.all())

	require.NoError(t, sub.Unsubscribe(ctx))
	assert.Empty(t, env.Runs(), "run without listeners is stopped")

	s.Set(4)
	step(t, env)
	assert.Equal(t, []float64{2, 6}, rec.all())
}

func TestEnvironment_SubscribeAll_SharesOneRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := mustSource[float64](t, env, "x", nil)
	x.Set(2)

	neg, err := sensor.NegateDouble(x.Sensor)
	require.NoError(t, err)
	sq, err := sensor.MultiplyDouble(x.Sensor, x.Sensor)
	require.NoError(t, err)

	var negs, squares recorder[float64]
	regNeg := sensor.Listen(neg, negs.add)
	regSq := sensor.Listen(sq, squares.add)
	require.NoError(t, sensor.SubscribeAll(ctx, regNeg, regSq))

	runs := env.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Fragment().Count()[SourcePrimitive(dataflow.TypeDouble)])

	step(t, env)
	assert.Equal(t, []float64{-2}, negs.all())
	assert.Equal(t, []float64{4}, squares.all())

	// one listener left keeps the run alive
	require.NoError(t, sensor.UnsubscribeAll(ctx, regNeg))
	assert.Len(t, env.Runs(), 1)

	x.Set(3)
	step(t, env)
	assert.Equal(t, []float64{-2}, negs.all())
	assert.Equal(t, []float64{4, 9}, squares.all())

	require.NoError(t, sensor.UnsubscribeAll(ctx, regSq))
	assert.Empty(t, env.Runs())
}

func TestEnvironment_Subscribe_SeesWritableChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := mustSource[float64](t, env, "x", nil)
	s.Set(10)
	w, err := sensor.NewWritable(1.0)
	require.NoError(t, err)

	sum, err := sensor.AddDouble(s.Sensor, w.Sensor)
	require.NoError(t, err)

	var rec recorder[float64]
	_, err = sum.Subscribe(ctx, rec.add)
	require.NoError(t, err)
	require.Len(t, env.Runs(), 1)
	assert.Equal(t, 1, env.Runs()[0].Fragment().Count()[WritablePrimitive(dataflow.TypeDouble)])

	step(t, env)
	assert.Equal(t, []float64{11}, rec.all())

	require.NoError(t, w.Set(5))
	step(t, env)
	step(t, env)
	assert.Equal(t, []float64{11, 15}, rec.all())

	got, err := sum.CurrentValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)
}

func TestEnvironment_Evaluate_WritableSnapshot(t *testing.T) {
	env := newTestEnv(t)
	s := mustSource[float64](t, env, "x", nil)
	s.Set(10)
	w, err := sensor.NewWritable(1.0)
	require.NoError(t, err)
	sum, err := sensor.AddDouble(s.Sensor, w.Sensor)
	require.NoError(t, err)

	frag, _, err := env.Compiler().Compile(context.Background(), sum.Node())
	require.NoError(t, err)
	assert.Equal(t, 1, frag.Count()[mapping.ValuePrimitive(dataflow.TypeDouble)])
	assert.Zero(t, frag.Count()[WritablePrimitive(dataflow.TypeDouble)])
}

func TestRun_StoppedRunSkipsCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := mustSource[float64](t, env, "x", nil)
	s.Set(1)

	sub, err := s.Subscribe(ctx, func(float64) {})
	require.NoError(t, err)
	runs := env.Runs()
	require.Len(t, runs, 1)
	require.NoError(t, sub.Unsubscribe(ctx))

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, runs[0].runCycle(cctx, cycle{n: 1}), errStopped)
	require.NoError(t, env.Step(cctx))
}

func TestEnvironment_StepRacesUnsubscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s := mustSource[float64](t, env, "x", nil)
	s.Set(1)
	doubled, err := sensor.MultiplyDouble(s.Sensor, sensor.ConstDouble(2))
	require.NoError(t, err)

	done := make(chan struct{})
	stepErr := make(chan error, 1)
	go func() {
		defer close(stepErr)
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := env.Step(ctx); err != nil {
				stepErr <- err
				return
			}
		}
	}()

	for i := 0; i < 500; i++ {
		sub, err := doubled.Subscribe(ctx, func(float64) {})
		require.NoError(t, err)
		require.NoError(t, sub.Unsubscribe(ctx))
	}
	close(done)
	assert.NoError(t, <-stepErr)
	require.NoError(t, env.Sync(ctx))
	assert.Empty(t, env.Runs())
}

func TestEnvironment_UnregisterListeners_Unknown(t *testing.T) {
	env := newTestEnv(t)
	s := mustSource[float64](t, env, "x", nil)

	reg := sensor.Listen(s.Sensor, func(float64) {})
	assert.NoError(t, env.UnregisterListeners(context.Background(), []sensor.Registration{reg}))
}

func TestEnvironment_RegisterListeners_ForeignNode(t *testing.T) {
	env := newTestEnv(t)
	other := newTestEnv(t)
	s := mustSource[float64](t, other, "x", nil)

	reg := sensor.Listen(s.Sensor, func(float64) {})
	err := env.RegisterListeners(context.Background(), []sensor.Registration{reg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), other.ID())
	assert.Empty(t, env.Runs())
}

func TestEnvironment_ListenerPanicDoesNotStopDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := mustSource[float64](t, env, "x", nil)
	s.Set(1)

	var rec recorder[float64]
	bad := sensor.Listen(s.Sensor, func(float64) { panic("boom") })
	good := sensor.Listen(s.Sensor, rec.add)
	require.NoError(t, sensor.SubscribeAll(ctx, bad, good))

	step(t, env)
	assert.Equal(t, []float64{1}, rec.all())
}

func TestEnvironment_NetValuesAcrossRuns(t *testing.T) {
	env := newTestEnv(t, WithGenerator(NewFixedGenerator("net-1", "net-2")))
	ctx := context.Background()
	x := mustSource[float64](t, env, "x", nil)
	x.Set(1.5)

	// publish x+x under key "sum"
	sum, err := sensor.AddDouble(x.Sensor, x.Sensor)
	require.NoError(t, err)
	frag, _, err := env.Compiler().Compile(ctx, sum.Node())
	require.NoError(t, err)
	out, ok := frag.Output(mapping.RootOutput)
	require.True(t, ok)
	w, err := frag.AddBlock(mapping.NetWritePrimitive(dataflow.TypeDouble), map[string]string{"Key": "sum"})
	require.NoError(t, err)
	in, err := w.In("inValue")
	require.NoError(t, err)
	require.NoError(t, frag.Connect(out, in))

	h, err := env.CompileAndRun(ctx, frag)
	require.NoError(t, err)
	assert.Equal(t, "net-1", h.Name())

	// read it back from a second run
	persisted, err := sensor.NewPersisted[float64](env, dataflow.Plain(dataflow.TypeDouble), fixedResolver{key: "sum", remote: "net-1"})
	require.NoError(t, err)
	var rec recorder[float64]
	_, err = persisted.Subscribe(ctx, rec.add)
	require.NoError(t, err)

	step(t, env)
	v, ok := env.Published("net-1", "sum")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, []float64{3}, rec.all(), "writer runs before reader in the same cycle")

	require.NoError(t, h.Stop(ctx))
	require.NoError(t, h.Stop(ctx), "second stop is a no-op")
	_, ok = env.Published("net-1", "sum")
	assert.False(t, ok, "stopping a run withdraws its values")

	step(t, env)
	assert.Equal(t, []float64{3}, rec.all())
}

func TestEnvironment_HistoryAtAge(t *testing.T) {
	env := newTestEnv(t, WithPeriod(10*time.Millisecond))
	ctx := context.Background()
	x := mustSource[float64](t, env, "x", nil)

	h, err := sensor.NewHistory(x.Sensor, 0.05)
	require.NoError(t, err)
	past, err := h.AtAge(sensor.ConstDouble(0.02))
	require.NoError(t, err)

	var rec recorder[float64]
	_, err = past.Subscribe(ctx, rec.add)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		x.Set(float64(i))
		step(t, env)
	}
	// two cycles of delay
	assert.Equal(t, []float64{1, 2}, rec.all())
}

func TestEnvironment_SlidingAverage(t *testing.T) {
	env := newTestEnv(t, WithPeriod(10*time.Millisecond))
	ctx := context.Background()
	x := mustSource[float64](t, env, "x", nil)

	avg, err := sensor.SlidingAverage(x.Sensor, 0.02)
	require.NoError(t, err)

	var rec recorder[float64]
	_, err = avg.Subscribe(ctx, rec.add)
	require.NoError(t, err)

	for _, v := range []float64{1, 3, 5} {
		x.Set(v)
		step(t, env)
	}
	assert.Equal(t, []float64{1, 2, 4}, rec.all())
}

func TestEnvironment_Conditional(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := mustSource[float64](t, env, "x", nil)

	positive, err := sensor.Greater(x.Sensor, sensor.ConstDouble(0))
	require.NoError(t, err)
	sign, err := sensor.Conditional(positive, sensor.ConstDouble(1), sensor.ConstDouble(-1))
	require.NoError(t, err)

	var rec recorder[float64]
	_, err = sign.Subscribe(ctx, rec.add)
	require.NoError(t, err)

	for _, v := range []float64{2, 5, -3} {
		x.Set(v)
		step(t, env)
	}
	assert.Equal(t, []float64{1, -1}, rec.all())
}

func TestEnvironment_Close(t *testing.T) {
	env := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := context.Background()
	s := mustSource[float64](t, env, "x", nil)
	s.Set(1)

	var rec recorder[float64]
	_, err := s.Subscribe(ctx, rec.add)
	require.NoError(t, err)
	require.NoError(t, env.Step(ctx))

	require.NoError(t, env.Close(ctx))
	assert.Equal(t, []float64{1}, rec.all(), "pending deliveries are made before Close returns")
	assert.Empty(t, env.Runs())
	assert.Error(t, env.Sync(ctx))
}

func TestEnvironment_Start_StopsOnContext(t *testing.T) {
	env := newTestEnv(t, WithPeriod(time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := env.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, env.Clock().Current())
}
