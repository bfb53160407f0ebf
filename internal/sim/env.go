package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// Kind is the environment kind of simulated environments.
const Kind = "sim"

// DefaultPeriod is the simulated duration of one cycle.
const DefaultPeriod = 10 * time.Millisecond

type netKey struct {
	remote string
	key    string
}

// Environment executes compiled fragments in process.
//
// Each run is a network of goroutines, one per block, connected by
// channels. Cycles advance only through Step (or Start), so tests control
// time exactly. Listener callbacks are invoked in FIFO order by a single
// dispatcher goroutine; Sync waits until every delivery queued so far has
// been made.
//
// Thread-safety: all methods are safe for concurrent use.
type Environment struct {
	id       string
	names    NameGenerator
	logger   *slog.Logger
	clock    *Clock
	catalog  *dataflow.Catalog
	compiler *mapping.Compiler
	// live compiles listener batches; writables are read every cycle.
	live *mapping.Compiler

	// step serializes cycles across runs.
	step sync.Mutex

	mu        sync.Mutex
	sources   map[string]any
	writables map[string]*sensor.Node
	net       map[netKey]any
	runs      []*Run
	listeners map[*sensor.Listener]*Run

	queue      *deliveryQueue
	dispatched chan struct{}
}

type config struct {
	id       string
	period   time.Duration
	names    NameGenerator
	logger   *slog.Logger
	registry *mapping.Registry
}

// Option configures an Environment.
type Option func(*config)

// WithID sets the environment ID. Default: a random UUID.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithPeriod sets the simulated cycle period. Default: DefaultPeriod.
func WithPeriod(d time.Duration) Option {
	return func(c *config) {
		c.period = d
	}
}

// WithGenerator sets the run name generator. Default: UUIDv7Generator.
func WithGenerator(g NameGenerator) Option {
	return func(c *config) {
		c.names = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithRegistry sets the translator registry the environment extends with
// its own translators. The registry is cloned. Default:
// mapping.DefaultRegistry().
func WithRegistry(r *mapping.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// New creates an environment and starts its dispatcher. Call Close to
// release it.
func New(opts ...Option) *Environment {
	cfg := config{
		period: DefaultPeriod,
		names:  UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	reg := mapping.DefaultRegistry()
	if cfg.registry != nil {
		reg = cfg.registry.Clone()
	}
	reg.RegisterFunc(Kind, KindSource, translateSource)

	cat := Catalog()
	e := &Environment{
		id:         cfg.id,
		names:      cfg.names,
		logger:     cfg.logger.With("env", cfg.id),
		clock:      NewClock(cfg.period),
		catalog:    cat,
		compiler:   mapping.New(mapping.WithRegistry(reg), mapping.WithCatalog(cat), mapping.WithLogger(cfg.logger)),
		sources:    make(map[string]any),
		writables:  make(map[string]*sensor.Node),
		net:        make(map[netKey]any),
		listeners:  make(map[*sensor.Listener]*Run),
		queue:      newDeliveryQueue(),
		dispatched: make(chan struct{}),
	}
	e.live = mapping.New(mapping.WithRegistry(e.liveRegistry(reg)), mapping.WithCatalog(cat), mapping.WithLogger(cfg.logger))
	go e.dispatch()
	return e
}

// ID implements sensor.Environment.
func (e *Environment) ID() string { return e.id }

// Kind implements sensor.Environment.
func (e *Environment) Kind() string { return Kind }

// Compiler implements mapping.Runner.
func (e *Environment) Compiler() *mapping.Compiler { return e.compiler }

// Clock returns the cycle clock.
func (e *Environment) Clock() *Clock { return e.clock }

// CompileAndRun implements mapping.Runner. The run takes part in every
// following cycle until stopped.
func (e *Environment) CompileAndRun(ctx context.Context, frag *dataflow.Fragment) (mapping.Handle, error) {
	return e.start(ctx, frag)
}

func (e *Environment) start(ctx context.Context, frag *dataflow.Fragment) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := newRun(e, e.names.Generate(), frag)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.runs = append(e.runs, r)
	e.mu.Unlock()
	e.logger.Info("run started", "run", r.name, "blocks", len(r.runners))
	return r, nil
}

// Runs returns the live runs in start order.
func (e *Environment) Runs() []*Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Run(nil), e.runs...)
}

// forget removes a stopped run and the values it published.
func (e *Environment) forget(r *Run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.runs {
		if cur == r {
			e.runs = append(e.runs[:i], e.runs[i+1:]...)
			break
		}
	}
	for k := range e.net {
		if k.remote == r.name {
			delete(e.net, k)
		}
	}
	for l, owner := range e.listeners {
		if owner == r {
			delete(e.listeners, l)
		}
	}
}

// Step advances the clock by one cycle and evaluates every live run in
// start order, so values published by earlier runs are visible to later
// ones in the same cycle. Changed listener values are queued for delivery.
func (e *Environment) Step(ctx context.Context) error {
	e.step.Lock()
	defer e.step.Unlock()

	n := e.clock.Next()
	c := cycle{n: n, time: e.clock.Seconds(n)}
	for _, r := range e.Runs() {
		err := r.runCycle(ctx, c)
		if errors.Is(err, errStopped) {
			// stopped since the snapshot
			continue
		}
		if err != nil {
			return fmt.Errorf("run %s: %w", r.name, err)
		}
		for _, d := range r.changed() {
			e.queue.Enqueue(d)
		}
	}
	return nil
}

// Sync waits until every delivery queued before the call has been made.
func (e *Environment) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !e.queue.Enqueue(delivery{done: done}) {
		return fmt.Errorf("environment %s is closed", e.id)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Start steps the environment once per period until ctx is done.
func (e *Environment) Start(ctx context.Context) error {
	ticker := time.NewTicker(e.clock.Period())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Step(ctx); err != nil {
				return err
			}
		}
	}
}

// Close stops every run and the dispatcher. Pending deliveries are made
// before Close returns.
func (e *Environment) Close(ctx context.Context) error {
	for _, r := range e.Runs() {
		if err := r.Stop(ctx); err != nil {
			return err
		}
	}
	e.queue.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.dispatched:
		return nil
	}
}

func (e *Environment) dispatch() {
	defer close(e.dispatched)
	for {
		if d, ok := e.queue.TryDequeue(); ok {
			e.deliver(d)
			continue
		}
		if _, open := <-e.queue.Wait(); !open {
			// drain what was queued before Close
			for {
				d, ok := e.queue.TryDequeue()
				if !ok {
					return
				}
				e.deliver(d)
			}
		}
	}
}

// deliver invokes one callback. A panicking listener is logged and does
// not stop delivery to others.
func (e *Environment) deliver(d delivery) {
	if d.done != nil {
		close(d.done)
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Warn("listener panicked", "listener", d.listener.ID(), "panic", p)
		}
	}()
	d.listener.Deliver(d.value)
}

// Evaluate implements sensor.Environment: it compiles n, runs one cycle of
// the result on its own and returns the value.
func (e *Environment) Evaluate(ctx context.Context, n *sensor.Node) (any, error) {
	frag, bridge, err := e.compiler.Compile(ctx, n)
	if err != nil {
		return nil, err
	}
	r, err := newRun(e, "eval-"+uuid.NewString(), frag)
	if err != nil {
		return nil, err
	}
	defer r.Stop(context.Background())

	cur := e.clock.Current()
	if err := r.runCycle(ctx, cycle{n: cur, time: e.clock.Seconds(cur)}); err != nil {
		return nil, err
	}
	raw, ok := r.Value(bridge.Output())
	if !ok {
		return nil, fmt.Errorf("%s has no value in cycle %d", n, cur)
	}
	return bridge.Map(raw), nil
}

// RegisterListeners implements sensor.Environment. The whole batch is
// compiled into one fragment, sharing common sub-expressions, and started
// as one run. Writable leaves are read every cycle rather than compiled as
// constants. Listeners receive the first value after the next Step and
// then every change.
func (e *Environment) RegisterListeners(ctx context.Context, batch []sensor.Registration) error {
	if len(batch) == 0 {
		return nil
	}
	frag := dataflow.NewFragment("listeners", e.catalog)
	watches := make([]*watch, 0, len(batch))
	for _, reg := range batch {
		if env := reg.Node.Environment(); env != nil && env.ID() != e.id {
			return fmt.Errorf("%s is bound to environment %s", reg.Node, env.ID())
		}
		_, port, bridge, err := e.live.CompileInto(ctx, reg.Node, frag)
		if err != nil {
			return err
		}
		frag.Expose(fmt.Sprintf("l%d", reg.Listener.ID()), port)
		watches = append(watches, &watch{listener: reg.Listener, bridge: bridge})
	}

	r, err := e.start(ctx, frag)
	if err != nil {
		return err
	}
	e.mu.Lock()
	for _, w := range watches {
		r.addWatch(w)
		e.listeners[w.listener] = r
	}
	e.mu.Unlock()
	return nil
}

// UnregisterListeners implements sensor.Environment. Runs left without
// listeners are stopped. Unknown listeners are ignored.
func (e *Environment) UnregisterListeners(ctx context.Context, batch []sensor.Registration) error {
	var idle []*Run
	e.mu.Lock()
	for _, reg := range batch {
		r, ok := e.listeners[reg.Listener]
		if !ok {
			continue
		}
		delete(e.listeners, reg.Listener)
		if r.removeWatch(reg.Listener) == 0 {
			idle = append(idle, r)
		}
	}
	e.mu.Unlock()

	for _, r := range idle {
		if err := r.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Environment) readNet(remote, key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.net[netKey{remote, key}]
	return v, ok
}

func (e *Environment) writeNet(remote, key string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.net[netKey{remote, key}] = v
}

// Published returns the value run remote last published under key.
func (e *Environment) Published(remote, key string) (any, bool) {
	return e.readNet(remote, key)
}

func (e *Environment) readSource(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.sources[name]
	return v, ok
}

func (e *Environment) setSource(name string, raw any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[name] = raw
}
