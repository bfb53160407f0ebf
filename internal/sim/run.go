package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// errStopped reports a cycle abandoned because its run was stopped.
var errStopped = errors.New("run stopped")

// signal carries one block output value to a downstream input.
type signal struct {
	cycle cycle
	value any
	ok    bool
}

type result struct {
	runner *runner
	value  any
	err    error
}

// runner executes one block on its own goroutine. Blocks without inputs
// wait for the trigger; the rest wait for every input of the cycle.
type runner struct {
	block   *dataflow.Block
	fn      blockFunc
	inputs  []chan signal
	outs    []chan signal
	trigger chan cycle
	results chan<- result
}

func (r *runner) loop(ctx context.Context) {
	for {
		var c cycle
		args := make([]any, len(r.inputs))
		ok := true
		if len(r.inputs) == 0 {
			select {
			case <-ctx.Done():
				return
			case c = <-r.trigger:
			}
		}
		for i, in := range r.inputs {
			select {
			case <-ctx.Done():
				return
			case s := <-in:
				c = s.cycle
				args[i] = s.value
				ok = ok && s.ok
			}
		}

		var v any
		err := errNoValue
		if ok {
			v, err = r.fn(c, args)
		}
		s := signal{cycle: c, value: v, ok: err == nil}
		for _, out := range r.outs {
			select {
			case <-ctx.Done():
				return
			case out <- s:
			}
		}
		select {
		case <-ctx.Done():
			return
		case r.results <- result{runner: r, value: v, err: err}:
		}
	}
}

// watch ties a listener to a compiled output.
type watch struct {
	listener *sensor.Listener
	bridge   *mapping.Bridge
	last     any
	seen     bool
}

// Run is a fragment executing as a network of block goroutines. It is the
// mapping.Handle returned by CompileAndRun.
type Run struct {
	name string
	env  *Environment
	frag *dataflow.Fragment

	runners []*runner
	sources []*runner
	results chan result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once

	// step serializes cycles.
	step sync.Mutex

	mu      sync.Mutex
	values  map[*dataflow.Output]any
	watches []*watch
}

// newRun builds the goroutine network for frag. The goroutines start
// immediately and idle until the first cycle.
func newRun(env *Environment, name string, frag *dataflow.Fragment) (*Run, error) {
	if verrs := dataflow.Validate(frag); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("fragment %s: %s", frag.Name(), strings.Join(msgs, "; "))
	}
	order, err := dataflow.TopologicalOrder(frag)
	if err != nil {
		return nil, err
	}

	r := &Run{
		name:    name,
		env:     env,
		frag:    frag,
		results: make(chan result, len(order)),
		values:  make(map[*dataflow.Output]any),
	}

	byBlock := make(map[*dataflow.Block]*runner, len(order))
	inputIndex := make(map[*dataflow.Block]map[string]int, len(order))
	for _, b := range order {
		im, ok := implFor(b.Type)
		if !ok {
			return nil, fmt.Errorf("%s: primitive %s is not simulated", b.ID, b.Type)
		}
		fn, err := im.build(b, r)
		if err != nil {
			return nil, err
		}
		rn := &runner{
			block:   b,
			fn:      fn,
			inputs:  make([]chan signal, len(im.inputs)),
			results: r.results,
		}
		idx := make(map[string]int, len(im.inputs))
		for i, name := range im.inputs {
			idx[name] = i
		}
		inputIndex[b] = idx
		if len(im.inputs) == 0 {
			rn.trigger = make(chan cycle, 1)
			r.sources = append(r.sources, rn)
		}
		byBlock[b] = rn
		r.runners = append(r.runners, rn)
	}

	for _, l := range frag.Links() {
		to := byBlock[l.To]
		i, ok := inputIndex[l.To][l.Input]
		if !ok {
			return nil, fmt.Errorf("%s: primitive %s has no simulated input %q", l.To.ID, l.To.Type, l.Input)
		}
		ch := make(chan signal, 1)
		to.inputs[i] = ch
		from := byBlock[l.From.Block]
		from.outs = append(from.outs, ch)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.ctx, r.cancel = ctx, cancel
	for _, rn := range r.runners {
		r.wg.Add(1)
		go func(rn *runner) {
			defer r.wg.Done()
			rn.loop(ctx)
		}(rn)
	}
	return r, nil
}

// Name returns the remote-net name of the run.
func (r *Run) Name() string {
	return r.name
}

// Fragment returns the executing fragment.
func (r *Run) Fragment() *dataflow.Fragment {
	return r.frag
}

// Stop terminates the block goroutines and withdraws values the run
// published. Stopping twice is a no-op.
func (r *Run) Stop(ctx context.Context) error {
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
		r.env.forget(r)
		r.env.logger.Info("run stopped", "run", r.name)
	})
	return ctx.Err()
}

// runCycle executes one evaluation of every block and records the outputs.
// It returns errStopped if the run is stopped before the cycle completes.
func (r *Run) runCycle(ctx context.Context, c cycle) error {
	r.step.Lock()
	defer r.step.Unlock()

	for _, rn := range r.sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.ctx.Done():
			return errStopped
		case rn.trigger <- c:
		}
	}

	values := make(map[*dataflow.Output]any, len(r.runners))
	for range r.runners {
		var res result
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.ctx.Done():
			return errStopped
		case res = <-r.results:
		}
		b := res.runner.block
		if res.err != nil {
			if !errors.Is(res.err, errNoValue) {
				r.env.logger.Warn("block failed", "run", r.name, "block", b.ID, "type", b.Type, "error", res.err)
			}
			continue
		}
		for _, spec := range b.Primitive().Outputs {
			out, err := b.Out(spec.Name)
			if err == nil {
				values[out.Output()] = res.value
			}
		}
	}

	r.mu.Lock()
	r.values = values
	r.mu.Unlock()
	return nil
}

// Value returns the raw value out carried in the last cycle.
func (r *Run) Value(out *dataflow.Output) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[out]
	return v, ok
}

func (r *Run) addWatch(w *watch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watches = append(r.watches, w)
}

// removeWatch detaches l and reports how many watches remain.
func (r *Run) removeWatch(l *sensor.Listener) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.watches[:0]
	for _, w := range r.watches {
		if w.listener != l {
			kept = append(kept, w)
		}
	}
	r.watches = kept
	return len(kept)
}

// changed returns the deliveries due after a cycle: every watched output
// whose value differs from the last one delivered.
func (r *Run) changed() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, w := range r.watches {
		v, ok := r.values[w.bridge.Output()]
		if !ok || (w.seen && v == w.last) {
			continue
		}
		w.last, w.seen = v, true
		out = append(out, delivery{listener: w.listener, value: w.bridge.Map(v)})
	}
	return out
}
