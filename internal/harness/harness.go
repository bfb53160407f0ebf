package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roboticsapi/robotics-api-sub003/internal/command"
	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
	"github.com/roboticsapi/robotics-api-sub003/internal/store"
	"github.com/roboticsapi/robotics-api-sub003/internal/testutil"
)

const closeTimeout = 5 * time.Second

// Harness is the test execution engine.
// It runs scenarios against a simulated environment with deterministic run
// names, binding keys and trace sequence numbers.
type Harness struct {
	env     *sim.Environment
	store   *store.Store
	builder *exprdoc.Builder
	seq     *testutil.Sequence
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh environment with a fresh in-memory binding
// registry for isolation.
//
// Execution flow:
// 1. Build the expression and compile it
// 2. Persist it, when asked, and read through the resolved binding
// 3. Read the initial value
// 4. Apply writes, running cycles and reading after each
// 5. Evaluate expectations
//
// The returned error reports harness failures (unreadable document, broken
// environment). Failed expectations are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	env := sim.New(
		sim.WithID("harness"),
		sim.WithLogger(logger),
		sim.WithGenerator(testutil.NewSequentialKeys("net")),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = env.Close(ctx)
	}()

	h := &Harness{
		env:     env,
		store:   st,
		builder: exprdoc.NewBuilder(exprdoc.WithEnvironment(env)),
		seq:     testutil.NewSequence(),
		logger:  logger,
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, s *Scenario) (*Result, error) {
	doc, err := h.document(s)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	expr, frag, err := h.build(ctx, doc)
	if s.Expect.Error != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("expected error containing %q, expression built", s.Expect.Error))
		case !strings.Contains(err.Error(), s.Expect.Error):
			result.AddError(fmt.Sprintf("expected error containing %q, got: %v", s.Expect.Error, err))
		}
		return result, nil
	}
	if err != nil {
		result.AddError(fmt.Sprintf("build: %v", err))
		return result, nil
	}

	result.Type = expr.Type
	result.Fragment = frag
	result.Primitives = frag.Count()
	if port, ok := frag.Output(mapping.RootOutput); ok {
		result.OutputType = port.Tag().String()
	}
	_, result.Cheap = expr.Node.Cheap()

	read := expr
	if s.Persist {
		p, err := expr.Persist(ctx, h.env,
			command.WithRegistry(h.store),
			command.WithKeyGenerator(testutil.NewSequentialKeys("value")),
			command.WithLogger(h.logger),
		)
		if err != nil {
			result.AddError(fmt.Sprintf("persist: %v", err))
			return result, nil
		}
		defer p.Release(context.Background())

		if read, err = p.Resolve(); err != nil {
			result.AddError(fmt.Sprintf("resolve: %v", err))
			return result, nil
		}
		// the keep-alive run publishes once a cycle has run
		if err := h.cycle(ctx, result); err != nil {
			return nil, err
		}
	}

	if err := h.read(ctx, "initial", read, result); err != nil {
		result.AddError(fmt.Sprintf("initial value: %v", err))
		return result, nil
	}

	for i, w := range s.Writes {
		step := fmt.Sprintf("writes[%d]", i)
		if err := h.write(ctx, step, w, s.Persist, result); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", step, err))
			return result, nil
		}
		if err := h.read(ctx, step, read, result); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", step, err))
			return result, nil
		}
		if w.Expect != nil {
			if err := assertValue(result.Type, result.raw[len(result.raw)-1], w.Expect, step); err != nil {
				result.AddError(err.Error())
			}
		}
	}

	for _, msg := range EvaluateAssertions(result, s.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) document(s *Scenario) (*exprdoc.Document, error) {
	if s.Document == "" {
		return &exprdoc.Document{Name: s.Name, Expr: s.Expr}, nil
	}
	doc, err := exprdoc.LoadFile(s.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

func (h *Harness) build(ctx context.Context, doc *exprdoc.Document) (exprdoc.Expr, *dataflow.Fragment, error) {
	expr, err := h.builder.Build(doc)
	if err != nil {
		return exprdoc.Expr{}, nil, err
	}
	frag, _, err := h.env.Compiler().Compile(ctx, expr.Node)
	if err != nil {
		return exprdoc.Expr{}, nil, err
	}
	return expr, frag, nil
}

// write applies one write. Persisted values change only when the keep-alive
// run has seen a cycle, so a persisted scenario runs at least one.
func (h *Harness) write(ctx context.Context, step string, w Write, persisted bool, result *Result) error {
	names := make([]string, 0, len(w.Set))
	for name := range w.Set {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.builder.Set(name, w.Set[name]); err != nil {
			return err
		}
		result.AddSetTrace(name, w.Set[name], h.seq.Next())
	}

	cycles := w.Cycles
	if persisted && cycles == 0 {
		cycles = 1
	}
	for i := 0; i < cycles; i++ {
		if err := h.cycle(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) cycle(ctx context.Context, result *Result) error {
	if err := h.env.Step(ctx); err != nil {
		return fmt.Errorf("cycle: %w", err)
	}
	result.AddCycleTrace(h.seq.Next())
	return nil
}

func (h *Harness) read(ctx context.Context, step string, e exprdoc.Expr, result *Result) error {
	v, err := e.Value(ctx)
	if err != nil {
		return err
	}
	r, err := exprdoc.Render(e.Type, v)
	if err != nil {
		return err
	}
	result.Values = append(result.Values, r)
	result.raw = append(result.raw, v)
	result.AddValueTrace(step, r, h.seq.Next())
	return nil
}
