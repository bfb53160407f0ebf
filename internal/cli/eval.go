package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Set   []string // name=value assignments
	Steps int      // cycles to run before reading
}

// EvalResult is the value of one evaluated document.
type EvalResult struct {
	Name  string            `json:"name"`
	Type  exprdoc.ValueType `json:"type"`
	Cheap bool              `json:"cheap"`
	Cycle int64             `json:"cycle"`
	Value exprdoc.Rendered  `json:"value"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <document>",
		Short: "Evaluate an expression document once",
		Long: `Evaluate an expression document and print its current value.

Expressions over constants and writables are computed directly. Expressions
reading simulation sources are compiled and run for one cycle in a
simulation environment.

Examples:
  rapi eval offset.yaml
  rapi eval offset.yaml --set joint=0,1,0
  rapi eval average.cue --set x=2 --steps 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(withDefault(cmd.Context()), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "assign an input before evaluating (name=value, repeatable)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "environment cycles to run before reading")

	return cmd
}

func runEval(ctx context.Context, opts *EvalOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Steps < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("--steps must be non-negative, got %d", opts.Steps), nil)
	}

	s := openSession(formatter.Logger())
	defer s.Close()

	doc, e, err := s.load(path)
	if err != nil {
		return documentFailure(formatter, err)
	}

	if err := applySets(s.builder, opts.Set); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}

	for i := 0; i < opts.Steps; i++ {
		if err := s.step(ctx); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
		}
	}
	formatter.VerboseLog("Evaluating %s after %d cycle(s)", doc.Name, opts.Steps)

	_, cheap := e.Node.Cheap()
	v, err := e.Value(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
	}
	rendered, err := exprdoc.Render(e.Type, v)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
	}

	result := EvalResult{
		Name:  doc.Name,
		Type:  e.Type,
		Cheap: cheap,
		Cycle: s.env.Clock().Current(),
		Value: rendered,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s = %s\n", result.Name, result.Value)
	return nil
}

// applySets assigns each name=value pair in order.
func applySets(b *exprdoc.Builder, sets []string) error {
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid assignment %q: want name=value", kv)
		}
		if err := b.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// step runs one environment cycle and waits for listener delivery.
func (s *session) step(ctx context.Context) error {
	if err := s.env.Step(ctx); err != nil {
		return err
	}
	return s.env.Sync(ctx)
}
