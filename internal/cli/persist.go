package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roboticsapi/robotics-api-sub003/internal/command"
	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
)

// PersistOptions holds flags for the persist command.
type PersistOptions struct {
	*RootOptions
	StoreOptions
	Set   []string
	Steps int
	Keep  bool
}

// PersistResult reports a persisted document and the value read back
// through its binding.
type PersistResult struct {
	Name      string           `json:"name"`
	Key       string           `json:"key"`
	RemoteNet string           `json:"remote_net"`
	Value     exprdoc.Rendered `json:"value"`
	Released  bool             `json:"released"`
}

// NewPersistCommand creates the persist command.
func NewPersistCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PersistOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "persist <document>",
		Short: "Persist an expression and read it back through its binding",
		Long: `Compile an expression document into a keep-alive run, record the binding
in the store, run the environment and read the value through the binding.

The binding is released before exit unless --keep is given, in which case
the store keeps it listed as active.

Examples:
  rapi persist offset.yaml --db ./bindings.db
  rapi persist offset.yaml --db ./bindings.bolt --backend bolt --keep`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPersist(withDefault(cmd.Context()), opts, args[0], cmd)
		},
	}

	opts.StoreOptions.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "assign an input before running (name=value, repeatable)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 1, "environment cycles to run before reading (at least 1)")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "leave the binding active in the store")

	return cmd
}

func runPersist(ctx context.Context, opts *PersistOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Steps < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("--steps must be at least 1, got %d", opts.Steps), nil)
	}

	st, err := openStore(opts.StoreOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	logger := formatter.Logger()
	s := openSession(logger)
	defer s.Close()

	doc, e, err := s.load(path)
	if err != nil {
		return documentFailure(formatter, err)
	}
	if err := applySets(s.builder, opts.Set); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}

	p, err := e.Persist(ctx, s.env, command.WithRegistry(st), command.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCompileFailed, err.Error(), nil)
	}
	remote, _ := p.RemoteNet()
	formatter.VerboseLog("Persisted %s as %s on %s", doc.Name, p.Key(), remote)

	for i := 0; i < opts.Steps; i++ {
		if err := s.step(ctx); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
		}
	}

	resolved, err := p.Resolve()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
	}
	v, err := resolved.Value(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
	}
	rendered, err := exprdoc.Render(resolved.Type, v)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEvalFailed, err.Error(), nil)
	}

	if !opts.Keep {
		if err := p.Release(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
	}

	result := PersistResult{
		Name:      doc.Name,
		Key:       p.Key(),
		RemoteNet: remote,
		Value:     rendered,
		Released:  p.Released(),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s persisted as %s = %s\n", result.Name, result.Key, result.Value)
	if result.Released {
		fmt.Fprintln(formatter.Writer, "  binding released")
	}
	return nil
}
