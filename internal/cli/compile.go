package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompileResult describes one compiled document.
type CompileResult struct {
	Name       string            `json:"name"`
	Type       exprdoc.ValueType `json:"type"`
	OutputType string            `json:"output_type"`
	Hash       string            `json:"hash"`
	Primitives map[string]int    `json:"primitives"`
	Fragment   json.RawMessage   `json:"fragment"`

	describe string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <document>",
		Short: "Compile an expression document to a dataflow fragment",
		Long: `Compile an expression document (YAML or CUE) into a dataflow fragment
for the simulation environment.

Text output lists blocks, links and the exposed root output. JSON output
carries the canonical fragment and its content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical fragment to this file")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	s := openSession(formatter.Logger())
	defer s.Close()

	doc, e, err := s.load(path)
	if err != nil {
		return documentFailure(formatter, err)
	}
	formatter.VerboseLog("Compiling %s (%s)", doc.Name, e.Type)

	result, err := compileExpr(withDefault(ctx), s, doc.Name, e)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCompileFailed, err.Error(), nil)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(result.Fragment, '\n'), 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %s\n\n", result.Name, result.OutputType)
	fmt.Fprint(w, result.describe)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Primitives:")
	names := make([]string, 0, len(result.Primitives))
	for name := range result.Primitives {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %d\n", name, result.Primitives[name])
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote canonical fragment to %s\n", opts.Output)
	}
	return nil
}

// compileExpr compiles e in the session's environment.
func compileExpr(ctx context.Context, s *session, name string, e exprdoc.Expr) (*CompileResult, error) {
	frag, _, err := s.env.Compiler().Compile(ctx, e.Node)
	if err != nil {
		return nil, err
	}
	out, ok := frag.Output(mapping.RootOutput)
	if !ok {
		return nil, fmt.Errorf("fragment exposes no %q output", mapping.RootOutput)
	}
	canonical, err := ir.MarshalCanonical(frag.Canonical())
	if err != nil {
		return nil, err
	}
	hash, err := frag.Hash()
	if err != nil {
		return nil, err
	}

	return &CompileResult{
		Name:       name,
		Type:       e.Type,
		OutputType: out.Tag().String(),
		Hash:       hash,
		Primitives: frag.Count(),
		Fragment:   canonical,
		describe:   frag.Describe(),
	}, nil
}

// withDefault returns ctx, or a background context when cobra ran the
// command without one.
func withDefault(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
