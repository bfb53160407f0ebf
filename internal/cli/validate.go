package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// FileValidation is the outcome for one document.
type FileValidation struct {
	Path       string `json:"path"`
	Name       string `json:"name,omitempty"`
	Valid      bool   `json:"valid"`
	OutputType string `json:"output_type,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Check that documents build and compile",
		Long: `Load, build and compile each expression document without running it.

Every document is checked in its own environment and all failures are
reported. Faster than eval for development feedback.

Exit codes:
  0 - All documents valid
  1 - One or more documents invalid
  2 - A document could not be found`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(withDefault(cmd.Context()), rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(ctx context.Context, opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	missing := false
	for _, path := range paths {
		fv := validateFile(ctx, formatter, path)
		if !fv.Valid {
			result.Valid = false
			missing = missing || fv.Code == ErrCodeNotFound
		}
		result.Files = append(result.Files, fv)
	}

	invalid := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			invalid++
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    firstCode(result.Files),
				Message: fmt.Sprintf("%d of %d document(s) invalid", invalid, len(result.Files)),
			}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s: %s\n", fv.Path, fv.OutputType)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", fv.Path)
			fmt.Fprintf(w, "  %s: %s\n", fv.Code, fv.Error)
		}
	}

	switch {
	case missing:
		return NewExitError(ExitCommandError, "document not found")
	case !result.Valid:
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", invalid))
	}
	return nil
}

// validateFile builds and compiles path in a fresh session, so inputs of
// one document never clash with another's.
func validateFile(ctx context.Context, formatter *OutputFormatter, path string) FileValidation {
	s := openSession(formatter.Logger())
	defer s.Close()

	fv := FileValidation{Path: path}
	doc, e, err := s.load(path)
	if doc != nil {
		fv.Name = doc.Name
	}
	if err != nil {
		var de *DocumentError
		if errors.As(err, &de) {
			fv.Code = de.Code
			fv.Error = de.Message
		} else {
			fv.Code = ErrCodeGeneric
			fv.Error = err.Error()
		}
		return fv
	}

	compiled, err := compileExpr(ctx, s, doc.Name, e)
	if err != nil {
		fv.Code = ErrCodeCompileFailed
		fv.Error = err.Error()
		return fv
	}
	formatter.VerboseLog("%s: %d block(s)", path, blockCount(compiled.Primitives))

	fv.Valid = true
	fv.OutputType = compiled.OutputType
	return fv
}

func firstCode(files []FileValidation) string {
	for _, fv := range files {
		if !fv.Valid {
			return fv.Code
		}
	}
	return ErrCodeGeneric
}

func blockCount(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
