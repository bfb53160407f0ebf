package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roboticsapi/robotics-api-sub003/internal/command"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/store"
	"github.com/roboticsapi/robotics-api-sub003/internal/store/bolt"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// StoreOptions selects the binding registry.
type StoreOptions struct {
	Database string
	Backend  string
}

func (o *StoreOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to the binding database (required)")
	cmd.Flags().StringVar(&o.Backend, "backend", BackendSQLite, "binding store backend (sqlite|bolt)")
	_ = cmd.MarkFlagRequired("db")
}

// bindingStore is a registry that can also list what it recorded.
type bindingStore interface {
	command.Registry
	Bindings(ctx context.Context, activeOnly bool) ([]ir.BindingRecord, error)
	Close() error
}

func openStore(o StoreOptions) (bindingStore, error) {
	switch o.Backend {
	case BackendSQLite:
		st, err := store.Open(o.Database)
		if err != nil {
			return nil, err
		}
		return st, nil
	case BackendBolt:
		st, err := bolt.Open(o.Database)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be %s or %s", o.Backend, BackendSQLite, BackendBolt)
	}
}

// BindingsOptions holds flags for the bindings command.
type BindingsOptions struct {
	*RootOptions
	StoreOptions
	Active bool
}

// NewBindingsCommand creates the bindings command.
func NewBindingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BindingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "List persisted expression bindings",
		Long: `List the bindings recorded by persist, oldest first.

Examples:
  rapi bindings --db ./bindings.db
  rapi bindings --db ./bindings.bolt --backend bolt --active`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBindings(withDefault(cmd.Context()), opts, cmd)
		},
	}

	opts.StoreOptions.register(cmd)
	cmd.Flags().BoolVar(&opts.Active, "active", false, "only list bindings that have not been released")

	return cmd
}

func runBindings(ctx context.Context, opts *BindingsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.StoreOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	recs, err := st.Bindings(ctx, opts.Active)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(recs)
	}

	w := formatter.Writer
	if len(recs) == 0 {
		fmt.Fprintln(w, "No bindings found.")
		return nil
	}
	for _, r := range recs {
		state := "active"
		if !r.Active() {
			state = fmt.Sprintf("released@%d", r.ReleasedSeq)
		}
		fmt.Fprintf(w, "%s  %s%s  %s/%s  %s\n", r.Key, r.ValueType, r.Context, r.Environment, r.RemoteNet, state)
	}
	return nil
}
