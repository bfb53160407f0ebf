package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Prefix string
}

// PrimitiveInfo describes one catalog primitive.
type PrimitiveInfo struct {
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
	Params  []string `json:"params,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the primitives of the simulation environment",
		Long: `List every primitive the simulation environment can run, with its typed
ports and parameters. Required parameters are marked with "!".

Examples:
  rapi catalog
  rapi catalog --prefix Vector::`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only list primitives whose name starts with this prefix")

	return cmd
}

func runCatalog(opts *CatalogOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	prims := listPrimitives(sim.Catalog(), opts.Prefix)

	if formatter.Format == "json" {
		return formatter.Success(prims)
	}

	w := formatter.Writer
	if len(prims) == 0 {
		fmt.Fprintln(w, "No primitives found.")
		return nil
	}
	for _, p := range prims {
		fmt.Fprintf(w, "%s(%s) -> %s", p.Name, strings.Join(p.Inputs, ", "), strings.Join(p.Outputs, ", "))
		if len(p.Params) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(p.Params, ", "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// listPrimitives returns the primitives of cat in name order.
func listPrimitives(cat *dataflow.Catalog, prefix string) []PrimitiveInfo {
	var out []PrimitiveInfo
	for _, name := range cat.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		p, _ := cat.Lookup(name)
		info := PrimitiveInfo{
			Name:    p.Name,
			Inputs:  ports(p.Inputs),
			Outputs: ports(p.Outputs),
		}
		for _, param := range p.Params {
			switch {
			case param.Required:
				info.Params = append(info.Params, param.Name+"!")
			case param.Default != "":
				info.Params = append(info.Params, param.Name+"="+param.Default)
			default:
				info.Params = append(info.Params, param.Name)
			}
		}
		out = append(out, info)
	}
	if out == nil {
		out = []PrimitiveInfo{}
	}
	return out
}

func ports(specs []dataflow.PortSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = fmt.Sprintf("%s %s", s.Name, s.Type)
	}
	return out
}
