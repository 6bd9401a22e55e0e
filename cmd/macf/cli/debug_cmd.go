package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDebugCmd builds `macf debug metrics`, dumping the process's in-memory
// Prometheus registry (spec §4.G) as text exposition format.
func newDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "debug",
		Short:  "Low-level diagnostics",
		Hidden: true,
	}
	cmd.AddCommand(newDebugMetricsCmd())
	return cmd
}

func newDebugMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Dump Prometheus text exposition for this process's metrics registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			text, err := rt.metrics.DumpText()
			if err != nil {
				return NewSilentError(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
