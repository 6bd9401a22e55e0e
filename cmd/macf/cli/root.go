package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/versioncheck"
)

// Version and Commit are set at build time via -ldflags, mirroring the
// teacher's root.go.
var (
	Version = "dev"
	Commit  = "unknown"
)

const longDescription = `macf is the consciousness-continuity runtime for long-lived coding agents:
an append-only event log, breadcrumb-stamped session/cycle/prompt
identity, a session-start recovery composer, grant-gated destructive
tool calls, and a hybrid policy search service, all driven through the
ten hook events a host invokes across an agent's lifecycle.`

// NewRootCmd builds macf's top-level command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "macf",
		Short:         "Consciousness-continuity infrastructure for coding agents",
		Long:          longDescription,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			versioncheck.CheckAndNotify(cmd, Version)
		},
	}

	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newBreadcrumbCmd())
	cmd.AddCommand(newGrantCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newDebugCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("macf %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
