package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/paths"
	"github.com/maceff/macf/internal/search"
)

// newDoctorCmd builds `macf doctor`, a diagnostic printer for the three
// independently-resolved roots (spec §4.A) and search service reachability
// (spec §4.H), grounded on the teacher's doctor.go environment checks.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose path resolution and search service reachability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			ok := true

			reportRoot := func(name string, resolve func() (string, error)) {
				path, err := resolve()
				if err != nil {
					ok = false
					fmt.Fprintf(out, "%-14s FAIL  %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "%-14s OK    %s\n", name, path)
			}

			reportRoot("framework_root", paths.FrameworkRoot)
			reportRoot("project_root", paths.ProjectRoot)
			reportRoot("agent_home", paths.AgentHome)

			agentHome, err := paths.AgentHome()
			if err != nil {
				fmt.Fprintf(out, "%-14s FAIL  %v\n", "search", err)
			} else {
				st := search.CheckStatus(search.PIDPath(agentHome), search.SocketPath(agentHome))
				if st.Running {
					fmt.Fprintf(out, "%-14s OK    running (pid %d)\n", "search", st.PID)
				} else {
					fmt.Fprintf(out, "%-14s WARN  not running (falls back to in-process retrieval)\n", "search")
				}
			}

			if !ok {
				return NewSilentError(fmt.Errorf("doctor: one or more roots failed to resolve"))
			}
			return nil
		},
	}
}
