package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/breadcrumb"
	"github.com/maceff/macf/internal/reconcile"
)

// newBreadcrumbCmd builds `macf breadcrumb current`, a diagnostic surface
// for printing the breadcrumb a handler would stamp right now, given the
// log's reconciled identifier tuple (spec §6).
func newBreadcrumbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breadcrumb",
		Short: "Inspect breadcrumb identity state",
	}
	cmd.AddCommand(newBreadcrumbCurrentCmd())
	return cmd
}

func newBreadcrumbCurrentCmd() *cobra.Command {
	var sessionID string
	c := &cobra.Command{
		Use:   "current",
		Short: "Print the breadcrumb that would be stamped right now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}

			tuple, _, err := reconcile.Reconcile(rt.reader, reconcile.HookInput{SessionID: sessionID})
			if err != nil {
				return NewSilentError(err)
			}
			if tuple.SessionID == "" {
				return NewSilentError(fmt.Errorf("breadcrumb: no session id available (pass --session or invoke inside a session)"))
			}

			crumb, err := breadcrumb.Current(tuple.SessionID, tuple.Cycle, tuple.PromptUUID, rt.agentHome)
			if err != nil {
				return NewSilentError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), crumb)
			return nil
		},
	}
	c.Flags().StringVar(&sessionID, "session", "", "session id to reconcile against (defaults to the log's most recent)")
	return c
}
