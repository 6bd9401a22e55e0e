package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/grant"
)

// newGrantCmd builds `macf grant {issue,consume,deny,list}`, the human/
// script-facing side of the Grant-Gated Mutation Gate (spec §4.I). The
// gate itself is enforced by pre_tool_use (hooks_dispatch.go); these
// subcommands let an operator or a higher-level agent loop issue and
// inspect grants directly.
func newGrantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Issue, consume, clear, and list grant-gated authorizations",
	}
	cmd.AddCommand(newGrantIssueCmd())
	cmd.AddCommand(newGrantConsumeCmd())
	cmd.AddCommand(newGrantDenyCmd())
	cmd.AddCommand(newGrantListCmd())
	return cmd
}

func newGrantIssueCmd() *cobra.Command {
	var targets []string
	var reason, sessionID string
	c := &cobra.Command{
		Use:   "issue",
		Short: "Issue a grant covering an exact target set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			id := grant.NewGrantID()
			if err := appendEvent(rt, newEvent(rt, "grant_issued", sessionID, "", map[string]any{
				"grant_id":   id,
				"target_set": grant.Canonicalize(targets),
				"reason":     reason,
			})); err != nil {
				return NewSilentError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	c.Flags().StringSliceVar(&targets, "target", nil, "target set entry (repeatable), e.g. tool_name or tool_name.field")
	c.Flags().StringVar(&reason, "reason", "", "human-readable justification")
	c.Flags().StringVar(&sessionID, "session", "", "session id to stamp the grant_issued event with")
	_ = c.MarkFlagRequired("target")
	_ = c.MarkFlagRequired("session")
	return c
}

func newGrantConsumeCmd() *cobra.Command {
	var grantID, sessionID string
	c := &cobra.Command{
		Use:   "consume",
		Short: "Mark a grant consumed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			if err := appendEvent(rt, newEvent(rt, "grant_consumed", sessionID, "", map[string]any{
				"grant_id": grantID,
			})); err != nil {
				return NewSilentError(err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&grantID, "id", "", "grant id")
	c.Flags().StringVar(&sessionID, "session", "", "session id to stamp the grant_consumed event with")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("session")
	return c
}

func newGrantDenyCmd() *cobra.Command {
	var grantID, sessionID string
	c := &cobra.Command{
		Use:   "deny",
		Short: "Clear a grant before it is consumed, revoking it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			if err := appendEvent(rt, newEvent(rt, "grant_cleared", sessionID, "", map[string]any{
				"grant_id": grantID,
			})); err != nil {
				return NewSilentError(err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&grantID, "id", "", "grant id")
	c.Flags().StringVar(&sessionID, "session", "", "session id to stamp the grant_cleared event with")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("session")
	return c
}

func newGrantListCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List active (unconsumed, uncleared) grants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			active, err := grant.Active(rt.reader)
			if err != nil {
				return NewSilentError(err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(active)
			}
			for _, g := range active {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %v  %s\n", g.ID, g.TargetSet, g.Reason)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return c
}
