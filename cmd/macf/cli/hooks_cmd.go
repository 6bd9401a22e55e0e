package cli

import (
	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/hookio"
)

// newHooksCmd builds the hidden "hooks" parent and its ten event
// subcommands. Hidden because a human never types "macf hooks session_start"
// by hand — the host's hook configuration does, per spec §6's CLI surface.
// Unlike the teacher's hooks_cmd.go, there is no per-agent dynamic handler
// registration: MACF's ten hook events are the whole contract, fixed at
// compile time, agent-host-agnostic.
func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hooks",
		Short:  "Hook event entry points (invoked by the host, not a human)",
		Hidden: true,
	}

	for _, sub := range hookSubcommands {
		cmd.AddCommand(sub)
	}
	return cmd
}

var hookSubcommands = []*cobra.Command{
	newHookSubcommand(hookio.EventSessionStart, handleSessionStart),
	newHookSubcommand(hookio.EventUserPromptSubmit, handleUserPromptSubmit),
	newHookSubcommand(hookio.EventPreToolUse, handlePreToolUse),
	newHookSubcommand(hookio.EventPostToolUse, handlePostToolUse),
	newHookSubcommand(hookio.EventStop, handleStop),
	newHookSubcommand(hookio.EventSubagentStop, handleSubagentStop),
	newHookSubcommand(hookio.EventPreCompact, handlePreCompact),
	newHookSubcommand(hookio.EventSessionEnd, handleSessionEnd),
	newHookSubcommand(hookio.EventNotification, handleNotification),
	newHookSubcommand(hookio.EventPermissionRequest, handlePermissionRequest),
}

func newHookSubcommand(event hookio.Event, handler func(*runtime, hookio.Input) (hookio.Output, error)) *cobra.Command {
	return &cobra.Command{
		Use:           string(event),
		Hidden:        true,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHook(event, handler)
		},
	}
}
