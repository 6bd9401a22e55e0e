package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/config"
	"github.com/maceff/macf/internal/paths"
)

// newInitCmd builds `macf init`, an interactive first-run setup writing
// config.json's agent_identity block and settings.json's telemetry
// consent, grounded on the teacher's enable.go/setup.go prompt sequence.
func newInitCmd() *cobra.Command {
	var moniker, description string
	var telemetryFlag bool
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively configure this agent's identity and telemetry consent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agentHome, err := paths.AgentHome()
			if err != nil {
				return NewSilentError(err)
			}

			cfg, err := config.LoadConfig(agentHome)
			if err != nil {
				return NewSilentError(err)
			}
			settings, err := config.LoadSettings(agentHome)
			if err != nil {
				return NewSilentError(err)
			}

			if !nonInteractive {
				if moniker == "" {
					if cfg.AgentIdentity != nil {
						moniker = cfg.AgentIdentity.Moniker
					}
					form := huh.NewForm(
						huh.NewGroup(
							huh.NewInput().
								Title("Agent moniker").
								Description("A short handle identifying this agent in logs and breadcrumbs.").
								Value(&moniker),
							huh.NewInput().
								Title("Description (optional)").
								Value(&description),
						),
					).WithAccessible(os.Getenv("ACCESSIBLE") != "")
					if err := form.Run(); err != nil {
						return NewSilentError(fmt.Errorf("init: %w", err))
					}
				}

				if settings.Telemetry == nil {
					consent := true
					form := huh.NewForm(
						huh.NewGroup(
							huh.NewConfirm().
								Title("Enable anonymous telemetry?").
								Description("Shares hook event names and durations. No prompts, code, or file contents are collected.").
								Affirmative("Yes").
								Negative("No").
								Value(&consent),
						),
					).WithAccessible(os.Getenv("ACCESSIBLE") != "")
					if err := form.Run(); err != nil {
						return NewSilentError(fmt.Errorf("init: %w", err))
					}
					settings.Telemetry = &consent
				}
			} else if settings.Telemetry == nil {
				t := telemetryFlag
				settings.Telemetry = &t
			}

			if moniker != "" {
				cfg.AgentIdentity = &config.AgentIdentity{
					Moniker:     moniker,
					Description: description,
					Created:     time.Now().UTC().Format(time.RFC3339),
				}
				if err := config.SaveConfig(agentHome, cfg); err != nil {
					return NewSilentError(err)
				}
			}
			if err := config.SaveSettings(agentHome, settings); err != nil {
				return NewSilentError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "macf initialized at %s\n", agentHome)
			return nil
		},
	}

	cmd.Flags().StringVar(&moniker, "moniker", "", "agent moniker (skips the interactive prompt)")
	cmd.Flags().StringVar(&description, "description", "", "agent description")
	cmd.Flags().BoolVar(&telemetryFlag, "telemetry", false, "telemetry consent when --non-interactive is set")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "skip interactive prompts, use flags only")
	return cmd
}
