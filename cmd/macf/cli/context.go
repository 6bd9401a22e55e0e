// Package cli implements macf's command surface: the ten hook handlers
// invoked by the host on stdin/stdout, plus the ambient CLI commands
// (breadcrumb, events, search-service, grant, init, doctor, debug) a
// human or script can run directly. Adapted from the teacher's
// cmd/entire/cli package layout: one file per command/concern, a
// shared runtime context threaded through handlers instead of package
// globals, cobra for command wiring throughout.
package cli

import (
	"fmt"

	"github.com/maceff/macf/internal/config"
	"github.com/maceff/macf/internal/eventlog"
	"github.com/maceff/macf/internal/metrics"
	"github.com/maceff/macf/internal/paths"
	"github.com/maceff/macf/internal/telemetry"
)

// runtime bundles the resolved paths and long-lived collaborators every
// hook handler and CLI command needs, built once per process in
// NewRootCmd's PersistentPreRunE and threaded via the command's context.
type runtime struct {
	agentHome string
	settings  *config.Settings
	writer    *eventlog.Writer
	reader    *eventlog.Reader
	metrics   *metrics.Registry
	telemetry telemetry.Client

	// cycle is the consciousness cycle to stamp on breadcrumbs composed
	// during this invocation (spec §4.D), set once per process by
	// reconcile.Reconcile (or session_start's own classification, which
	// is authoritative for the one invocation that may increment it).
	cycle int

	// promptComponent is the breadcrumb-digested prompt component
	// (8-hex, or reconcile.NonePrompt) of the session's currently open
	// dev-drive interval, as reconciled fresh from the log before the
	// handler runs. Closing handlers (stop/subagent_stop) stamp their
	// *_ended event with this exact component rather than a freshly
	// hashed prompt_uuid, since it must match the digest the
	// corresponding *_started event already carries.
	promptComponent string
}

func newRuntime() (*runtime, error) {
	agentHome, err := paths.AgentHome()
	if err != nil {
		return nil, fmt.Errorf("resolve agent home: %w", err)
	}

	settings, err := config.LoadSettings(agentHome)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logPath := eventlog.Path(agentHome)

	return &runtime{
		agentHome: agentHome,
		settings:  settings,
		writer:    eventlog.NewWriter(logPath),
		reader:    eventlog.NewReader(logPath),
		metrics:   metrics.New(),
		telemetry: telemetry.NewClient(Version, settings.Telemetry),
	}, nil
}

// SilentError marks an error whose user-facing message has already been
// printed by the command that returned it; main.go checks for this type
// before printing anything further, mirroring the teacher's own
// print-once discipline for interactive command failures.
type SilentError struct {
	Err error
}

func NewSilentError(err error) *SilentError { return &SilentError{Err: err} }
func (e *SilentError) Error() string        { return e.Err.Error() }
func (e *SilentError) Unwrap() error        { return e.Err }
