// Package telemetry sends anonymous, opt-in usage events (which CLI
// subcommand ran, which hook event fired, no payload content) to help
// understand real-world MACF usage patterns. Adapted from the teacher's
// cli/telemetry/telemetry.go: same Client interface/NoOpClient/PostHog
// backend shape, retargeted from entire-cli's strategy/agent properties
// to MACF's hook-event/classification properties.
package telemetry

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// PostHogAPIKey and PostHogEndpoint are overridable at build time via
// -ldflags; the defaults point at a development project.
var (
	PostHogAPIKey   = "phc_development_key"
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// EnvOptOut disables telemetry unconditionally, overriding any settings
// value.
const EnvOptOut = "MACF_TELEMETRY_OPTOUT"

// Client is the telemetry sink MACF's CLI and hook dispatch report to.
type Client interface {
	TrackCommand(cmd *cobra.Command)
	TrackHookEvent(hookEvent, classification string)
	Close()
}

// NoOpClient discards every event; used when telemetry is disabled.
type NoOpClient struct{}

func (NoOpClient) TrackCommand(*cobra.Command)         {}
func (NoOpClient) TrackHookEvent(string, string)       {}
func (NoOpClient) Close()                              {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...any)   {}
func (silentLogger) Debugf(string, ...any) {}
func (silentLogger) Warnf(string, ...any)  {}
func (silentLogger) Errorf(string, ...any) {}

// PostHogClient is the real telemetry backend.
type PostHogClient struct {
	client      posthog.Client
	machineID   string
	macfVersion string
	mu          sync.RWMutex
}

// NewClient builds a Client. telemetryEnabled comes from settings
// (nil/false means disabled, matching the teacher's opt-in-by-default
// stance); MACF_TELEMETRY_OPTOUT always wins regardless of settings.
func NewClient(version string, telemetryEnabled *bool) Client {
	if os.Getenv(EnvOptOut) != "" {
		return NoOpClient{}
	}
	if telemetryEnabled == nil || !*telemetryEnabled {
		return NoOpClient{}
	}

	id, err := machineid.ProtectedID("macf-cli")
	if err != nil {
		return NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("macf_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}

	return &PostHogClient{client: client, machineID: id, macfVersion: version}
}

// TrackCommand records which CLI subcommand ran and which flag names (not
// values) were set, for privacy.
func (p *PostHogClient) TrackCommand(cmd *cobra.Command) {
	if cmd == nil || cmd.Hidden {
		return
	}

	p.mu.RLock()
	id, c := p.machineID, p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	var flags []string
	cmd.Flags().Visit(func(f *pflag.Flag) { flags = append(flags, f.Name) })

	props := posthog.NewProperties().Set("command", cmd.CommandPath())
	if len(flags) > 0 {
		props.Set("flags", strings.Join(flags, ","))
	}

	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "macf_command_executed",
		Properties: props,
	})
}

// TrackHookEvent records which semantic hook fired and, for session_start,
// what classification it produced — no hook input content is sent.
func (p *PostHogClient) TrackHookEvent(hookEvent, classification string) {
	p.mu.RLock()
	id, c := p.machineID, p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	props := posthog.NewProperties().Set("hook_event", hookEvent)
	if classification != "" {
		props.Set("classification", classification)
	}

	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "macf_hook_fired",
		Properties: props,
	})
}

// Close flushes pending events; best-effort, bounded by ShutdownTimeout.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
