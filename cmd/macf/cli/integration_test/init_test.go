//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestInitInteractive drives `macf init` through a real pty end to end,
// the way a human running it at a terminal would: answer the moniker and
// description prompts, accept telemetry, then confirm config.json and
// settings.json were written with the answers given. ACCESSIBLE=1 mirrors
// the teacher's own interactive harness: huh still needs a real tty to
// open (hence the pty), but reads plain lines from it instead of
// rendering a full-screen form.
func TestInitInteractive(t *testing.T) {
	agentHome := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(agentHome); err == nil {
		agentHome = resolved
	}

	env := []string{
		"MACEFF_AGENT_HOME_DIR=" + agentHome,
		"CLAUDE_PROJECT_DIR=" + agentHome,
		"MACEFF_ROOT_DIR=" + agentHome,
		"TERM=xterm",
		"ACCESSIBLE=1",
	}

	output, err := runInteractive(agentHome, env, []string{"init"}, func(ptyFile *os.File) string {
		out, err := waitForPromptAndRespond(ptyFile, "Agent moniker", "integration-agent\n", 5*time.Second)
		if err != nil {
			t.Errorf("waiting for moniker prompt: %v", err)
			return out
		}

		rest, err := waitForPromptAndRespond(ptyFile, "Description", "driven by a pty\n", 5*time.Second)
		out += rest
		if err != nil {
			t.Errorf("waiting for description prompt: %v", err)
			return out
		}

		rest, err = waitForPromptAndRespond(ptyFile, "telemetry", "y\n", 5*time.Second)
		out += rest
		if err != nil {
			t.Errorf("waiting for telemetry prompt: %v", err)
			return out
		}
		return out
	})
	if err != nil {
		t.Fatalf("macf init: %v\noutput:\n%s", err, output)
	}

	configPath := filepath.Join(agentHome, ".maceff", "config.json")
	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config.json: %v\noutput:\n%s", err, output)
	}
	var cfg struct {
		AgentIdentity struct {
			Moniker     string `json:"moniker"`
			Description string `json:"description"`
		} `json:"agent_identity"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode config.json: %v", err)
	}
	if cfg.AgentIdentity.Moniker != "integration-agent" {
		t.Fatalf("expected moniker %q, got %q", "integration-agent", cfg.AgentIdentity.Moniker)
	}

	settingsPath := filepath.Join(agentHome, ".maceff", "settings.json")
	if _, err := os.Stat(settingsPath); err != nil {
		t.Fatalf("expected settings.json to exist: %v", err)
	}
}
