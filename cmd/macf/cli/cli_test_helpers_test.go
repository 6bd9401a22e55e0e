package cli

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/maceff/macf/internal/eventlog"
	"github.com/maceff/macf/internal/hookio"
	"github.com/maceff/macf/internal/paths"
)

// withAgentHome points all three path roots at a fresh temp directory for
// one test and resets paths' process-wide resolution cache so tests never
// see each other's roots.
func withAgentHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(paths.EnvAgentHome, dir)
	t.Setenv(paths.EnvProjectRoot, dir)
	t.Setenv(paths.EnvFrameworkRoot, dir)
	paths.ResetCache()
	paths.ResetWarnings()
	t.Cleanup(paths.ResetCache)
	return dir
}

// captureStdout redirects os.Stdout to a temp file for the duration of fn
// and returns whatever was written to it.
func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stdout-*.json")
	if err != nil {
		t.Fatalf("create stdout capture file: %v", err)
	}
	defer f.Close()

	orig := os.Stdout
	os.Stdout = f
	fn()
	os.Stdout = orig

	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read stdout capture file: %v", err)
	}
	return raw
}

// runHookCapture drives the real runHook dispatch shell end to end: input
// is marshaled to JSON and fed through os.Stdin, and runHook's stdout is
// captured and decoded back into an Output. This exercises the same path
// a real hook invocation takes, not a handler called directly.
func runHookCapture(t *testing.T, event hookio.Event, handler func(*runtime, hookio.Input) (hookio.Output, error), input map[string]any) hookio.Output {
	t.Helper()

	body, err := json.Marshal(input)
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}

	inFile, err := os.CreateTemp(t.TempDir(), "stdin-*.json")
	if err != nil {
		t.Fatalf("create stdin temp file: %v", err)
	}
	if _, err := inFile.Write(body); err != nil {
		t.Fatalf("write stdin temp file: %v", err)
	}
	if _, err := inFile.Seek(0, 0); err != nil {
		t.Fatalf("seek stdin temp file: %v", err)
	}
	defer inFile.Close()

	origStdin := os.Stdin
	os.Stdin = inFile
	raw := captureStdout(t, func() {
		if err := runHook(event, handler); err != nil {
			t.Fatalf("runHook: %v", err)
		}
	})
	os.Stdin = origStdin

	var out hookio.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode stdout %q: %v", raw, err)
	}
	return out
}

// readEvents streams every event currently in agentHome's event log.
func readEvents(t *testing.T, agentHome string) []eventlog.Event {
	t.Helper()
	reader := eventlog.NewReader(eventlog.Path(agentHome))
	var events []eventlog.Event
	if err := reader.Stream(false, func(e eventlog.Event) error {
		events = append(events, e)
		return nil
	}); err != nil {
		t.Fatalf("stream events: %v", err)
	}
	return events
}

func eventNames(events []eventlog.Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.EventName
	}
	return names
}
