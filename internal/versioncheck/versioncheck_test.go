package versioncheck

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestIsOutdated(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
		desc            string
	}{
		{"1.0.0", "1.0.1", true, "patch version bump"},
		{"1.0.0", "1.1.0", true, "minor version bump"},
		{"1.0.0", "2.0.0", true, "major version bump"},
		{"1.0.1", "1.0.0", false, "current is newer"},
		{"1.0.0", "1.0.0", false, "same version"},
		{"v1.0.0", "v1.0.1", true, "with v prefix"},
		{"1.0.0", "v1.0.1", true, "mixed v prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := isOutdated(tt.current, tt.latest); got != tt.want {
				t.Errorf("isOutdated(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func setupCheckAndNotifyTest(t *testing.T, serverURL string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	orig := githubAPIURL
	githubAPIURL = serverURL
	t.Cleanup(func() { githubAPIURL = orig })

	var buf bytes.Buffer
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func newVersionServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GitHubRelease{TagName: version})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckAndNotifySkipsHiddenCommand(t *testing.T) {
	server := newVersionServer(t, "v9.9.9")
	cmd, buf := setupCheckAndNotifyTest(t, server.URL)
	cmd.Hidden = true

	CheckAndNotify(cmd, "1.0.0")

	if buf.Len() != 0 {
		t.Errorf("expected no output for a hidden command, got %q", buf.String())
	}
}

func TestCheckAndNotifySkipsDevVersion(t *testing.T) {
	server := newVersionServer(t, "v9.9.9")
	cmd, buf := setupCheckAndNotifyTest(t, server.URL)

	CheckAndNotify(cmd, "dev")

	if buf.Len() != 0 {
		t.Errorf("expected no output for a dev version, got %q", buf.String())
	}
}

func TestCheckAndNotifySkipsFreshCache(t *testing.T) {
	server := newVersionServer(t, "v9.9.9")
	cmd, buf := setupCheckAndNotifyTest(t, server.URL)

	if err := ensureGlobalConfigDir(); err != nil {
		t.Fatalf("ensureGlobalConfigDir: %v", err)
	}
	if err := saveCache(&Cache{LastCheckTime: time.Now()}); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	CheckAndNotify(cmd, "1.0.0")

	if buf.Len() != 0 {
		t.Errorf("expected no output when the cache is fresh, got %q", buf.String())
	}
}

func TestCheckAndNotifyPrintsWhenOutdated(t *testing.T) {
	server := newVersionServer(t, "v2.0.0")
	cmd, buf := setupCheckAndNotifyTest(t, server.URL)

	CheckAndNotify(cmd, "1.0.0")

	out := buf.String()
	if !strings.Contains(out, "v2.0.0") || !strings.Contains(out, "1.0.0") {
		t.Errorf("expected a notification naming both versions, got %q", out)
	}
}

func TestCheckAndNotifySilentWhenUpToDate(t *testing.T) {
	server := newVersionServer(t, "v1.0.0")
	cmd, buf := setupCheckAndNotifyTest(t, server.URL)

	CheckAndNotify(cmd, "1.0.0")

	if buf.Len() != 0 {
		t.Errorf("expected no output when already up to date, got %q", buf.String())
	}
}

func TestCheckAndNotifyFetchFailureIsSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	cmd, buf := setupCheckAndNotifyTest(t, server.URL)

	CheckAndNotify(cmd, "1.0.0")

	if buf.Len() != 0 {
		t.Errorf("expected no output on fetch failure, got %q", buf.String())
	}
}
