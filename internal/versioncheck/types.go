package versioncheck

import "time"

// Cache is the on-disk record of when macf last checked for a newer
// release.
type Cache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

// GitHubRelease is the subset of GitHub's release API response this
// package needs.
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// githubAPIURL is a var, not a const, so tests can point it at a
// httptest.Server.
var githubAPIURL = "https://api.github.com/repos/maceff/macf/releases/latest"

const (
	checkInterval = 24 * time.Hour
	httpTimeout   = 2 * time.Second
	cacheFileName = "version_check.json"

	// globalConfigDirName lives under the user's home directory, not an
	// agent home — the check is a CLI-wide courtesy, not per-agent state.
	globalConfigDirName = ".config/macf"
)
