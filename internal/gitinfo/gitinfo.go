// Package gitinfo resolves the current git commit short-hash, preferring
// the git binary (fast, matches teacher convention) and falling back to
// go-git when the binary is unavailable, so breadcrumb composition never
// hard-fails just because git isn't on PATH.
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// ShortHashLen is the length of the git component in a breadcrumb (spec
// §3): 7 hex characters, matching `git rev-parse --short HEAD`'s default.
const ShortHashLen = 7

// CommandTimeout bounds how long the git subprocess may run before
// breadcrumb composition falls back to go-git.
const CommandTimeout = 250 * time.Millisecond

// ShortHead returns the short commit hash of HEAD in dir, or "unknown" if
// dir is not inside a git repository. Tries the git binary first; falls
// back to go-git if the binary is missing or errors.
func ShortHead(dir string) string {
	if h, err := shortHeadViaBinary(dir); err == nil {
		return h
	}
	if h, err := shortHeadViaGoGit(dir); err == nil {
		return h
	}
	return "unknown"
}

func shortHeadViaBinary(dir string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--short="+fmt.Sprint(ShortHashLen), "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gitinfo: git rev-parse: %w", err)
	}
	hash := strings.TrimSpace(string(out))
	if len(hash) < ShortHashLen {
		return "", fmt.Errorf("gitinfo: short hash too short: %q", hash)
	}
	return hash[:ShortHashLen], nil
}

func shortHeadViaGoGit(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("gitinfo: go-git open: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("gitinfo: go-git head: %w", err)
	}
	full := head.Hash().String()
	if len(full) < ShortHashLen {
		return "", fmt.Errorf("gitinfo: hash too short: %q", full)
	}
	return full[:ShortHashLen], nil
}
