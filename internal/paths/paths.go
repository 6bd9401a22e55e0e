// Package paths implements the PathResolver (spec §4.A): deterministic
// resolution of MACF's three independent roots — framework root, project
// root, and agent home — each from an env var, a marker-based walk-up, and
// a terminal fallback. Grounded on the teacher's cached git-root resolver
// (entire-cli's cmd/entire/cli/paths.RepoRoot), generalized from one
// resolver to three, each independently cached and independently
// dedup-warned so the roots are never silently confused.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maceff/macf/internal/macferr"
)

// Root identifies which of the three independent roots is being resolved.
type Root string

const (
	RootFramework Root = "framework"
	RootProject   Root = "project"
	RootAgentHome Root = "agent_home"
)

// Env vars, one per root, winning over any marker search.
const (
	EnvFrameworkRoot = "MACEFF_ROOT_DIR"
	EnvProjectRoot   = "CLAUDE_PROJECT_DIR"
	EnvAgentHome     = "MACEFF_AGENT_HOME_DIR"
)

// FrameworkMarkerSubtree is the directory subtree that identifies a
// framework root candidate while walking up.
const FrameworkMarkerSubtree = "framework/policies"

// ProjectMarkerDir identifies a project root candidate while walking up.
const ProjectMarkerDir = ".claude"

// AgentHomeMarkerDir identifies an agent home candidate while walking up.
const AgentHomeMarkerDir = ".maceff"

// FrameworkTerminalFallback is used when no env var or marker resolves the
// framework root.
const FrameworkTerminalFallback = "/opt/maceff"

type cacheEntry struct {
	path string
	dir  string // cwd the resolution was computed for
}

var (
	mu    sync.RWMutex
	cache = map[Root]cacheEntry{}

	warnMu  sync.Mutex
	warned  = map[[2]string]bool{} // (root, reason) -> already warned this process
	warnOut = os.Stderr
)

// warnOnce emits a fallback warning to stderr at most once per (root,
// reason) pair for the lifetime of the process, per spec §4.A.
func warnOnce(root Root, reason, detail string) {
	key := [2]string{string(root), reason}
	warnMu.Lock()
	defer warnMu.Unlock()
	if warned[key] {
		return
	}
	warned[key] = true
	fmt.Fprintf(warnOut, "[macf] warning: %s root resolution fell back (%s): %s\n", root, reason, detail)
}

// ResetWarnings clears the per-process warning dedup set. Test-only.
func ResetWarnings() {
	warnMu.Lock()
	defer warnMu.Unlock()
	warned = map[[2]string]bool{}
}

// ResetCache clears all cached root resolutions. Test-only.
func ResetCache() {
	mu.Lock()
	defer mu.Unlock()
	cache = map[Root]cacheEntry{}
}

func cached(root Root, cwd string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := cache[root]
	if ok && e.dir == cwd {
		return e.path, true
	}
	return "", false
}

func setCached(root Root, cwd, path string) {
	mu.Lock()
	defer mu.Unlock()
	cache[root] = cacheEntry{path: path, dir: cwd}
}

// walkUpFor walks from start upward looking for a directory containing
// marker (relative subtree). Returns the ancestor directory containing it,
// or "" if none found before the filesystem root.
func walkUpFor(start, marker string) string {
	dir := start
	for {
		candidate := filepath.Join(dir, marker)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func existingAbs(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return abs, true
}

// FrameworkRoot resolves the framework root: MACEFF_ROOT_DIR env var wins;
// else walk up from cwd for a "framework/policies" subtree; else
// /opt/maceff if present; else PathUnresolved.
func FrameworkRoot() (string, error) {
	return resolve(RootFramework, func(cwd string) (string, error) {
		if v := os.Getenv(EnvFrameworkRoot); v != "" {
			if abs, ok := existingAbs(v); ok {
				return abs, nil
			}
			return "", fmt.Errorf("%s=%q does not exist", EnvFrameworkRoot, v)
		}
		if dir := walkUpFor(cwd, FrameworkMarkerSubtree); dir != "" {
			return dir, nil
		}
		if abs, ok := existingAbs(FrameworkTerminalFallback); ok {
			warnOnce(RootFramework, "terminal_fallback", abs)
			return abs, nil
		}
		return "", &macferr.PathUnresolved{Root: string(RootFramework), Reason: "no env var, no marker, no /opt/maceff"}
	})
}

// ProjectRoot resolves the project root: CLAUDE_PROJECT_DIR env var wins;
// else walk up from cwd for a ".claude" directory; else cwd (with a
// warning).
func ProjectRoot() (string, error) {
	return resolve(RootProject, func(cwd string) (string, error) {
		if v := os.Getenv(EnvProjectRoot); v != "" {
			if abs, ok := existingAbs(v); ok {
				return abs, nil
			}
			return "", fmt.Errorf("%s=%q does not exist", EnvProjectRoot, v)
		}
		if dir := walkUpFor(cwd, ProjectMarkerDir); dir != "" {
			return dir, nil
		}
		warnOnce(RootProject, "cwd_fallback", cwd)
		return cwd, nil
	})
}

// AgentHome resolves the agent home root: MACEFF_AGENT_HOME_DIR env var
// wins; else walk up from cwd for a ".maceff" directory; else the user
// home directory (with a warning).
func AgentHome() (string, error) {
	return resolve(RootAgentHome, func(cwd string) (string, error) {
		if v := os.Getenv(EnvAgentHome); v != "" {
			if abs, ok := existingAbs(v); ok {
				return abs, nil
			}
			return "", fmt.Errorf("%s=%q does not exist", EnvAgentHome, v)
		}
		if dir := walkUpFor(cwd, AgentHomeMarkerDir); dir != "" {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", &macferr.PathUnresolved{Root: string(RootAgentHome), Reason: "no env var, no marker, no home dir: " + err.Error()}
		}
		warnOnce(RootAgentHome, "home_dir_fallback", home)
		return home, nil
	})
}

// resolve is the common cache-then-compute shell for all three roots.
func resolve(root Root, compute func(cwd string) (string, error)) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	if p, ok := cached(root, cwd); ok {
		return p, nil
	}

	p, err := compute(cwd)
	if err != nil {
		if _, isUnresolved := err.(*macferr.PathUnresolved); isUnresolved {
			return "", err
		}
		return "", &macferr.PathUnresolved{Root: string(root), Reason: err.Error()}
	}

	setCached(root, cwd, p)
	return p, nil
}
