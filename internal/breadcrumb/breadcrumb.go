// Package breadcrumb implements the forensic breadcrumb tuple (spec §3,
// §4.B): a compact, greppable identity string stamped on every event log
// entry and every hook output, of the form
//
//	s_<8hex>/c_<int>/g_<7hex|unknown>/p_<8hex|none>/t_<int>
//
// composing session id, consciousness cycle, current git commit, active
// prompt id, and unix epoch seconds. Parsing is strict: any malformed
// component rejects the whole breadcrumb rather than partially parsing it,
// per spec §4.B's "no partial parse" invariant.
package breadcrumb

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maceff/macf/internal/gitinfo"
	"github.com/maceff/macf/internal/validation"
)

// NoPrompt is the sentinel value for an absent prompt component.
const NoPrompt = "none"

// UnknownGit is the sentinel value for a git component outside any repo.
const UnknownGit = "unknown"

// gitTTL bounds how long a resolved git short-hash is reused before
// re-resolving, so a breadcrumb composed mid-session reflects a commit
// made seconds ago without re-shelling out on every single call.
const gitTTL = 1 * time.Second

var breadcrumbRegex = regexp.MustCompile(
	`^s_([0-9a-f]{8})/c_(\d+)/g_([0-9a-f]{7}|unknown)/p_([0-9a-f]{8}|none)/t_(\d+)$`,
)

// Components holds the five parsed (or to-be-formatted) fields of a
// breadcrumb.
type Components struct {
	Session string // 8 hex chars
	Cycle   int
	Git     string // 7 hex chars, or "unknown"
	Prompt  string // 8 hex chars, or "none"
	Epoch   int64
}

// String formats Components back into the canonical breadcrumb string.
func (c Components) String() string {
	return fmt.Sprintf("s_%s/c_%d/g_%s/p_%s/t_%d", c.Session, c.Cycle, c.Git, c.Prompt, c.Epoch)
}

// Validate checks that each field conforms to its component grammar,
// independent of whether the struct came from Parse or was built by hand.
func (c Components) Validate() error {
	if err := validation.ValidateHex8(c.Session); err != nil {
		return fmt.Errorf("breadcrumb: session component: %w", err)
	}
	if c.Cycle < 0 {
		return fmt.Errorf("breadcrumb: cycle component: negative cycle %d", c.Cycle)
	}
	if c.Git != UnknownGit {
		if err := validation.ValidateHex7(c.Git); err != nil {
			return fmt.Errorf("breadcrumb: git component: %w", err)
		}
	}
	if c.Prompt != NoPrompt {
		if err := validation.ValidateHex8(c.Prompt); err != nil {
			return fmt.Errorf("breadcrumb: prompt component: %w", err)
		}
	}
	if c.Epoch < 0 {
		return fmt.Errorf("breadcrumb: epoch component: negative epoch %d", c.Epoch)
	}
	return nil
}

// Parse strictly parses a breadcrumb string. Any deviation from the exact
// grammar — wrong segment count, wrong hex length, extra whitespace —
// rejects the whole string; there is no partial/best-effort mode.
func Parse(s string) (Components, error) {
	s = strings.TrimSpace(s)
	m := breadcrumbRegex.FindStringSubmatch(s)
	if m == nil {
		return Components{}, fmt.Errorf("breadcrumb: malformed breadcrumb %q", s)
	}

	cycle, err := strconv.Atoi(m[2])
	if err != nil {
		return Components{}, fmt.Errorf("breadcrumb: invalid cycle in %q: %w", s, err)
	}
	epoch, err := strconv.ParseInt(m[5], 10, 64)
	if err != nil {
		return Components{}, fmt.Errorf("breadcrumb: invalid epoch in %q: %w", s, err)
	}

	return Components{
		Session: m[1],
		Cycle:   cycle,
		Git:     m[3],
		Prompt:  m[4],
		Epoch:   epoch,
	}, nil
}

var (
	gitMu        sync.Mutex
	gitCache     string
	gitCacheDir  string
	gitCacheTime time.Time
)

// cachedGitHead returns gitinfo.ShortHead(dir), reusing the last result
// for the same dir within gitTTL to keep breadcrumb composition on the
// hot path (spec §4.E latency budgets).
func cachedGitHead(dir string) string {
	gitMu.Lock()
	defer gitMu.Unlock()

	now := time.Now()
	if gitCacheDir == dir && now.Sub(gitCacheTime) < gitTTL {
		return gitCache
	}

	h := gitinfo.ShortHead(dir)
	gitCache = h
	gitCacheDir = dir
	gitCacheTime = now
	return h
}

// ResetCache clears the cached git head. Test-only.
func ResetCache() {
	gitMu.Lock()
	defer gitMu.Unlock()
	gitCache = ""
	gitCacheDir = ""
	gitCacheTime = time.Time{}
}

// hashHex8 digests an arbitrary identifier (a host session_id or
// prompt_uuid, typically a UUID or other non-hex string) down to the
// breadcrumb grammar's 8-hex-char component. The identifier tuple (spec
// §3) keeps the full host string as the authoritative session_id; this
// truncated digest is only the breadcrumb's compact coordinate, not an
// identity key — collisions are acceptable since the breadcrumb is a
// forensic hint, not a lookup key; the full reconciled tuple is.
func hashHex8(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// SessionComponent exports hashHex8 for callers that need to compare a
// full session_id against a breadcrumb's already-stamped "s_" component
// (e.g. the Drive Tracker filtering events by session) without
// recomposing a whole breadcrumb.
func SessionComponent(session string) string { return hashHex8(session) }

// PromptComponent is SessionComponent's counterpart for the "p_"
// component; an empty or NoPrompt input maps to NoPrompt.
func PromptComponent(prompt string) string {
	if prompt == "" || prompt == NoPrompt {
		return NoPrompt
	}
	return hashHex8(prompt)
}

// Current composes a breadcrumb for the given session, cycle, and prompt
// (prompt may be "" to mean NoPrompt), resolving the git component from
// workDir through the 1s TTL cache and stamping the current epoch second.
// session and prompt are the full host-provided identifiers; they are
// digested to the breadcrumb's 8-hex component internally.
func Current(session string, cycle int, prompt string, workDir string) (string, error) {
	if session == "" {
		return "", fmt.Errorf("breadcrumb: session is empty")
	}
	if err := validation.ValidateSessionID(session); err != nil {
		return "", fmt.Errorf("breadcrumb: session: %w", err)
	}

	promptHex := NoPrompt
	if prompt != "" && prompt != NoPrompt {
		promptHex = hashHex8(prompt)
	}

	c := Components{
		Session: hashHex8(session),
		Cycle:   cycle,
		Git:     cachedGitHead(workDir),
		Prompt:  promptHex,
		Epoch:   time.Now().Unix(),
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.String(), nil
}

// CurrentWithPromptComponent is Current's counterpart for a caller that
// already holds a breadcrumb-shaped prompt component (an 8-hex digest, or
// NoPrompt) instead of a raw prompt_uuid — e.g. the Identifier
// Reconciler's pairing logic, which only ever recovers the digested
// component from prior breadcrumbs, never the original string. Hashing
// that value again through Current would stamp a different digest than
// the one the matching started event carries, so this composes the
// breadcrumb with the component as-is.
func CurrentWithPromptComponent(session string, cycle int, promptComponent string, workDir string) (string, error) {
	if session == "" {
		return "", fmt.Errorf("breadcrumb: session is empty")
	}
	if err := validation.ValidateSessionID(session); err != nil {
		return "", fmt.Errorf("breadcrumb: session: %w", err)
	}
	if promptComponent == "" {
		promptComponent = NoPrompt
	}

	c := Components{
		Session: hashHex8(session),
		Cycle:   cycle,
		Git:     cachedGitHead(workDir),
		Prompt:  promptComponent,
		Epoch:   time.Now().Unix(),
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.String(), nil
}
