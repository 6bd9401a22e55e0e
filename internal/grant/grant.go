// Package grant implements the Grant-Gated Mutation Gate (spec §4.I):
// destructive tool calls require a prior, exactly-matching grant_issued
// event that has not yet been consumed or cleared. Grant lifetime is not
// time-based — grants live in the event log until explicitly consumed or
// cleared.
package grant

import (
	"sort"

	"github.com/google/uuid"

	"github.com/maceff/macf/internal/eventlog"
)

// GatedTools is the fixed table of tool names (or tool+field combinations,
// encoded as "tool_name" or "tool_name.field") that require a grant before
// pre_tool_use allows them. Matching entire-cli's own approach of a
// compile-time table rather than a configurable policy file — MACF's
// gated set is small and security-sensitive enough to not want runtime
// reconfiguration.
var GatedTools = map[string]bool{
	"task-delete":            true,
	"task-update.protected":  true,
	"todo-collapse":          true,
}

// IsGated reports whether a tool call (identified by toolName, and
// touchedField when the gating is field-scoped) requires a grant.
func IsGated(toolName, touchedField string) bool {
	if GatedTools[toolName] {
		return true
	}
	if touchedField != "" && GatedTools[toolName+"."+touchedField] {
		return true
	}
	return false
}

// Canonicalize sorts and deduplicates a target set so that set equality
// (spec §4.I: "Exact set equality — supersets or subsets do not
// authorize") reduces to a simple slice comparison.
func Canonicalize(targets []string) []string {
	if len(targets) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Grant is the in-memory view of one grant_issued event plus its
// consumption state, derived from the log — never itself a persisted
// struct (spec §3).
type Grant struct {
	ID        string
	TargetSet []string // canonicalized
	Reason    string
	GrantedAt float64
	Consumed  bool
	Cleared   bool
}

// Active returns the grants that are neither consumed nor cleared, i.e.
// the set eligible to authorize a pre_tool_use call, scanning the whole
// log (spec §4.I: "the 'active' grant set is the set of grant_issued with
// no matching grant_consumed or grant_cleared").
func Active(reader *eventlog.Reader) ([]Grant, error) {
	byID := map[string]*Grant{}
	var order []string

	err := reader.Stream(false, func(e eventlog.Event) error {
		id, _ := e.Data["grant_id"].(string)
		if id == "" {
			return nil
		}
		switch e.EventName {
		case "grant_issued":
			targets := stringSlice(e.Data["target_set"])
			reason, _ := e.Data["reason"].(string)
			byID[id] = &Grant{
				ID:        id,
				TargetSet: Canonicalize(targets),
				Reason:    reason,
				GrantedAt: e.Timestamp,
			}
			order = append(order, id)
		case "grant_consumed":
			if g, ok := byID[id]; ok {
				g.Consumed = true
			}
		case "grant_cleared":
			if g, ok := byID[id]; ok {
				g.Cleared = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []Grant
	for _, id := range order {
		g := byID[id]
		if g != nil && !g.Consumed && !g.Cleared {
			out = append(out, *g)
		}
	}
	return out, nil
}

// FindMatching returns the first active grant whose canonicalized target
// set exactly equals targetSet, or nil if none matches.
func FindMatching(reader *eventlog.Reader, targetSet []string) (*Grant, error) {
	want := Canonicalize(targetSet)
	active, err := Active(reader)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if equalSets(active[i].TargetSet, want) {
			return &active[i], nil
		}
	}
	return nil, nil
}

// NewGrantID generates a fresh grant identifier.
func NewGrantID() string {
	return uuid.NewString()
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
