package sessionstart

import (
	"os"
	"path/filepath"
	"sort"
)

// ArtifactKind names the three artifact directories searched during
// recovery composition (spec §4.F step 3).
type ArtifactKind string

const (
	KindCheckpoints ArtifactKind = "checkpoints"
	KindReflections ArtifactKind = "reflections"
	KindRoadmaps    ArtifactKind = "roadmaps"
)

// Visibility selects the private or public artifact tree (spec §6
// on-disk layout: {agent_home}/agent/{private|public}/{kind}/...).
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Latest lists {agentHome}/agent/{visibility}/{kind}/ and returns the
// lexicographically greatest filename (the YYYY-MM-DD_HHMMSS timestamp
// prefix makes lexicographic order equivalent to newest-first). A missing
// directory or zero matches return ("", false) — never an error, per spec
// §4.F step 3.
func Latest(agentHome string, visibility Visibility, kind ArtifactKind) (string, bool) {
	dir := filepath.Join(agentHome, "agent", string(visibility), string(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), true
}
