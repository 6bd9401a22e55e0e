// Package secrets scans tool-call payloads for likely credentials before
// they are written into the forensic event log, so a pre_tool_use/
// post_tool_use `data` blob never becomes a durable leak of an API key or
// token pasted into a tool argument. Adapted from the teacher's
// redact.go: same two-method detection (Shannon entropy over candidate
// substrings, plus gitleaks pattern matching), retargeted from
// whole-transcript redaction to the event log's narrower Data/HookInput
// map shape.
package secrets

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// candidatePattern matches alphanumeric-ish runs long enough to plausibly
// be a secret; each candidate is then entropy-scored.
var candidatePattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// EntropyThreshold is the minimum Shannon entropy (bits/char) for a
// candidate substring to be treated as a likely secret. 4.5 mirrors the
// teacher's own tuned value: high enough to spare ordinary identifiers,
// low enough to catch typical API keys and tokens.
const EntropyThreshold = 4.5

// Redacted is the placeholder substituted for a detected secret region.
const Redacted = "REDACTED"

var (
	detectorOnce sync.Once
	detector     *detect.Detector
)

func sharedDetector() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

type region struct{ start, end int }

// ScanString finds every entropy-flagged or gitleaks-flagged substring of
// s and replaces each with Redacted, merging overlapping regions. Returns
// s unchanged if nothing was flagged.
func ScanString(s string) string {
	var regions []region

	for _, loc := range candidatePattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > EntropyThreshold {
			regions = append(regions, region{loc[0], loc[1]})
		}
	}

	if d := sharedDetector(); d != nil {
		for _, f := range d.DetectString(s) {
			if f.Secret == "" {
				continue
			}
			from := 0
			for {
				idx := strings.Index(s[from:], f.Secret)
				if idx < 0 {
					break
				}
				abs := from + idx
				regions = append(regions, region{abs, abs + len(f.Secret)})
				from = abs + len(f.Secret)
			}
		}
	}

	if len(regions) == 0 {
		return s
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].start < regions[j].start })
	merged := []region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}

	var b strings.Builder
	prev := 0
	for _, r := range merged {
		b.WriteString(s[prev:r.start])
		b.WriteString(Redacted)
		prev = r.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// ScanValue walks a decoded JSON value (as produced by encoding/json into
// map[string]any / []any / string / ...) and returns a deep copy with
// every flagged string replaced, skipping the same fields the teacher's
// JSONL redaction skips: exact key "signature", any key ending in
// "id"/"ids" (session/tool/grant identifiers, which are identifiers, not
// secrets, and must survive unredacted for forensic correlation), and any
// object whose "type" field starts with "image" or equals "base64".
func ScanValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if shouldSkipObject(val) {
			return val
		}
		out := make(map[string]any, len(val))
		for k, child := range val {
			if shouldSkipField(k) {
				out[k] = child
				continue
			}
			out[k] = ScanValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = ScanValue(child)
		}
		return out
	case string:
		return ScanString(val)
	default:
		return v
	}
}

func shouldSkipField(key string) bool {
	if key == "signature" {
		return true
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, "id") || strings.HasSuffix(lower, "ids")
}

func shouldSkipObject(obj map[string]any) bool {
	t, ok := obj["type"].(string)
	return ok && (strings.HasPrefix(t, "image") || t == "base64")
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
