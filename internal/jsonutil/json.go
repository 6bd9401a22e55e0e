// Package jsonutil provides small JSON helpers shared across MACF packages.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeNoEscape marshals v to JSON without HTML-escaping (so '<', '>',
// '&' survive unchanged in breadcrumb strings, tool payloads, etc.) and
// without a trailing newline.
func EncodeNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("jsonutil: encode: %w", err)
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// DecodeLine decodes a single JSON object from a line. It never panics on
// malformed input — callers use the returned error to decide whether to
// skip the line (event log readers must tolerate partial/garbage tail
// lines per spec §4.C).
func DecodeLine(line []byte, v any) error {
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("jsonutil: decode line: %w", err)
	}
	return nil
}
