// Package validation provides input validation functions shared across
// MACF. This package has no internal dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafeRegex matches alphanumeric characters, underscores, and hyphens
// only. Used to validate identifiers that end up in file paths.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// hex8Regex matches an 8-character lowercase hex string (breadcrumb session
// component).
var hex8Regex = regexp.MustCompile(`^[0-9a-f]{8}$`)

// hex7Regex matches a 7-character lowercase hex string (breadcrumb git
// component).
var hex7Regex = regexp.MustCompile(`^[0-9a-f]{7}$`)

// ValidateSessionID validates that a session ID doesn't contain path
// separators, preventing path traversal when it is used to name files
// (event log paths, log files, search index shards).
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid session ID %q: contains path separators", id)
	}
	return nil
}

// ValidateToolUseID validates that a tool use ID contains only path-safe
// characters. Empty is allowed (optional field).
func ValidateToolUseID(id string) error {
	if id == "" {
		return nil
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid tool use ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}

// ValidateHex8 validates an 8-character lowercase hex string, used for the
// breadcrumb session and prompt components.
func ValidateHex8(s string) error {
	if !hex8Regex.MatchString(s) {
		return fmt.Errorf("invalid hex8 component %q", s)
	}
	return nil
}

// ValidateHex7 validates a 7-character lowercase hex string, used for the
// breadcrumb git component.
func ValidateHex7(s string) error {
	if !hex7Regex.MatchString(s) {
		return fmt.Errorf("invalid hex7 component %q", s)
	}
	return nil
}
