package cli

import (
	"encoding/json"
	"testing"

	"github.com/maceff/macf/internal/hookio"
)

// TestEmitOutputDowngradesSchemaViolation exercises spec §4.E's schema
// discipline: a handler that (by construction error, not by the helpers)
// returns hookSpecificOutput on a Shape-S-only event must never reach the
// host as an invalid payload. emitOutput must catch the violation, log a
// schema_violation event, and still write a valid, empty Shape S output.
func TestEmitOutputDowngradesSchemaViolation(t *testing.T) {
	agentHome := withAgentHome(t)

	rt, err := newRuntime()
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}

	invalid := hookio.Output{
		Continue: true,
		HookSpecificOutput: &hookio.HookSpecificOutput{
			HookEventName: "Stop",
		},
	}

	raw := captureStdout(t, func() {
		if err := emitOutput(rt, hookio.EventStop, invalid); err != nil {
			t.Fatalf("emitOutput: %v", err)
		}
	})

	var out hookio.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode downgraded stdout %q: %v", raw, err)
	}
	if !out.Continue {
		t.Fatalf("expected continue:true even on downgrade, got %+v", out)
	}
	if out.HookSpecificOutput != nil {
		t.Fatalf("expected the downgraded output to drop hookSpecificOutput, got %+v", out)
	}
	if out.SystemMessage != "" {
		t.Fatalf("expected an empty systemMessage on downgrade, got %q", out.SystemMessage)
	}

	names := eventNames(readEvents(t, agentHome))
	found := false
	for _, n := range names {
		if n == "schema_violation" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a schema_violation event to be logged, got %v", names)
	}
}

// TestEmitOutputPassesValidShapeP confirms emitOutput doesn't interfere
// with a correctly shaped Shape P output — the non-error path for the
// events that are allowed hookSpecificOutput.
func TestEmitOutputPassesValidShapeP(t *testing.T) {
	withAgentHome(t)

	rt, err := newRuntime()
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}

	valid, err := hookio.NewShapeP(hookio.EventPreToolUse, true, "", hookio.PermissionAllow, "")
	if err != nil {
		t.Fatalf("NewShapeP: %v", err)
	}

	raw := captureStdout(t, func() {
		if err := emitOutput(rt, hookio.EventPreToolUse, valid); err != nil {
			t.Fatalf("emitOutput: %v", err)
		}
	})

	var out hookio.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode stdout %q: %v", raw, err)
	}
	if out.HookSpecificOutput == nil || out.HookSpecificOutput.PermissionDecision != hookio.PermissionAllow {
		t.Fatalf("expected the valid Shape P output to pass through unchanged, got %+v", out)
	}
}
