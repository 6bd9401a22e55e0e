package cli

import (
	"testing"

	"github.com/maceff/macf/internal/drive"
	"github.com/maceff/macf/internal/eventlog"
	"github.com/maceff/macf/internal/grant"
	"github.com/maceff/macf/internal/hookio"
)

// TestHookDispatchScenario1_ColdStart drives spec §8 scenario 1: a
// session_start with no prior log classifies as startup, cycle 1, a
// single session_started event, and a Shape S banner.
func TestHookDispatchScenario1_ColdStart(t *testing.T) {
	agentHome := withAgentHome(t)

	out := runHookCapture(t, hookio.EventSessionStart, handleSessionStart, map[string]any{
		"session_id": "S1",
		"source":     "startup",
	})

	if !out.Continue {
		t.Fatalf("expected continue:true, got %+v", out)
	}
	if out.HookSpecificOutput != nil {
		t.Fatalf("session_start is Shape S, got hookSpecificOutput: %+v", out.HookSpecificOutput)
	}
	if out.SystemMessage == "" {
		t.Fatalf("expected a non-empty banner systemMessage")
	}

	events := readEvents(t, agentHome)
	if names := eventNames(events); len(names) != 1 || names[0] != "session_started" {
		t.Fatalf("expected exactly one session_started event, got %v", names)
	}
	c, err := events[0].BreadcrumbComponents()
	if err != nil {
		t.Fatalf("breadcrumb components: %v", err)
	}
	if c.Cycle != 1 {
		t.Fatalf("expected cycle 1, got %d", c.Cycle)
	}
}

// TestHookDispatchScenario2And3_CompactThenMigration drives spec §8
// scenarios 2 and 3 back to back, exactly as the spec frames scenario 3's
// precondition ("last observed session_id was S2"): an auto-compact from
// S1 to S2, then a migration from S2 to S3 with no intervening
// compaction.
func TestHookDispatchScenario2And3_CompactThenMigration(t *testing.T) {
	agentHome := withAgentHome(t)

	runHookCapture(t, hookio.EventSessionStart, handleSessionStart, map[string]any{
		"session_id": "S1",
		"source":     "startup",
	})

	out2 := runHookCapture(t, hookio.EventSessionStart, handleSessionStart, map[string]any{
		"session_id": "S2",
		"source":     "compact",
	})
	if !out2.Continue || out2.HookSpecificOutput != nil {
		t.Fatalf("scenario 2: unexpected output shape: %+v", out2)
	}
	if out2.SystemMessage == "" {
		t.Fatalf("scenario 2: expected a recovery systemMessage")
	}

	names := eventNames(readEvents(t, agentHome))
	if len(names) != 3 || names[0] != "session_started" || names[1] != "compaction_detected" || names[2] != "session_started" {
		t.Fatalf("scenario 2: expected [session_started, compaction_detected, session_started], got %v", names)
	}

	events := readEvents(t, agentHome)
	compactComponents, err := events[1].BreadcrumbComponents()
	if err != nil {
		t.Fatalf("breadcrumb components: %v", err)
	}
	if compactComponents.Cycle != 2 {
		t.Fatalf("scenario 2: expected compaction_detected cycle 2, got %d", compactComponents.Cycle)
	}

	out3 := runHookCapture(t, hookio.EventSessionStart, handleSessionStart, map[string]any{
		"session_id": "S3",
		"source":     "resume",
	})
	if !out3.Continue || out3.HookSpecificOutput != nil {
		t.Fatalf("scenario 3: unexpected output shape: %+v", out3)
	}
	if out3.SystemMessage == "" {
		t.Fatalf("scenario 3: expected a calm recovery systemMessage")
	}

	events = readEvents(t, agentHome)
	last := events[len(events)-1]
	if last.EventName != "migration_detected" {
		t.Fatalf("scenario 3: expected trailing migration_detected, got %s", last.EventName)
	}
	if prev, _ := last.Data["previous_session_id"].(string); prev != "S2" {
		t.Fatalf("scenario 3: expected previous_session_id S2, got %q", prev)
	}
	c, err := last.BreadcrumbComponents()
	if err != nil {
		t.Fatalf("breadcrumb components: %v", err)
	}
	if c.Cycle != 2 {
		t.Fatalf("scenario 3: expected cycle unchanged at 2, got %d", c.Cycle)
	}
}

// TestHookDispatchScenario4_DevDriveHappyPath drives spec §8 scenario 4,
// and is the regression test for the closeDrive prompt-component bug:
// without stamping *_ended with the same digested prompt component its
// *_started event carries, drive.Stats would report the interval as
// still open forever.
func TestHookDispatchScenario4_DevDriveHappyPath(t *testing.T) {
	agentHome := withAgentHome(t)

	outStart := runHookCapture(t, hookio.EventUserPromptSubmit, handleUserPromptSubmit, map[string]any{
		"session_id":  "S3",
		"prompt":      "please refactor the reconciler for clarity",
		"prompt_uuid": "P1",
	})
	if outStart.HookSpecificOutput == nil || outStart.HookSpecificOutput.HookEventName != "UserPromptSubmit" {
		t.Fatalf("expected a UserPromptSubmit hookSpecificOutput, got %+v", outStart)
	}

	outStop := runHookCapture(t, hookio.EventStop, handleStop, map[string]any{
		"session_id": "S3",
	})
	if !outStop.Continue || outStop.HookSpecificOutput != nil {
		t.Fatalf("stop: unexpected output shape: %+v", outStop)
	}

	names := eventNames(readEvents(t, agentHome))
	if len(names) != 2 || names[0] != "dev_drv_started" || names[1] != "dev_drv_ended" {
		t.Fatalf("expected [dev_drv_started, dev_drv_ended], got %v", names)
	}

	reader := eventlog.NewReader(eventlog.Path(agentHome))
	stats, err := drive.Stats(reader, drive.KindDev, "S3")
	if err != nil {
		t.Fatalf("drive.Stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected exactly one paired interval, got %d: %+v", len(stats), stats)
	}
	if stats[0].Open {
		t.Fatalf("expected the interval to be closed (paired), got open: %+v", stats[0])
	}
	if stats[0].DurationSeconds < 0 {
		t.Fatalf("expected duration_seconds >= 0, got %f", stats[0].DurationSeconds)
	}
	if drive.OpenCount(stats) != 0 {
		t.Fatalf("expected zero open intervals after stop, got %d", drive.OpenCount(stats))
	}
	if outStop.SystemMessage != "" {
		t.Fatalf("expected no open-interval warning once paired, got %q", outStop.SystemMessage)
	}
}

// TestHookDispatchScenario5_GrantFlow drives spec §8 scenario 5: a grant
// authorizes exactly one matching gated call, then transitions to
// consumed and no longer authorizes a second identical call.
func TestHookDispatchScenario5_GrantFlow(t *testing.T) {
	agentHome := withAgentHome(t)

	rt, err := newRuntime()
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	grantID := grant.NewGrantID()
	if err := appendEvent(rt, newEvent(rt, "grant_issued", "S3", "", map[string]any{
		"grant_id":   grantID,
		"target_set": []string{"task-delete"},
		"reason":     "scenario 5 seed",
	})); err != nil {
		t.Fatalf("seed grant_issued: %v", err)
	}

	allowOut := runHookCapture(t, hookio.EventPreToolUse, handlePreToolUse, map[string]any{
		"session_id": "S3",
		"tool_name":  "task-delete",
		"tool_input": map[string]any{"id": 42},
	})
	if allowOut.HookSpecificOutput == nil || allowOut.HookSpecificOutput.PermissionDecision != hookio.PermissionAllow {
		t.Fatalf("expected allow on first call, got %+v", allowOut)
	}

	foundConsumed := false
	for _, n := range eventNames(readEvents(t, agentHome)) {
		if n == "grant_consumed" {
			foundConsumed = true
		}
	}
	if !foundConsumed {
		t.Fatalf("expected a grant_consumed event after the first call")
	}

	denyOut := runHookCapture(t, hookio.EventPreToolUse, handlePreToolUse, map[string]any{
		"session_id": "S3",
		"tool_name":  "task-delete",
		"tool_input": map[string]any{"id": 42},
	})
	if denyOut.HookSpecificOutput == nil || denyOut.HookSpecificOutput.PermissionDecision != hookio.PermissionDeny {
		t.Fatalf("expected deny on the second, already-consumed call, got %+v", denyOut)
	}
	if denyOut.HookSpecificOutput.PermissionDecisionReason == "" {
		t.Fatalf("expected a non-empty permissionDecisionReason on deny")
	}
}
