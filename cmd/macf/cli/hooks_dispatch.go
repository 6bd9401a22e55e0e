package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/maceff/macf/internal/breadcrumb"
	"github.com/maceff/macf/internal/drive"
	"github.com/maceff/macf/internal/eventlog"
	"github.com/maceff/macf/internal/grant"
	"github.com/maceff/macf/internal/hookio"
	"github.com/maceff/macf/internal/logging"
	"github.com/maceff/macf/internal/reconcile"
	"github.com/maceff/macf/internal/secrets"
	"github.com/maceff/macf/internal/sessionstart"
)

func logLevelForOutcome(outcome string) slog.Level {
	if outcome == "budget_exceeded" {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// hookBudgetMS bounds a handler's own work, per event, per spec §4.E's
// latency table: 50ms for every hot-path handler, 150ms for session_start.
var hookBudgetMS = map[hookio.Event]int{
	hookio.EventSessionStart: 150,
}

func budgetFor(event hookio.Event) time.Duration {
	if ms, ok := hookBudgetMS[event]; ok {
		return time.Duration(ms) * time.Millisecond
	}
	return 50 * time.Millisecond
}

// newEvent builds an eventlog.Event stamped with the current breadcrumb for
// sessionID/promptUUID, the common shape every handler appends through.
// promptUUID may be "" (most non-prompt events); sessionID must not be.
func newEvent(rt *runtime, name, sessionID, promptUUID string, data map[string]any) eventlog.Event {
	crumb, err := breadcrumb.Current(sessionID, rt.cycle, promptUUID, rt.agentHome)
	if err != nil {
		// A breadcrumb composition failure (bad session id) must not stop
		// the event from being recorded — stamp an empty breadcrumb rather
		// than drop the event, and surface the reason in Data.
		if data == nil {
			data = map[string]any{}
		}
		data["breadcrumb_error"] = err.Error()
	}
	return eventlog.Event{
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
		EventName:  name,
		Breadcrumb: crumb,
		Data:       data,
	}
}

// newEventPromptComponent is newEvent's counterpart for a caller that
// already holds a breadcrumb-shaped prompt component (see
// breadcrumb.CurrentWithPromptComponent) rather than a raw prompt_uuid —
// used only by closeDrive, which must reuse the exact digest its matching
// *_started event was stamped with.
func newEventPromptComponent(rt *runtime, name, sessionID, promptComponent string, data map[string]any) eventlog.Event {
	crumb, err := breadcrumb.CurrentWithPromptComponent(sessionID, rt.cycle, promptComponent, rt.agentHome)
	if err != nil {
		if data == nil {
			data = map[string]any{}
		}
		data["breadcrumb_error"] = err.Error()
	}
	return eventlog.Event{
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
		EventName:  name,
		Breadcrumb: crumb,
		Data:       data,
	}
}

// appendEvent appends e and tallies it in rt's metrics registry.
func appendEvent(rt *runtime, e eventlog.Event) error {
	if err := rt.writer.Append(e); err != nil {
		return err
	}
	rt.metrics.RecordEventAppended(e.EventName)
	return nil
}

// runHook is the shared shell every hook subcommand runs through: build a
// runtime, decode stdin, dispatch to handler, observe latency, recover from
// panics, and always emit *something* on stdout — a hook handler that dies
// silently leaves the host hanging, which is strictly worse than an empty
// continue:true response (spec §7).
func runHook(event hookio.Event, handler func(rt *runtime, in hookio.Input) (hookio.Output, error)) (err error) {
	start := time.Now()

	rt, rtErr := newRuntime()
	if rtErr != nil {
		fmt.Fprintf(os.Stderr, "macf: %v\n", rtErr)
		return hookio.Encode(os.Stdout, event, fallbackOutput(event))
	}
	defer rt.telemetry.Close()

	defer func() {
		if r := recover(); r != nil {
			rt.metrics.RecordHookOutcome(string(event), "panic")
			_ = appendEvent(rt, newEvent(rt, "hook_error", "", "", map[string]any{
				"hook_event": string(event),
				"panic":      fmt.Sprint(r),
			}))
			err = hookio.Encode(os.Stdout, event, fallbackOutput(event))
		}
	}()

	in, decErr := hookio.DecodeInput(os.Stdin)
	if decErr != nil {
		rt.metrics.RecordHookOutcome(string(event), "error")
		_ = appendEvent(rt, newEvent(rt, "hook_error", "", "", map[string]any{
			"hook_event": string(event),
			"detail":     decErr.Error(),
		}))
		return hookio.Encode(os.Stdout, event, fallbackOutput(event))
	}

	if err := logging.Init(rt.agentHome, in.SessionID); err != nil {
		fmt.Fprintf(os.Stderr, "macf: logging init: %v\n", err)
	}
	defer logging.Close()

	// Cycle is derived fresh from the log on every invocation (spec §4.D):
	// session_start overrides it with its own classification's cycle once
	// that's known, since that's the authoritative source for the one
	// invocation that may be incrementing it.
	tuple, notices, recErr := reconcile.Reconcile(rt.reader, reconcile.HookInput{SessionID: in.SessionID})
	if recErr == nil {
		rt.cycle = tuple.Cycle
		rt.promptComponent = tuple.PromptUUID
	} else {
		rt.cycle = 1
		rt.promptComponent = reconcile.NonePrompt
	}
	for _, n := range notices {
		_ = appendEvent(rt, newEvent(rt, "fallback_used", in.SessionID, "", map[string]any{
			"field":  n.Field,
			"source": string(n.Source),
			"detail": n.Detail,
		}))
	}

	ctx := logging.WithCycle(
		logging.WithHookEvent(
			logging.WithComponent(
				logging.WithSession(context.Background(), in.SessionID),
				"hook_runtime"),
			string(event)),
		rt.cycle)
	logging.Debug(ctx, "hook invocation started")

	out, hErr := handler(rt, in)
	elapsed := time.Since(start)
	rt.metrics.ObserveHookLatency(string(event), elapsed.Seconds())

	if hErr != nil {
		rt.metrics.RecordHookOutcome(string(event), "error")
		logging.Error(ctx, "hook handler failed", "error", hErr.Error())
		_ = appendEvent(rt, newEvent(rt, "hook_error", in.SessionID, "", map[string]any{
			"hook_event": string(event),
			"detail":     hErr.Error(),
		}))
		return hookio.Encode(os.Stdout, event, fallbackOutput(event))
	}

	outcome := "ok"
	if elapsed > budgetFor(event) {
		outcome = "budget_exceeded"
		logging.Warn(ctx, "hook handler exceeded its latency budget", "elapsed_ms", elapsed.Milliseconds())
	}
	rt.metrics.RecordHookOutcome(string(event), outcome)
	logging.LogDuration(ctx, logLevelForOutcome(outcome), "hook invocation finished", start)
	rt.telemetry.TrackHookEvent(string(event), "")

	return emitOutput(rt, event, out)
}

// fallbackOutput is the minimal always-valid output for event: continue,
// say nothing further. Used whenever something upstream of a handler's own
// logic goes wrong, so the host is never left waiting on a dead process.
func fallbackOutput(event hookio.Event) hookio.Output {
	return hookio.NewShapeS(true, "")
}

// decodeExtra re-decodes in.Extra's event-specific fields into dst.
func decodeExtra(in hookio.Input, dst any) error {
	if len(in.Extra) == 0 {
		return nil
	}
	return json.Unmarshal(in.Extra, dst)
}

// --- session_start -----------------------------------------------------

func handleSessionStart(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		Source string `json:"source"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}

	transcriptSize := transcriptSizeBytes(in.TranscriptPath)

	result, err := sessionstart.Classify(rt.reader, sessionstart.Input{
		SessionID:           in.SessionID,
		Source:              sessionstart.Source(extra.Source),
		TranscriptSizeBytes: transcriptSize,
	})
	if err != nil {
		return hookio.Output{}, err
	}
	rt.cycle = result.Cycle

	switch result.Classification {
	case sessionstart.ClassCompact:
		if err := appendEvent(rt, newEvent(rt, "compaction_detected", in.SessionID, "", map[string]any{
			"session_id": in.SessionID,
		})); err != nil {
			return hookio.Output{}, err
		}
	case sessionstart.ClassMigration:
		if err := appendEvent(rt, newEvent(rt, "migration_detected", in.SessionID, "", map[string]any{
			"session_id":           in.SessionID,
			"previous_session_id":  result.PreviousSessionID,
			"orphaned_bytes":       result.OrphanedBytes,
		})); err != nil {
			return hookio.Output{}, err
		}
	}

	payload := sessionstart.Compose(rt.agentHome, result)

	if err := appendEvent(rt, newEvent(rt, "session_started", in.SessionID, "", map[string]any{
		"session_id":     in.SessionID,
		"classification": string(result.Classification),
		"cycle":          result.Cycle,
	})); err != nil {
		return hookio.Output{}, err
	}

	rt.telemetry.TrackHookEvent(string(hookio.EventSessionStart), string(result.Classification))
	return hookio.NewShapeS(true, payload.SystemMessage), nil
}

func transcriptSizeBytes(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// --- user_prompt_submit --------------------------------------------------

func handleUserPromptSubmit(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		Prompt     string `json:"prompt"`
		PromptUUID string `json:"prompt_uuid"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}

	if err := appendEvent(rt, newEvent(rt, "dev_drv_started", in.SessionID, extra.PromptUUID, map[string]any{
		"session_id": in.SessionID,
	})); err != nil {
		return hookio.Output{}, err
	}

	crumb, err := breadcrumb.Current(in.SessionID, rt.cycle, extra.PromptUUID, rt.agentHome)
	if err != nil {
		crumb = ""
	}
	recs := recommendationContext(rt, extra.Prompt)

	additionalContext := crumb
	if recs != "" {
		additionalContext = strings.TrimSpace(crumb + "\n\n" + recs)
	}

	return hookio.NewShapeP(hookio.EventUserPromptSubmit, true, additionalContext, "", "")
}

// --- pre_tool_use ---------------------------------------------------------

func handlePreToolUse(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		ToolName     string         `json:"tool_name"`
		ToolInput    map[string]any `json:"tool_input"`
		TouchedField string         `json:"touched_field"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}

	if err := appendEvent(rt, newEvent(rt, "tool_call_started", in.SessionID, "", map[string]any{
		"tool_name":  extra.ToolName,
		"tool_input": secrets.ScanValue(extra.ToolInput),
	})); err != nil {
		return hookio.Output{}, err
	}

	if !grant.IsGated(extra.ToolName, extra.TouchedField) {
		return hookio.NewShapeP(hookio.EventPreToolUse, true, "", "", "")
	}

	targetSet := grant.Canonicalize(targetSetFor(extra.ToolName, extra.TouchedField, extra.ToolInput))
	g, err := grant.FindMatching(rt.reader, targetSet)
	if err != nil {
		return hookio.Output{}, err
	}
	if g == nil {
		rt.metrics.RecordGrantDecision(extra.ToolName, "denied")
		return hookio.NewShapeP(hookio.EventPreToolUse, true, "",
			hookio.PermissionDeny, fmt.Sprintf("no active grant covers %v", targetSet))
	}

	rt.metrics.RecordGrantDecision(extra.ToolName, "consumed")
	if err := appendEvent(rt, newEvent(rt, "grant_consumed", in.SessionID, "", map[string]any{
		"grant_id": g.ID,
	})); err != nil {
		return hookio.Output{}, err
	}
	return hookio.NewShapeP(hookio.EventPreToolUse, true, "", hookio.PermissionAllow, "")
}

// targetSetFor derives the grant target set a gated call touches: the tool
// name itself, plus the tool name scoped to touchedField when set.
func targetSetFor(toolName, touchedField string, toolInput map[string]any) []string {
	if touchedField == "" {
		return []string{toolName}
	}
	return []string{toolName + "." + touchedField}
}

// --- post_tool_use ---------------------------------------------------------

func handlePostToolUse(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		ToolName     string `json:"tool_name"`
		ToolResponse any    `json:"tool_response"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}

	if err := appendEvent(rt, newEvent(rt, "tool_call_completed", in.SessionID, "", map[string]any{
		"tool_name":     extra.ToolName,
		"tool_response": secrets.ScanValue(extra.ToolResponse),
	})); err != nil {
		return hookio.Output{}, err
	}

	return hookio.NewShapeP(hookio.EventPostToolUse, true, "", "", "")
}

// --- stop / subagent_stop --------------------------------------------------

func handleStop(rt *runtime, in hookio.Input) (hookio.Output, error) {
	return closeDrive(rt, in, drive.KindDev, "dev_drv_ended")
}

func handleSubagentStop(rt *runtime, in hookio.Input) (hookio.Output, error) {
	return closeDrive(rt, in, drive.KindDeleg, "deleg_drv_ended")
}

// closeDrive appends eventName stamped with rt.promptComponent — the
// exact digested prompt component reconciled from the log's still-open
// interval — rather than a freshly hashed prompt_uuid. drive.Stats and
// reconcile.reconcilePromptUUID both pair started/ended events solely by
// their breadcrumb Prompt component; stamping anything else (including
// an empty prompt, which digests to "none") means the pairing never
// fires and every interval is reported open forever.
func closeDrive(rt *runtime, in hookio.Input, kind drive.Kind, eventName string) (hookio.Output, error) {
	if err := appendEvent(rt, newEventPromptComponent(rt, eventName, in.SessionID, rt.promptComponent, map[string]any{
		"session_id": in.SessionID,
	})); err != nil {
		return hookio.Output{}, err
	}

	stats, err := drive.Stats(rt.reader, kind, in.SessionID)
	if err != nil {
		return hookio.Output{}, err
	}
	open := drive.OpenCount(stats)
	msg := ""
	if open > 0 {
		msg = fmt.Sprintf("%d drive interval(s) remain open for this session.", open)
	}
	return hookio.NewShapeS(true, msg), nil
}

// --- pre_compact ---------------------------------------------------------

func handlePreCompact(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		Trigger string `json:"trigger"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}
	if err := appendEvent(rt, newEvent(rt, "pre_compact", in.SessionID, "", map[string]any{
		"trigger": extra.Trigger,
	})); err != nil {
		return hookio.Output{}, err
	}
	return hookio.NewShapeS(true, ""), nil
}

// --- session_end -----------------------------------------------------------

func handleSessionEnd(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		Reason string `json:"reason"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}
	if err := appendEvent(rt, newEvent(rt, "session_ended", in.SessionID, "", map[string]any{
		"session_id": in.SessionID,
		"reason":     extra.Reason,
	})); err != nil {
		return hookio.Output{}, err
	}
	return hookio.NewShapeS(true, ""), nil
}

// --- notification -----------------------------------------------------------

func handleNotification(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		NotificationType string `json:"notification_type"`
		Message          string `json:"message"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}
	if err := appendEvent(rt, newEvent(rt, "notification_received", in.SessionID, "", map[string]any{
		"notification_type": extra.NotificationType,
	})); err != nil {
		return hookio.Output{}, err
	}
	return hookio.NewShapeS(true, ""), nil
}

// --- permission_request ------------------------------------------------------

func handlePermissionRequest(rt *runtime, in hookio.Input) (hookio.Output, error) {
	var extra struct {
		ToolName string `json:"tool_name"`
		Type     string `json:"type"`
	}
	if err := decodeExtra(in, &extra); err != nil {
		return hookio.Output{}, err
	}
	if err := appendEvent(rt, newEvent(rt, "permission_requested", in.SessionID, "", map[string]any{
		"tool_name": extra.ToolName,
		"type":      extra.Type,
	})); err != nil {
		return hookio.Output{}, err
	}
	return hookio.NewShapeS(true, ""), nil
}
