// Package hookio implements the Hook Runtime's common I/O contract (spec
// §4.E): decoding one JSON object from stdin per invocation, and encoding
// one of the two permitted output shapes to stdout. Grounded on the
// teacher's hooks.go hookResponse/outputHookResponse pair, generalized
// from a single Shape-S-only response type into the full Shape P / Shape S
// split the spec requires.
package hookio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/maceff/macf/internal/macferr"
)

// Event names the ten semantic hook lifecycle events (spec §4.E).
type Event string

const (
	EventSessionStart      Event = "session_start"
	EventUserPromptSubmit  Event = "user_prompt_submit"
	EventPreToolUse        Event = "pre_tool_use"
	EventPostToolUse       Event = "post_tool_use"
	EventStop              Event = "stop"
	EventSubagentStop      Event = "subagent_stop"
	EventPreCompact        Event = "pre_compact"
	EventSessionEnd        Event = "session_end"
	EventNotification      Event = "notification"
	EventPermissionRequest Event = "permission_request"
)

// ShapePEvents is the set of handlers permitted to use hookSpecificOutput.
var ShapePEvents = map[Event]bool{
	EventPreToolUse:       true,
	EventPostToolUse:      true,
	EventUserPromptSubmit: true,
}

// hookEventNameWire maps an Event to the exact string the host expects in
// hookSpecificOutput.hookEventName (spec §6).
var hookEventNameWire = map[Event]string{
	EventPreToolUse:       "PreToolUse",
	EventPostToolUse:      "PostToolUse",
	EventUserPromptSubmit: "UserPromptSubmit",
}

// Input is the common envelope every hook handler receives on stdin (spec
// §6). Event-specific fields live in Extra, decoded on demand by each
// handler package to avoid a single god-struct with every event's fields
// optional.
type Input struct {
	SessionID      string          `json:"session_id"`
	HookEventName  string          `json:"hook_event_name"`
	Cwd            string          `json:"cwd"`
	PermissionMode string          `json:"permission_mode"`
	TranscriptPath string          `json:"transcript_path"`
	Extra          json.RawMessage `json:"-"`
}

// DecodeInput reads and parses one hook invocation's stdin JSON. Also
// retains the full raw object in Extra so handlers can re-decode
// event-specific fields without a second stdin read.
func DecodeInput(r io.Reader) (Input, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Input{}, &macferr.IOErr{Op: "read stdin", Err: err}
	}

	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return Input{}, &macferr.MalformedInput{Reason: fmt.Sprintf("stdin is not valid JSON: %v", err)}
	}
	in.Extra = raw
	return in, nil
}

// PermissionDecision is the PreToolUse-only decision value.
type PermissionDecision string

const (
	PermissionAllow PermissionDecision = "allow"
	PermissionDeny  PermissionDecision = "deny"
	PermissionAsk   PermissionDecision = "ask"
)

// HookSpecificOutput is Shape P's payload (spec §6): only pre_tool_use,
// post_tool_use, and user_prompt_submit may populate this; only
// pre_tool_use may set the permission fields.
type HookSpecificOutput struct {
	HookEventName            string              `json:"hookEventName"`
	AdditionalContext         string              `json:"additionalContext,omitempty"`
	PermissionDecision        PermissionDecision  `json:"permissionDecision,omitempty"`
	PermissionDecisionReason  string              `json:"permissionDecisionReason,omitempty"`
}

// Output is the union wire shape (spec §6). Handlers should build one via
// NewShapeP / NewShapeS rather than populating this struct directly, so
// the Shape P/S boundary is enforced by construction, not by convention.
type Output struct {
	Continue            bool                 `json:"continue"`
	SystemMessage        string               `json:"systemMessage,omitempty"`
	HookSpecificOutput   *HookSpecificOutput  `json:"hookSpecificOutput,omitempty"`
}

// NewShapeS builds a Shape S output (every handler except pre/post-tool-use
// and user-prompt-submit): continue plus an optional systemMessage.
func NewShapeS(cont bool, systemMessage string) Output {
	return Output{Continue: cont, SystemMessage: systemMessage}
}

// NewShapeP builds a Shape P output for event (must be in ShapePEvents).
// additionalContext may be "". permissionDecision/reason are only
// meaningful for pre_tool_use; pass "" for the other two Shape P events.
func NewShapeP(event Event, cont bool, additionalContext string, decision PermissionDecision, reason string) (Output, error) {
	wireName, ok := hookEventNameWire[event]
	if !ok || !ShapePEvents[event] {
		return Output{}, &macferr.SchemaViolation{HookEvent: string(event), Field: "hookSpecificOutput"}
	}
	if decision != "" && event != EventPreToolUse {
		return Output{}, &macferr.SchemaViolation{HookEvent: string(event), Field: "hookSpecificOutput.permissionDecision"}
	}
	return Output{
		Continue: cont,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:            wireName,
			AdditionalContext:        additionalContext,
			PermissionDecision:       decision,
			PermissionDecisionReason: reason,
		},
	}, nil
}

// Validate enforces the Shape P / Shape S split for event before encoding:
// Shape-S-only events must not carry hookSpecificOutput, and vice versa.
func Validate(event Event, out Output) error {
	isShapeP := ShapePEvents[event]
	if out.HookSpecificOutput != nil && !isShapeP {
		return &macferr.SchemaViolation{HookEvent: string(event), Field: "hookSpecificOutput"}
	}
	if out.HookSpecificOutput == nil && isShapeP {
		// Shape P events are permitted (not required) to omit
		// hookSpecificOutput — e.g. post_tool_use with nothing to add.
		return nil
	}
	if out.HookSpecificOutput != nil {
		want := hookEventNameWire[event]
		if out.HookSpecificOutput.HookEventName != want {
			return &macferr.SchemaViolation{HookEvent: string(event), Field: "hookSpecificOutput.hookEventName"}
		}
		if out.HookSpecificOutput.PermissionDecision != "" && event != EventPreToolUse {
			return &macferr.SchemaViolation{HookEvent: string(event), Field: "hookSpecificOutput.permissionDecision"}
		}
	}
	return nil
}

// Encode validates out against event's shape and writes it to w as a
// single JSON object, per spec §4.E's common I/O contract.
func Encode(w io.Writer, event Event, out Output) error {
	if err := Validate(event, out); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return &macferr.IOErr{Op: "write stdout", Err: err}
	}
	return nil
}
