// Package journal implements the append-only, line-delimited event log
// that is the single source of truth for a run. Grounded in the
// teacher's internal/session.FileStore JSONL persistence, simplified to
// one flat Event record per line (no header/footer wrapper) so the
// format-validation rules in the engine's specification can be checked
// directly against file bytes.
package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the closed set of event variants the journal may contain.
type Type string

const (
	RunStart           Type = "RUN_START"
	UserMessage        Type = "USER_MESSAGE"
	SystemMessage      Type = "SYSTEM_MESSAGE"
	Thought            Type = "THOUGHT"
	ActionRequest      Type = "ACTION_REQUEST"
	ActionResult       Type = "ACTION_RESULT"
	HookExecuted       Type = "HOOK_EXECUTED"
	InteractionRequest Type = "INTERACTION_REQUESTED"
	InteractionResolve Type = "INTERACTION_RESOLVED"
	RunEnd             Type = "RUN_END"
)

// Event is the atomic unit of the journal.
type Event struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// ToolCall describes one tool invocation the LLM requested in a THOUGHT.
type ToolCall struct {
	CallID    string          `json:"call_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// ThoughtPayload is the payload of a THOUGHT event. See SPEC_FULL.md §D
// for the resolution of the "parallel tool calls" open question: a
// single reasoning-only reply carries an empty ToolCalls slice.
type ThoughtPayload struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ActionRequestPayload is the payload of an ACTION_REQUEST event.
type ActionRequestPayload struct {
	CallID    string          `json:"call_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// ActionResultPayload is the payload of an ACTION_RESULT event.
type ActionResultPayload struct {
	CallID      string `json:"call_id"`
	ExitCode    int    `json:"exit_code"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	DurationMs  int64  `json:"duration_ms"`
	Truncated   bool   `json:"truncated,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"` // synthetic result on resume
	Error       string `json:"error,omitempty"`
}

// HookExecutedPayload is the payload of a HOOK_EXECUTED event.
type HookExecutedPayload struct {
	Name       string `json:"name"`
	Point      string `json:"point"`
	DurationMs int64  `json:"duration_ms"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	Stdout     string `json:"stdout,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunEndPayload is the payload of a RUN_END event.
type RunEndPayload struct {
	Status string `json:"status"` // completed, failed, waiting-for-input, interrupted
	Reason string `json:"reason,omitempty"`
}

// InteractionPayload is shared by INTERACTION_REQUESTED / INTERACTION_RESOLVED.
type InteractionPayload struct {
	Prompt    string `json:"prompt,omitempty"`
	InputType string `json:"input_type,omitempty"`
	Sensitive bool   `json:"sensitive,omitempty"`
	Answer    string `json:"answer,omitempty"`
}

// Marshal encodes a typed payload for embedding in an Event.
func Marshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Payload types are all static structs under our control; a
		// marshal failure here means a programming error, not bad input.
		panic(fmt.Sprintf("journal: marshal payload: %v", err))
	}
	return data
}
