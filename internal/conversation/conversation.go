// Package conversation rebuilds the LLM message sequence from ordered
// journal events (C3). It is a pure function: same events in, same
// messages out, no I/O of its own — mirroring the teacher's
// internal/replay package, which folds a session's events into a
// display model by a single forward pass with no side effects.
package conversation

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/deltaengine/delta/internal/journal"
)

// Role is the closed set of message roles the rebuilder produces.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the rebuilt conversation.
type Message struct {
	Role Role
	// Text is the human-readable body for user/system/tool messages,
	// and the assistant's reasoning text for assistant messages.
	Text string
	// ToolCalls carries the assistant's requested tool invocations,
	// populated only on RoleAssistant messages that requested one or
	// more tools.
	ToolCalls []journal.ToolCall
	// CallID correlates a RoleTool message back to the ToolCall that
	// produced it.
	CallID string
	// Synthetic marks a tool message the rebuilder invented itself
	// (the unmatched-request case) rather than one read from the
	// journal's own ACTION_RESULT events.
	Synthetic bool
}

// Rebuild maps ordered events onto a message sequence per the mapping
// table: USER_MESSAGE -> user, SYSTEM_MESSAGE -> system, THOUGHT ->
// assistant (carrying any tool calls), ACTION_RESULT -> tool (matched
// by call id to the ACTION_REQUEST that preceded it). Every other
// event type is ignored for conversation purposes but not touched
// here — it still lives in the journal for audit.
//
// Events are sorted by Seq before processing so callers can hand in
// events from any source (ReadAllOrdered already sorts, but Rebuild
// does not trust that).
func Rebuild(events []journal.Event) ([]Message, error) {
	sorted := make([]journal.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].Seq < sorted[k].Seq })

	var messages []Message
	pending := make(map[string]journal.ToolCall) // call_id -> request, awaiting a result
	pendingOrder := []string{}                   // preserves request order for synthetic fallback

	for _, ev := range sorted {
		switch ev.Type {
		case journal.UserMessage:
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, fmt.Errorf("conversation: decode USER_MESSAGE at seq %d: %w", ev.Seq, err)
			}
			messages = append(messages, Message{Role: RoleUser, Text: p.Text})

		case journal.SystemMessage:
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, fmt.Errorf("conversation: decode SYSTEM_MESSAGE at seq %d: %w", ev.Seq, err)
			}
			messages = append(messages, Message{Role: RoleSystem, Text: p.Text})

		case journal.Thought:
			var p journal.ThoughtPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, fmt.Errorf("conversation: decode THOUGHT at seq %d: %w", ev.Seq, err)
			}
			messages = append(messages, Message{Role: RoleAssistant, Text: p.Text, ToolCalls: p.ToolCalls})

		case journal.ActionRequest:
			var p journal.ActionRequestPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, fmt.Errorf("conversation: decode ACTION_REQUEST at seq %d: %w", ev.Seq, err)
			}
			if _, exists := pending[p.CallID]; !exists {
				pendingOrder = append(pendingOrder, p.CallID)
			}
			pending[p.CallID] = journal.ToolCall{CallID: p.CallID, Tool: p.Tool, Arguments: p.Arguments}

		case journal.ActionResult:
			var p journal.ActionResultPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, fmt.Errorf("conversation: decode ACTION_RESULT at seq %d: %w", ev.Seq, err)
			}
			delete(pending, p.CallID)
			removePending(&pendingOrder, p.CallID)
			messages = append(messages, Message{
				Role:   RoleTool,
				Text:   formatResult(p),
				CallID: p.CallID,
			})

		default:
			// HOOK_EXECUTED, INTERACTION_REQUESTED/RESOLVED, RUN_START,
			// RUN_END: preserved in the journal for audit, no effect on
			// the conversation.
		}
	}

	// Any ACTION_REQUEST still pending means the run was interrupted
	// mid-action: synthesize a consistent tool-reply so the LLM never
	// sees a dangling tool call on resume.
	for _, callID := range pendingOrder {
		messages = append(messages, Message{
			Role:      RoleTool,
			Text:      "action interrupted: the run ended before this tool call completed",
			CallID:    callID,
			Synthetic: true,
		})
	}

	return messages, nil
}

func removePending(order *[]string, callID string) {
	for i, id := range *order {
		if id == callID {
			*order = append((*order)[:i], (*order)[i+1:]...)
			return
		}
	}
}

func formatResult(p journal.ActionResultPayload) string {
	if p.Interrupted {
		return "action interrupted: the run ended before this tool call completed"
	}
	if p.Error != "" {
		return fmt.Sprintf("error: %s", p.Error)
	}
	out := p.Stdout
	if p.Truncated {
		out += "\n[output truncated]"
	}
	if p.ExitCode != 0 {
		return fmt.Sprintf("exit %d\nstdout:\n%s\nstderr:\n%s", p.ExitCode, out, p.Stderr)
	}
	return out
}
