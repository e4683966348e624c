package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/runctx"
)

func TestRenderIncludesEveryEventType(t *testing.T) {
	now := time.Now()
	events := []journal.Event{
		{Seq: 1, Timestamp: now, Type: journal.RunStart, Payload: journal.Marshal(struct{}{})},
		{Seq: 2, Timestamp: now, Type: journal.UserMessage, Payload: journal.Marshal(struct {
			Text string `json:"text"`
		}{Text: "greet"})},
		{Seq: 3, Timestamp: now, Type: journal.Thought, Payload: journal.Marshal(journal.ThoughtPayload{
			Text:      "calling say_hello",
			ToolCalls: []journal.ToolCall{{CallID: "call-1", Tool: "say_hello"}},
		})},
		{Seq: 4, Timestamp: now, Type: journal.ActionRequest, Payload: journal.Marshal(journal.ActionRequestPayload{CallID: "call-1", Tool: "say_hello"})},
		{Seq: 5, Timestamp: now, Type: journal.ActionResult, Payload: journal.Marshal(journal.ActionResultPayload{CallID: "call-1", ExitCode: 0, Stdout: "hello, world\n"})},
		{Seq: 6, Timestamp: now, Type: journal.HookExecuted, Payload: journal.Marshal(journal.HookExecutedPayload{Name: "audit", Point: "post_tool_exec", ExitCode: 0})},
		{Seq: 7, Timestamp: now, Type: journal.SystemMessage, Payload: journal.Marshal(struct {
			Text string `json:"text"`
		}{Text: "source skipped"})},
		{Seq: 8, Timestamp: now, Type: journal.InteractionRequest, Payload: journal.Marshal(journal.InteractionPayload{Prompt: "key?"})},
		{Seq: 9, Timestamp: now, Type: journal.InteractionResolve, Payload: journal.Marshal(journal.InteractionPayload{Answer: "abc"})},
		{Seq: 10, Timestamp: now, Type: journal.RunEnd, Payload: journal.Marshal(journal.RunEndPayload{Status: "completed"})},
	}
	meta := runctx.Metadata{RunID: "run-1", AgentPath: "agents/demo", Status: runctx.StatusCompleted, CreatedAt: now}

	out := Render(meta, events)

	for _, want := range []string{"run-1", "agents/demo", "greet", "say_hello", "hello, world", "audit", "source skipped", "key?", "abc", "RUN END"} {
		if !strings.Contains(stripANSI(out), want) {
			t.Fatalf("render output missing %q\n---\n%s", want, out)
		}
	}
}

func TestRenderHandlesEmptyJournal(t *testing.T) {
	meta := runctx.Metadata{RunID: "run-empty", Status: runctx.StatusRunning}
	out := Render(meta, nil)
	if !strings.Contains(stripANSI(out), "run-empty") {
		t.Fatalf("expected run id in output, got: %s", out)
	}
	if !strings.Contains(stripANSI(out), "(0 events)") {
		t.Fatalf("expected zero-event marker, got: %s", out)
	}
}

func TestWrapContentPreservesShortLines(t *testing.T) {
	in := "short line"
	if got := wrapContent(in, 80); got != in {
		t.Fatalf("expected unchanged short line, got %q", got)
	}
}

func TestWrapContentWrapsLongLines(t *testing.T) {
	in := strings.Repeat("word ", 40)
	out := wrapContent(in, 20)
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 20 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
}

// stripANSI removes lipgloss's SGR escape sequences so tests can match
// on plain substrings regardless of the terminal color profile.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
