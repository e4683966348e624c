package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	delta_context "github.com/deltaengine/delta/internal/context"
	"github.com/deltaengine/delta/internal/hooks"
	"github.com/deltaengine/delta/internal/llmclient"
	"github.com/deltaengine/delta/internal/logging"
	"github.com/deltaengine/delta/internal/runctx"
	"github.com/deltaengine/delta/internal/toolexec"
)

// stubLLM scripts a fixed sequence of replies, one per call to
// Complete, so a full iteration can run without a real network call.
type stubLLM struct {
	replies []llmclient.Reply
	calls   int
}

func (s *stubLLM) Complete(ctx context.Context, messages []llmclient.Message, tools []llmclient.ToolSpec) (llmclient.Reply, error) {
	r := s.replies[s.calls]
	s.calls++
	return r, nil
}

func newTestEngine(t *testing.T, llm llmclient.Client) (*Engine, string) {
	t.Helper()
	workDir := t.TempDir()
	run, err := runctx.Create(workDir, "test-agent")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	t.Cleanup(func() { run.Close() })

	tools := &toolexec.Executor{
		Tools: toolexec.Set{
			"say_hello": toolexec.Definition{Name: "say_hello", Command: "echo", BaseArgs: []string{"hello, world"}},
		},
		WorkDir:  workDir,
		AuditDir: runctx.InvocationsDir(workDir, run.RunID),
	}
	hookRunner := &hooks.Runner{WorkDir: workDir, ByPoint: map[hooks.Point][]hooks.Definition{}}

	e := New(run, tools, hookRunner, llm, delta_context.Sources{}, logging.Discard())
	return e, workDir
}

func TestExecuteHelloWorldSingleTool(t *testing.T) {
	llm := &stubLLM{replies: []llmclient.Reply{
		{Text: "calling say_hello", ToolCalls: []llmclient.ToolCall{{CallID: "call-1", Tool: "say_hello", Arguments: json.RawMessage(`{}`)}}},
		{Text: "done"},
	}}
	e, _ := newTestEngine(t, llm)

	outcome, err := e.Execute(context.Background(), "greet")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Status != runctx.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", outcome.Status, outcome.Reason)
	}

	events, err := e.Run.Journal.ReadAllOrdered()
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	var types []string
	for _, ev := range events {
		types = append(types, string(ev.Type))
	}
	want := []string{"RUN_START", "USER_MESSAGE", "THOUGHT", "ACTION_REQUEST", "ACTION_RESULT", "THOUGHT", "RUN_END"}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, types[i], want[i], types)
		}
	}
}

func TestExecuteMaxIterationsFails(t *testing.T) {
	replies := make([]llmclient.Reply, 0, 5)
	for i := 0; i < 5; i++ {
		// Each reply requests a tool, so no iteration ends the run as completed.
		replies = append(replies, llmclient.Reply{Text: "thinking", ToolCalls: []llmclient.ToolCall{
			{CallID: fmt.Sprintf("call-%d", i), Tool: "say_hello", Arguments: json.RawMessage(`{}`)},
		}})
	}
	llm := &stubLLM{replies: replies}
	e, _ := newTestEngine(t, llm)
	e.MaxIterations = 2

	outcome, err := e.Execute(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Status != runctx.StatusFailed || outcome.Reason != "max_iterations" {
		t.Fatalf("expected max_iterations failure, got %+v", outcome)
	}
}

func TestExecuteAsyncAskHumanSuspendsThenResumes(t *testing.T) {
	llm := &stubLLM{replies: []llmclient.Reply{
		{Text: "need input", ToolCalls: []llmclient.ToolCall{{CallID: "call-1", Tool: "ask_human", Arguments: json.RawMessage(`{"prompt":"key?"}`)}}},
		{Text: "thanks"},
	}}
	e, workDir := newTestEngine(t, llm)

	outcome, err := e.Execute(context.Background(), "need a secret")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Status != runctx.StatusWaitingForInput {
		t.Fatalf("expected waiting-for-input, got %+v", outcome)
	}
	if e.Run.Meta.Status != runctx.StatusWaitingForInput {
		t.Fatalf("expected metadata status waiting-for-input, got %s", e.Run.Meta.Status)
	}

	interactionDir := runctx.InteractionDir(workDir, e.Run.RunID)
	if err := os.WriteFile(filepath.Join(interactionDir, "response.txt"), []byte("abc"), 0644); err != nil {
		t.Fatalf("write response: %v", err)
	}

	outcome, err = e.Execute(context.Background(), "need a secret")
	if err != nil {
		t.Fatalf("execute after response: %v", err)
	}
	if outcome.Status != runctx.StatusCompleted {
		t.Fatalf("expected completed after resolving ask_human, got %+v", outcome)
	}
}

func TestExecuteResumeIsNoopAfterCompletion(t *testing.T) {
	llm := &stubLLM{replies: []llmclient.Reply{{Text: "done immediately"}}}
	e, _ := newTestEngine(t, llm)

	if _, err := e.Execute(context.Background(), "task"); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	before, err := e.Run.Journal.ReadAllOrdered()
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}

	outcome, err := e.Execute(context.Background(), "task")
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if outcome.Status != runctx.StatusCompleted {
		t.Fatalf("expected completed on resume no-op, got %+v", outcome)
	}
	after, err := e.Run.Journal.ReadAllOrdered()
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("resume after completion appended events: before=%d after=%d", len(before), len(after))
	}
}
