// Package engine implements the Think-Act-Observe loop (C9): the one
// component that wires every other package together against a single
// run. Grounded on the teacher's internal/executor/executor.go for the
// overall shape of a long-lived loop type holding its collaborators as
// fields and iterating goal-by-goal, generalized here from the
// teacher's goal/workflow vocabulary to one iteration = one LLM call
// plus its tool calls.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/deltaengine/delta/internal/askhuman"
	delta_context "github.com/deltaengine/delta/internal/context"
	"github.com/deltaengine/delta/internal/conversation"
	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/hooks"
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/llmclient"
	"github.com/deltaengine/delta/internal/logging"
	"github.com/deltaengine/delta/internal/runctx"
	"github.com/deltaengine/delta/internal/telemetry"
	"github.com/deltaengine/delta/internal/toolexec"
)

const builtinAskHuman = "ask_human"

// Outcome is what the engine hands back to the CLI, which maps it
// onto the process's exit code.
type Outcome struct {
	Status runctx.Status
	Reason string
}

// Engine owns one run's loop. It holds no state of its own beyond its
// collaborators and the in-memory event mirror of the run's journal;
// every durable fact lives in the journal and run metadata.
type Engine struct {
	Run         *runctx.Run
	Tools       *toolexec.Executor
	Hooks       *hooks.Runner
	LLM         llmclient.Client
	ContextDefs delta_context.Sources
	Tracer      *telemetry.Tracer
	Log         *logging.Logger

	MaxIterations   int
	JournalTailSize int

	AgentDir  string
	AgentHome string

	// Interactive selects ask_human's synchronous mode (reads from In,
	// writes prompts to Out) over the default asynchronous file-handoff
	// mode.
	Interactive bool
	In          *os.File
	Out         io.Writer

	events []journal.Event
}

// New builds an Engine from its already-opened collaborators. Callers
// assemble Tools/Hooks/LLM/ContextDefs from internal/config and a run
// from internal/runctx before calling this.
func New(run *runctx.Run, tools *toolexec.Executor, hookRunner *hooks.Runner, llm llmclient.Client, ctxDefs delta_context.Sources, log *logging.Logger) *Engine {
	return &Engine{
		Run:             run,
		Tools:           tools,
		Hooks:           hookRunner,
		LLM:             llm,
		ContextDefs:     ctxDefs,
		Tracer:          telemetry.New(),
		Log:             log,
		MaxIterations:   30,
		JournalTailSize: 5,
		In:              os.Stdin,
		Out:             os.Stdout,
	}
}

// Execute drives the loop to completion, to an ask-human suspension
// point, or to a fatal error. task is only used on a fresh run (an
// empty journal); on resume it is ignored and the journal's own
// USER_MESSAGE is authoritative.
func (e *Engine) Execute(ctx context.Context, task string) (Outcome, error) {
	events, err := e.Run.Journal.ReadAllOrdered()
	if err != nil {
		return Outcome{}, errkind.Wrap(errkind.JournalCorruption, err)
	}
	e.events = events

	if len(e.events) == 0 {
		if err := e.append(journal.RunStart, struct{}{}); err != nil {
			return Outcome{}, err
		}
		if err := e.append(journal.UserMessage, userMessagePayload{Text: task}); err != nil {
			return Outcome{}, err
		}
	} else if e.Run.Meta.Status == runctx.StatusCompleted || e.Run.Meta.Status == runctx.StatusFailed {
		// Resuming a run that already reached a terminal state is a
		// no-op: the journal already carries its RUN_END.
		return Outcome{Status: e.Run.Meta.Status}, nil
	}

	if resumed, outcome, err := e.resolvePendingInteraction(); err != nil {
		return Outcome{}, err
	} else if resumed {
		return outcome, nil
	}

	return e.loop(ctx)
}

type userMessagePayload struct {
	Text string `json:"text"`
}

// resolvePendingInteraction checks for an outstanding ask_human
// request. If one exists and is still unanswered, the caller must
// suspend (exit 101) without entering the loop. If one exists and has
// been answered, it is resolved into the journal and the loop
// continues in the same invocation.
func (e *Engine) resolvePendingInteraction() (resumed bool, outcome Outcome, err error) {
	interactionDir := runctx.InteractionDir(e.Run.WorkDir, e.Run.RunID)
	pending, req, perr := askhuman.Pending(interactionDir)
	if perr != nil {
		return false, Outcome{}, errkind.Wrap(errkind.InteractionPending, perr)
	}
	if !pending {
		return false, Outcome{}, nil
	}
	if !askhuman.ResponseReady(interactionDir) {
		return true, Outcome{Status: runctx.StatusWaitingForInput, Reason: "awaiting response.txt"}, nil
	}

	answer, rerr := askhuman.ResolveAsync(interactionDir, req.CallID)
	if rerr != nil {
		return false, Outcome{}, errkind.Wrap(errkind.InteractionPending, rerr)
	}
	if err := e.append(journal.InteractionResolve, journal.InteractionPayload{Answer: answer}); err != nil {
		return false, Outcome{}, err
	}
	if err := e.append(journal.ActionResult, journal.ActionResultPayload{CallID: req.CallID, ExitCode: 0, Stdout: answer}); err != nil {
		return false, Outcome{}, err
	}
	if err := e.Run.SetStatus(runctx.StatusRunning); err != nil {
		return false, Outcome{}, errkind.Wrap(errkind.Configuration, err)
	}
	return false, Outcome{}, nil
}

// loop runs iterations until a stopping condition is reached.
func (e *Engine) loop(ctx context.Context) (Outcome, error) {
	for {
		iteration := countThoughts(e.events)
		if iteration >= e.MaxIterations {
			reason := "max_iterations"
			if err := e.append(journal.RunEnd, journal.RunEndPayload{Status: string(runctx.StatusFailed), Reason: reason}); err != nil {
				return Outcome{}, err
			}
			_ = e.Run.SetStatus(runctx.StatusFailed)
			return Outcome{Status: runctx.StatusFailed, Reason: reason}, nil
		}

		iterCtx, span := e.Tracer.StartIteration(ctx, e.Run.RunID, iteration)
		outcome, stop, err := e.runIteration(iterCtx)
		if err != nil {
			e.Tracer.EndIteration(span, "", err)

			// A canceled context means the process caught SIGINT mid-iteration
			// (ctx comes from the CLI's signal.NotifyContext): the run stops
			// as interrupted rather than failed, and on_error does not run so
			// shutdown stays prompt.
			status, reason := runctx.StatusFailed, err.Error()
			if ctx.Err() != nil {
				status, reason = runctx.StatusInterrupted, "interrupted"
			} else {
				e.runOnErrorHook(ctx, err)
			}

			if appendErr := e.append(journal.RunEnd, journal.RunEndPayload{Status: string(status), Reason: reason}); appendErr != nil {
				return Outcome{}, appendErr
			}
			_ = e.Run.SetStatus(status)
			return Outcome{Status: status, Reason: reason}, nil
		}
		if stop {
			e.Tracer.EndIteration(span, string(outcome.Status), nil)
			return outcome, nil
		}
		e.Tracer.EndIteration(span, "", nil)
	}
}

// runIteration runs exactly one Think-Act-Observe cycle. stop==true
// means the caller should return outcome to the process boundary
// immediately (completion or suspension); stop==false means continue
// looping.
func (e *Engine) runIteration(ctx context.Context) (outcome Outcome, stop bool, err error) {
	conv, err := conversation.Rebuild(e.events)
	if err != nil {
		return Outcome{}, false, errkind.Wrap(errkind.JournalCorruption, err)
	}

	if hookErr := hookAbort(e.Hooks.Run(ctx, hooks.PreLLMRequest, hookPayload{RunID: e.Run.RunID, Iteration: countThoughts(e.events)})); hookErr != nil {
		return Outcome{}, false, errkind.Wrap(errkind.Hook, hookErr)
	}

	sources := e.ContextDefs
	sources.AgentDir = e.AgentDir
	sources.WorkDir = e.Run.WorkDir
	sources.AgentHome = e.AgentHome
	sources.TailMessages = tailMessages(conv, e.JournalTailSize)

	composed, cerr := delta_context.Compose(ctx, sources)
	if cerr != nil {
		return Outcome{}, false, cerr
	}
	for _, w := range composed.Warnings {
		if err := e.append(journal.SystemMessage, userMessagePayload{Text: w.String()}); err != nil {
			return Outcome{}, false, err
		}
	}

	messages := buildMessages(conv, composed.Text)

	llmCtx, span := e.Tracer.StartLLMRequest(ctx, "")
	reply, llmErr := e.LLM.Complete(llmCtx, messages, nil)
	e.Tracer.EndLLMRequest(span, len(reply.ToolCalls), llmErr)
	if llmErr != nil {
		return Outcome{}, false, errkind.Wrap(errkind.Transport, llmErr)
	}

	if hookErr := hookAbort(e.Hooks.Run(ctx, hooks.PostLLMResponse, reply)); hookErr != nil {
		return Outcome{}, false, errkind.Wrap(errkind.Hook, hookErr)
	}

	toolCalls := make([]journal.ToolCall, 0, len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		toolCalls = append(toolCalls, journal.ToolCall{CallID: tc.CallID, Tool: tc.Tool, Arguments: tc.Arguments})
	}
	if err := e.append(journal.Thought, journal.ThoughtPayload{Text: reply.Text, ToolCalls: toolCalls}); err != nil {
		return Outcome{}, false, err
	}

	if len(toolCalls) == 0 {
		if err := e.append(journal.RunEnd, journal.RunEndPayload{Status: string(runctx.StatusCompleted)}); err != nil {
			return Outcome{}, false, err
		}
		if err := e.Run.SetStatus(runctx.StatusCompleted); err != nil {
			return Outcome{}, false, errkind.Wrap(errkind.Configuration, err)
		}
		return Outcome{Status: runctx.StatusCompleted}, true, nil
	}

	for _, tc := range toolCalls {
		suspended, suspendOutcome, err := e.runToolCall(ctx, tc)
		if err != nil {
			return Outcome{}, false, err
		}
		if suspended {
			return suspendOutcome, true, nil
		}
	}

	return Outcome{}, false, nil
}

// runToolCall executes a single ACTION_REQUEST/ACTION_RESULT pair,
// including the ask_human built-in's async suspension path.
func (e *Engine) runToolCall(ctx context.Context, tc journal.ToolCall) (suspended bool, outcome Outcome, err error) {
	if err := e.append(journal.ActionRequest, journal.ActionRequestPayload{CallID: tc.CallID, Tool: tc.Tool, Arguments: tc.Arguments}); err != nil {
		return false, Outcome{}, err
	}

	if hookErr := hookAbort(e.Hooks.Run(ctx, hooks.PreToolExec, tc)); hookErr != nil {
		return false, Outcome{}, errkind.Wrap(errkind.Hook, hookErr)
	}

	if tc.Tool == builtinAskHuman {
		suspended, outcome, err := e.runAskHuman(tc)
		if err != nil || suspended {
			return suspended, outcome, err
		}
	} else {
		toolCtx, span := e.Tracer.StartToolExec(ctx, tc.Tool, tc.CallID)
		result, invokeErr := e.Tools.Invoke(toolCtx, tc.CallID, tc.Tool, tc.Arguments)
		if invokeErr != nil {
			result = journal.ActionResultPayload{CallID: tc.CallID, ExitCode: -1, Error: invokeErr.Error()}
		}
		e.Tracer.EndToolExec(span, result.ExitCode, invokeErr)
		if err := e.append(journal.ActionResult, result); err != nil {
			return false, Outcome{}, err
		}
	}

	if hookErr := hookAbort(e.Hooks.Run(ctx, hooks.PostToolExec, tc)); hookErr != nil {
		return false, Outcome{}, errkind.Wrap(errkind.Hook, hookErr)
	}
	return false, Outcome{}, nil
}

func (e *Engine) runAskHuman(tc journal.ToolCall) (suspended bool, outcome Outcome, err error) {
	var req askhuman.Request
	if uerr := json.Unmarshal(tc.Arguments, &req); uerr != nil {
		return false, Outcome{}, errkind.Wrap(errkind.ToolInvocation, fmt.Errorf("ask_human arguments: %w", uerr))
	}

	if e.Interactive {
		result, serr := askhuman.AskSync(e.In, e.Out, tc.CallID, req)
		if serr != nil {
			return false, Outcome{}, serr
		}
		if err := e.append(journal.ActionResult, result); err != nil {
			return false, Outcome{}, err
		}
		return false, Outcome{}, nil
	}

	interactionDir := runctx.InteractionDir(e.Run.WorkDir, e.Run.RunID)
	if err := askhuman.RequestAsync(interactionDir, tc.CallID, req); err != nil {
		return false, Outcome{}, err
	}
	if err := e.append(journal.InteractionRequest, journal.InteractionPayload{
		Prompt: req.Prompt, InputType: string(req.InputType), Sensitive: req.Sensitive,
	}); err != nil {
		return false, Outcome{}, err
	}
	if err := e.Run.SetStatus(runctx.StatusWaitingForInput); err != nil {
		return false, Outcome{}, errkind.Wrap(errkind.Configuration, err)
	}
	return true, Outcome{Status: runctx.StatusWaitingForInput, Reason: "ask_human"}, nil
}

func (e *Engine) runOnErrorHook(ctx context.Context, cause error) {
	if _, err := e.Hooks.Run(ctx, hooks.OnError, struct {
		Error string `json:"error"`
	}{Error: cause.Error()}); err != nil && e.Log != nil {
		e.Log.Warn("on_error hook failed", "error", err)
	}
}

// hookAbort turns a hook run that stopped on a failed abort-policy hook
// into an error, so the iteration ends instead of continuing.
func hookAbort(outcomes []hooks.Outcome, err error) error {
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Aborted {
			return fmt.Errorf("hook %q failed and its on_failure policy is abort", o.Event.Name)
		}
	}
	return nil
}

type hookPayload struct {
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
}

func (e *Engine) append(typ journal.Type, payload interface{}) error {
	ev, err := e.Run.Journal.Append(typ, journal.Marshal(payload))
	if err != nil {
		return errkind.Wrap(errkind.JournalCorruption, err)
	}
	e.events = append(e.events, ev)
	return nil
}

func countThoughts(events []journal.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Type == journal.Thought {
			n++
		}
	}
	return n
}

// tailMessages keeps the messages of the last n iterations, each
// iteration starting at an assistant message.
func tailMessages(conv []conversation.Message, n int) []conversation.Message {
	if n <= 0 {
		return conv
	}
	seen := 0
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == conversation.RoleAssistant {
			seen++
			if seen == n {
				return conv[i:]
			}
		}
	}
	return conv
}

func buildMessages(conv []conversation.Message, contextText string) []llmclient.Message {
	messages := make([]llmclient.Message, 0, len(conv)+1)
	if contextText != "" {
		messages = append(messages, llmclient.Message{Role: llmclient.RoleSystem, Content: contextText})
	}
	for _, m := range conv {
		toolCalls := make([]llmclient.ToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			toolCalls = append(toolCalls, llmclient.ToolCall{CallID: tc.CallID, Tool: tc.Tool, Arguments: tc.Arguments})
		}
		messages = append(messages, llmclient.Message{
			Role:      llmclient.Role(m.Role),
			Content:   m.Text,
			ToolCalls: toolCalls,
			CallID:    m.CallID,
		})
	}
	return messages
}
