package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deltaengine/delta/internal/journal"
)

// maxInlineContentSize truncates stdout/stderr/reasoning text rendered
// inline in the timeline, so one verbose tool call doesn't dominate
// the screen; the audit files under io/ still hold the untruncated
// record.
const maxInlineContentSize = 4000

func formatEvent(w io.Writer, index int, ev journal.Event) {
	seq := seqStyle.Render(fmt.Sprintf("%d", ev.Seq))
	ts := timeStyle.Render(ev.Timestamp.Format(time.TimeOnly))

	switch ev.Type {
	case journal.RunStart:
		fmt.Fprintf(w, "%s %s %s\n", seq, ts, titleStyle.Render("RUN START"))

	case journal.UserMessage:
		var p struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Fprintf(w, "%s %s %s %s\n", seq, ts, labelStyle.Render("USER"), valueStyle.Render(truncate(p.Text)))

	case journal.SystemMessage:
		var p struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Fprintf(w, "%s %s %s %s\n", seq, ts, systemStyle.Render("SYSTEM"), valueStyle.Render(truncate(p.Text)))

	case journal.Thought:
		var p journal.ThoughtPayload
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Fprintf(w, "%s %s %s %s\n", seq, ts, thoughtStyle.Render("THOUGHT"), valueStyle.Render(truncate(p.Text)))
		for _, tc := range p.ToolCalls {
			fmt.Fprintf(w, "      %s %s(%s)\n", blockHeaderStyle.Render("→ requests"), toolStyle.Render(tc.Tool), dimStyle.Render(tc.CallID))
		}

	case journal.ActionRequest:
		var p journal.ActionRequestPayload
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Fprintf(w, "%s %s %s %s %s\n", seq, ts, toolStyle.Render("ACTION_REQUEST"), valueStyle.Render(p.Tool), dimStyle.Render(string(p.Arguments)))

	case journal.ActionResult:
		var p journal.ActionResultPayload
		_ = json.Unmarshal(ev.Payload, &p)
		status := successStyle.Render(fmt.Sprintf("exit %d", p.ExitCode))
		if p.ExitCode != 0 || p.Error != "" {
			status = errorStyle.Render(fmt.Sprintf("exit %d", p.ExitCode))
		}
		fmt.Fprintf(w, "%s %s %s %s (%dms)\n", seq, ts, toolStyle.Render("ACTION_RESULT"), status, p.DurationMs)
		if p.Stdout != "" {
			fmt.Fprintf(w, "      %s\n", valueStyle.Render(indentLines(truncate(p.Stdout))))
		}
		if p.Stderr != "" {
			fmt.Fprintf(w, "      %s\n", errorStyle.Render(indentLines(truncate(p.Stderr))))
		}
		if p.Truncated {
			fmt.Fprintf(w, "      %s\n", warnStyle.Render("[output truncated]"))
		}
		if p.Interrupted {
			fmt.Fprintf(w, "      %s\n", warnStyle.Render("[action interrupted before completion]"))
		}

	case journal.HookExecuted:
		var p journal.HookExecutedPayload
		_ = json.Unmarshal(ev.Payload, &p)
		outcome := successStyle.Render("ok")
		if p.TimedOut {
			outcome = errorStyle.Render("timed out")
		} else if p.ExitCode != 0 {
			outcome = warnStyle.Render(fmt.Sprintf("exit %d", p.ExitCode))
		}
		fmt.Fprintf(w, "%s %s %s %s/%s %s (%dms)\n", seq, ts, hookStyle.Render("HOOK"), p.Point, p.Name, outcome, p.DurationMs)

	case journal.InteractionRequest:
		var p journal.InteractionPayload
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Fprintf(w, "%s %s %s %s\n", seq, ts, interactionStyle.Render("ASK_HUMAN"), valueStyle.Render(p.Prompt))

	case journal.InteractionResolve:
		var p journal.InteractionPayload
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Fprintf(w, "%s %s %s %s\n", seq, ts, interactionStyle.Render("ANSWERED"), valueStyle.Render(truncate(p.Answer)))

	case journal.RunEnd:
		var p journal.RunEndPayload
		_ = json.Unmarshal(ev.Payload, &p)
		style := successStyle
		if p.Status != "completed" {
			style = errorStyle
		}
		line := style.Render(fmt.Sprintf("RUN END: %s", p.Status))
		if p.Reason != "" {
			line += " " + dimStyle.Render(fmt.Sprintf("(%s)", p.Reason))
		}
		fmt.Fprintf(w, "%s %s %s\n", seq, ts, line)

	default:
		fmt.Fprintf(w, "%s %s %s\n", seq, ts, dimStyle.Render(string(ev.Type)))
	}
}

func truncate(s string) string {
	if len(s) <= maxInlineContentSize {
		return s
	}
	return s[:maxInlineContentSize] + "… [truncated for display]"
}

func indentLines(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n      ")
}
