package replay

import (
	"fmt"
	"strings"

	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/runctx"
)

// Render builds the full plain-text timeline for one run: header,
// chronological event list, and a closing summary line.
func Render(meta runctx.Metadata, events []journal.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render("RUN"), valueStyle.Render(meta.RunID))
	fmt.Fprintln(&b, divider)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Agent:  "), valueStyle.Render(meta.AgentPath))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Status: "), statusStyle(meta.Status).Render(string(meta.Status)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Created:"), valueStyle.Render(meta.CreatedAt.Format("2006-01-02 15:04:05")))
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(events))))
	fmt.Fprintln(&b, divider)
	for i, ev := range events {
		formatEvent(&b, i+1, ev)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, divider)
	fmt.Fprintln(&b, summaryLine(meta, events))

	return b.String()
}

func statusStyle(status runctx.Status) interface {
	Render(...string) string
} {
	switch status {
	case runctx.StatusCompleted:
		return successStyle
	case runctx.StatusFailed:
		return errorStyle
	case runctx.StatusWaitingForInput, runctx.StatusInterrupted:
		return warnStyle
	default:
		return valueStyle
	}
}

func summaryLine(meta runctx.Metadata, events []journal.Event) string {
	toolCalls, hookRuns := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case journal.ActionRequest:
			toolCalls++
		case journal.HookExecuted:
			hookRuns++
		}
	}
	body := fmt.Sprintf("%d tool calls, %d hook runs", toolCalls, hookRuns)
	return statusStyle(meta.Status).Render(strings.ToUpper(string(meta.Status))) + " " + dimStyle.Render(body)
}
