// Package replay renders a run's journal as a human-readable timeline,
// both as plain text and as an interactive terminal pager. Grounded on
// the teacher's internal/replay package: its component color scheme
// (styles.go), its header/timeline/summary structure
// (replayer.go), and its bubbletea-based interactive pager
// (src/internal/replay/pager.go, from the teacher's now-superseded
// tree — the one place in the pack implementing a scrollable,
// searchable, live-reloading viewport), adapted from session/workflow
// vocabulary to journal events.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	// THOUGHT - the main LLM reasoning flow - white
	thoughtStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	// ACTION_REQUEST / ACTION_RESULT - tools - blue
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	// HOOK_EXECUTED - yellow
	hookStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	// INTERACTION_REQUESTED / INTERACTION_RESOLVED - cyan
	interactionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("14"))

	// SYSTEM_MESSAGE - orange
	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	blockHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8")).
				Italic(true)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)
