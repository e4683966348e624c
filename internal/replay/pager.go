package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

// RenderFunc produces the current timeline text on demand, so the
// live pager can re-render after the watched journal file changes.
type RenderFunc func() (string, error)

// RunPager shows content in a scrollable, searchable terminal pager.
func RunPager(title, content string) error {
	prog := tea.NewProgram(&pagerModel{title: title, content: content}, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := prog.Run()
	return err
}

// RunLivePager watches journalPath and re-renders via render whenever
// the file changes, so `delta replay --follow` can trail an in-progress run.
func RunLivePager(title, journalPath string, render RenderFunc) error {
	content, err := render()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(journalPath); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", journalPath, err)
	}

	prog := tea.NewProgram(
		&pagerModel{title: title, content: content, live: true, render: render, watcher: watcher},
		tea.WithAltScreen(), tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	watcher.Close()
	return err
}

var (
	pagerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("62")).
				Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pagerHelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type fileChangedMsg struct{}

type pagerModel struct {
	viewport       viewport.Model
	title          string
	content        string
	wrappedContent string
	ready          bool

	live    bool
	render  RenderFunc
	watcher *fsnotify.Watcher

	searching    bool
	searchInput  textinput.Model
	searchQuery  string
	searchLines  []int
	searchIndex  int
	searchFailed bool
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.watchFile()
	}
	return nil
}

func (m *pagerModel) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	if m.searching {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.executeSearch()
				if len(m.searchLines) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.searchQuery = ""
				m.searchLines = nil
				m.searchFailed = false
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case fileChangedMsg:
		if m.render != nil {
			if newContent, err := m.render(); err == nil {
				oldOffset := m.viewport.YOffset
				m.content = newContent
				m.wrappedContent = wrapContent(m.content, m.viewport.Width)
				m.viewport.SetContent(m.wrappedContent)
				if oldOffset <= m.viewport.TotalLineCount()-m.viewport.Height {
					m.viewport.YOffset = oldOffset
				}
				if m.searchQuery != "" {
					m.executeSearch()
				}
			}
		}
		cmds = append(cmds, m.watchFile())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.searchQuery != "" {
				m.searchQuery = ""
				m.searchLines = nil
				m.searchFailed = false
			} else {
				return m, tea.Quit
			}
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f", "F":
			if m.live {
				m.viewport.GotoBottom()
			}
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.Focus()
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			return m, textinput.Blink
		case "n":
			if len(m.searchLines) > 0 {
				m.searchIndex = (m.searchIndex + 1) % len(m.searchLines)
				m.jumpToMatch(m.searchIndex)
			}
		case "N":
			if len(m.searchLines) > 0 {
				m.searchIndex--
				if m.searchIndex < 0 {
					m.searchIndex = len(m.searchLines) - 1
				}
				m.jumpToMatch(m.searchIndex)
			}
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.wrappedContent = wrapContent(m.content, msg.Width)
			m.viewport.SetContent(m.wrappedContent)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
			m.wrappedContent = wrapContent(m.content, msg.Width)
			m.viewport.SetContent(m.wrappedContent)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) executeSearch() {
	m.searchLines = nil
	m.searchIndex = 0
	m.searchFailed = false
	if m.searchQuery == "" {
		return
	}
	query := strings.ToLower(m.searchQuery)
	for i, line := range strings.Split(m.wrappedContent, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.searchLines = append(m.searchLines, i)
		}
	}
	if len(m.searchLines) == 0 {
		m.searchFailed = true
	}
}

func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.searchLines) {
		return
	}
	target := m.searchLines[index] - m.viewport.Height/2
	if target < 0 {
		target = 0
	}
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if target > maxOffset {
		target = maxOffset
	}
	m.viewport.YOffset = target
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	headerLine := strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(headerLine))

	var footer string
	if m.searching {
		footer = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("/") + m.searchInput.View()
	} else {
		var help string
		switch {
		case m.searchFailed:
			help = fmt.Sprintf(" %s │ /: search ", errorStyle.Render("Pattern not found"))
		case len(m.searchLines) > 0:
			help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ",
				warnStyle.Render(fmt.Sprintf("[%d/%d]", m.searchIndex+1, len(m.searchLines))))
		case m.live:
			help = fmt.Sprintf(" %s │ q: quit │ /: search │ f: follow │ g/G: top/bottom ",
				lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render("● LIVE"))
		default:
			help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
		}
		info := " 100% "
		footer = pagerHelpStyle.Render(help) +
			pagerInfoStyle.Render(strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))) +
			pagerInfoStyle.Render(info)
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// wrapContent wraps each line to fit width, preserving simple
// indentation produced by format.go's event renderer.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}
	var result []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}
		wrapped := wordwrap.String(line, width)
		result = append(result, strings.Split(wrapped, "\n")...)
	}
	return strings.Join(result, "\n")
}
