package app

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quietlibrary/search"
)

var (
	tuiAppStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7"))

	tuiSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1a1b26")).
				Background(lipgloss.Color("#7aa2f7")).
				Bold(true)
)

// searchDoneMsg carries the outcome of a background search.
type searchDoneMsg struct {
	query   string
	results []search.Result
	scanned bool
	err     error
}

type tuiModel struct {
	env *appEnv

	query     string
	results   []search.Result
	selected  int
	searching bool
	scanned   bool
	status    string
	quitting  bool

	width  int
	height int
}

// runTUI starts the interactive search screen.
func runTUI(env *appEnv) error {
	m := tuiModel{
		env:    env,
		status: "Type a query and press enter.",
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case searchDoneMsg:
		m.searching = false
		if msg.query != m.query {
			// A newer query superseded this search.
			return m, nil
		}
		if msg.err != nil {
			m.status = "Search failed: " + msg.err.Error()
			m.results = nil
			return m, nil
		}
		m.results = msg.results
		m.selected = 0
		m.scanned = msg.scanned
		if len(msg.results) == 0 {
			m.status = "No matches."
		} else {
			m.status = fmt.Sprintf("%d results", len(msg.results))
			if msg.scanned {
				m.status += "  (no index yet, scanned folders directly)"
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if strings.TrimSpace(m.query) == "" || m.searching {
				return m, nil
			}
			m.searching = true
			m.status = "Searching..."
			return m, m.runSearch(m.query)
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down":
			if m.selected < len(m.results)-1 {
				m.selected++
			}
			return m, nil
		case "backspace":
			if len(m.query) > 0 {
				rs := []rune(m.query)
				m.query = string(rs[:len(rs)-1])
			}
			return m, nil
		default:
			if msg.Type == tea.KeyRunes {
				m.query += string(msg.Runes)
			} else if msg.Type == tea.KeySpace {
				m.query += " "
			}
			return m, nil
		}
	}
	return m, nil
}

func (m tuiModel) runSearch(query string) tea.Cmd {
	env := m.env
	return func() tea.Msg {
		results, err := env.sctx.Search(query, env.settings.SearchLimit)
		scanned := false
		if errors.Is(err, search.ErrIndexUnavailable) {
			results, err = scanSearch(env.sctx, env.store, query, env.settings.SearchLimit)
			scanned = true
		}
		return searchDoneMsg{query: query, results: results, scanned: scanned, err: err}
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("quietlibrary") + "\n")
	b.WriteString(infoStyle.Render("Search: ") + m.query + "█\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", max(20, m.width-6))) + "\n")

	visible := m.visibleRows()
	start := 0
	if m.selected >= visible {
		start = m.selected - visible + 1
	}
	for i := start; i < len(m.results) && i < start+visible; i++ {
		b.WriteString(m.renderRow(i) + "\n")
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", max(20, m.width-6))) + "\n")
	b.WriteString(infoStyle.Render(m.status) + "\n")
	b.WriteString(separatorStyle.Render("enter search • ↑/↓ select • esc quit"))

	return tuiAppStyle.Render(b.String())
}

func (m tuiModel) renderRow(i int) string {
	r := m.results[i]
	head := r.Title
	if r.Page != nil {
		head += fmt.Sprintf(" (page %d)", *r.Page)
	}
	if i == m.selected {
		head = tuiSelectedStyle.Render(head)
	} else {
		head = headerStyle.Render(head)
	}

	snippet := r.Snippet
	if w := m.width - 10; w > 10 {
		if rs := []rune(snippet); len(rs) > w {
			snippet = string(rs[:w]) + "…"
		}
	}
	return head + "\n" + pathStyle.Render("  "+r.Path) + "\n" + infoStyle.Render("  "+snippet)
}

// visibleRows is how many results fit, three lines each plus chrome.
func (m tuiModel) visibleRows() int {
	rows := (m.height - 8) / 3
	if rows < 1 {
		rows = 1
	}
	return rows
}
