package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"cmdtrace/internal/index"
)

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()

	bodyHeight := m.height - 2
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	m.list.SetSize(left-2, bodyHeight-2)
	m.viewport.Width = right - 2
	m.viewport.Height = bodyHeight - 2
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	left, right := m.paneWidths()
	leftPane := panelStyle(m.focusOnList).Width(left).Height(m.height - 2).Render(m.list.View())
	rightPane := panelStyle(!m.focusOnList).Width(right).Height(m.height - 2).Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	helpView := m.help.View(m.keys)
	if m.searchMode {
		helpView = m.search.View() + "  " + helpView
	} else if m.searchQuery != "" {
		helpView = "search: " + m.searchQuery + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		ansi.Truncate(helpView, m.width, "…"),
	)
}

func (m Model) sourceTabs() string {
	tabs := make([]string, 0, len(index.Kinds))
	for _, k := range index.Kinds {
		if k == m.source {
			tabs = append(tabs, activeTabStyle.Render(string(k)))
		} else {
			tabs = append(tabs, string(k))
		}
	}
	return strings.Join(tabs, " ")
}

func (m Model) statusLine() string {
	var b strings.Builder
	b.WriteString(m.sourceTabs())
	if m.loading {
		b.WriteString("  " + m.spinner.View() + " loading")
	}
	b.WriteString(fmt.Sprintf("  %d/%d", len(m.visible), len(m.all)))
	if m.tagFilter != "" {
		b.WriteString("  [tag " + m.tagFilter + "]")
	}
	if m.favoritesOnly {
		b.WriteString("  [favorites]")
	}
	if m.showArchived {
		b.WriteString("  [+archived]")
	}
	if m.highlightTerm != "" {
		if m.matchCount > 0 {
			cur := m.matchIndex + 1
			if cur < 1 {
				cur = 1
			}
			b.WriteString(fmt.Sprintf("  [match %d/%d]", cur, m.matchCount))
		} else {
			b.WriteString("  [match 0]")
		}
	}
	if m.rendering {
		b.WriteString("  [rendering]")
	}
	if s := strings.TrimSpace(m.status); s != "" {
		b.WriteString("  " + ansi.Truncate(s, 80, "…"))
	}
	if m.err != nil {
		b.WriteString("  err=" + m.err.Error())
	}
	line := b.String()
	if m.width > 0 {
		line = ansi.Truncate(line, m.width-2, "…")
	}
	return statusStyle.Render(line)
}

func (m *Model) paneWidths() (int, int) {
	left := m.width * 2 / 5
	if left < 32 {
		left = 32
	}
	if left > m.width-32 {
		left = m.width - 32
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left - 1
	if right < 20 {
		right = 20
	}
	return left, right
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
	searchMatchStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("16")).
				Background(lipgloss.Color("220"))
)

func panelStyle(active bool) lipgloss.Style {
	color := lipgloss.Color("240")
	if active {
		color = lipgloss.Color("39")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true).
		BorderForeground(color).
		Padding(0, 1)
}
