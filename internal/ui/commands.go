package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"cmdtrace/internal/clipboard"
	"cmdtrace/internal/config"
	"cmdtrace/internal/export"
	"cmdtrace/internal/highlight"
	"cmdtrace/internal/index"
	"cmdtrace/internal/library"
	"cmdtrace/internal/overlay"
)

func (m Model) reloadCmd(ticket library.Ticket) tea.Cmd {
	lib := m.lib
	return func() tea.Msg {
		sessions, err := lib.Reload(context.Background(), ticket.Kind)
		return sessionsMsg{ticket: ticket, sessions: sessions, err: err}
	}
}

func (m Model) backgroundReloadCmd(kind index.SourceKind) tea.Cmd {
	lib := m.lib
	return func() tea.Msg {
		_, err := lib.Reload(context.Background(), kind)
		return backgroundLoadedMsg{kind: kind, err: err}
	}
}

func (m Model) warmUpCmd() tea.Cmd {
	lib := m.lib
	return func() tea.Msg {
		return warmUpMsg{errs: lib.WarmUp(context.Background())}
	}
}

// watchCmd waits for the next change reported by the watcher.
func (m Model) watchCmd() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		kind, ok := <-changes
		if !ok {
			return nil
		}
		return sourceChangedMsg{kind: kind}
	}
}

func (m Model) exportCmd() tea.Cmd {
	s, ok := m.selected()
	if !ok || m.exporter == nil {
		return nil
	}
	meta := m.overlay.Metadata(s.ID)
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Session(s, meta)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	s, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		command, err := clipboard.CopyResume(ctx, s)
		return copyMsg{command: command, err: err}
	}
}

func (m *Model) renderSelected(force bool) tea.Cmd {
	s, ok := m.selected()
	if !ok {
		if len(m.visible) > 0 {
			m.viewport.SetContent("No session selected")
		}
		m.clearMatches()
		return nil
	}

	meta := m.overlay.Metadata(s.ID)
	cacheKey := m.renderCacheKey(s, meta)
	if !force {
		if rendered, ok := m.rendered[cacheKey]; ok {
			m.setViewportFromRendered(rendered, false)
			return nil
		}
	}
	m.rendering = true
	m.renderNonce++
	wrap := m.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	return renderDetailCmd(s, meta, cacheKey, wrap, m.renderNonce)
}

func renderDetailCmd(s index.Session, meta overlay.Metadata, cacheKey string, wrap, nonce int) tea.Cmd {
	return func() tea.Msg {
		md := export.BuildSessionMarkdown(s, meta, time.Time{})
		out := renderMsg{sessionID: s.ID, cacheKey: cacheKey, rendered: md, nonce: nonce}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return out
		}
		if rendered, err := r.Render(md); err == nil {
			out.rendered = rendered
		}
		return out
	}
}

// renderCacheKey changes whenever anything shown in the detail pane does.
func (m Model) renderCacheKey(s index.Session, meta overlay.Metadata) string {
	archived := ""
	if meta.ArchivedAt != nil {
		archived = meta.ArchivedAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%d|w=%d|%t%t%t|%s|%s|%s",
		s.ID, s.LastActivity.UnixMilli(), m.viewport.Width,
		meta.Pinned, meta.Favorite, meta.Archived, archived,
		meta.CustomName, strings.Join(meta.Tags, ","))
}

func (m *Model) setViewportFromRendered(rendered string, gotoTop bool) {
	content := rendered
	if m.highlightTerm != "" {
		res := highlight.ApplyANSI(rendered, m.highlightTerm, func(s string) string {
			return searchMatchStyle.Render(s)
		})
		content = res.Text
		m.setMatchMeta(res)
	} else {
		m.clearMatches()
	}

	m.viewport.SetContent(content)
	if gotoTop {
		m.viewport.GotoTop()
		if len(m.matchLines) > 0 {
			m.matchIndex = 0
			m.viewport.SetYOffset(m.clampViewportOffset(m.matchLines[0]))
		}
	}
}

func (m *Model) setMatchMeta(res highlight.Result) {
	if res.Count == 0 || len(res.LineIndex) == 0 {
		m.clearMatches()
		return
	}
	m.matchCount = res.Count
	m.matchLines = append(m.matchLines[:0], res.LineIndex...)
	if m.matchIndex < 0 || m.matchIndex >= len(m.matchLines) {
		m.matchIndex = 0
	}
}

func (m *Model) clearMatches() {
	m.matchLines = nil
	m.matchCount = 0
	m.matchIndex = -1
}

func (m *Model) jumpToMatch(delta int) {
	if len(m.matchLines) == 0 {
		m.status = "No search matches in detail"
		return
	}

	if m.matchIndex < 0 || m.matchIndex >= len(m.matchLines) {
		m.matchIndex = 0
	} else if delta > 0 {
		m.matchIndex = (m.matchIndex + 1) % len(m.matchLines)
	} else if delta < 0 {
		m.matchIndex = (m.matchIndex - 1 + len(m.matchLines)) % len(m.matchLines)
	}

	line := m.matchLines[m.matchIndex]
	m.viewport.SetYOffset(m.clampViewportOffset(line))
	m.status = fmt.Sprintf("Match %d/%d", m.matchIndex+1, m.matchCount)
}

func (m *Model) clampViewportOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}
