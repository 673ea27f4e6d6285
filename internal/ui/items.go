package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"cmdtrace/internal/export"
	"cmdtrace/internal/index"
	"cmdtrace/internal/overlay"
)

const titleWidth = 60

type sessionItem struct {
	s    index.Session
	meta overlay.Metadata
	now  time.Time
}

func (i sessionItem) Title() string {
	var b strings.Builder
	if i.meta.Pinned {
		b.WriteString("📌 ")
	}
	if i.meta.Favorite {
		b.WriteString("★ ")
	}
	if i.meta.Archived {
		b.WriteString("[archived] ")
	}
	b.WriteString(export.DisplayTitle(i.s, i.meta))
	return ansi.Truncate(b.String(), titleWidth, "…")
}

func (i sessionItem) Description() string {
	parts := []string{
		relativeTime(i.s.LastActivity, i.now),
		fmt.Sprintf("%d msgs", i.s.MessageCount),
	}
	if name := i.s.ProjectName(); name != "" {
		parts = append(parts, name)
	}
	if len(i.meta.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(i.meta.Tags, " #"))
	}
	if i.s.Preview != "" {
		parts = append(parts, i.s.Preview)
	}
	return strings.Join(parts, " | ")
}

func (i sessionItem) FilterValue() string {
	return strings.ToLower(i.s.Title + " " + i.meta.CustomName + " " + i.s.Project)
}

func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.In(now.Location()).Format("2006-01-02")
	}
}
