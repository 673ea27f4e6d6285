// Package export renders sessions as markdown, for files on disk and for
// the TUI detail pane.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cmdtrace/internal/clipboard"
	"cmdtrace/internal/index"
	"cmdtrace/internal/overlay"
)

type Exporter struct {
	overrideDir string
	cwd         string
	now         func() time.Time
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd, now: time.Now}, nil
}

// Session writes the detail document for one session and returns its path.
func (e *Exporter) Session(s index.Session, m overlay.Metadata) (string, error) {
	path := e.outputPath(s.Project, safeFileName(s.ID)+".md")
	return path, write(path, BuildSessionMarkdown(s, m, e.now().UTC()))
}

// Listing writes a table of sessions, typically a filtered view, under name.
func (e *Exporter) Listing(name, query string, sessions []index.Session, meta func(id string) overlay.Metadata) (string, error) {
	path := e.outputPath("", safeFileName(name)+".md")
	return path, write(path, BuildListingMarkdown(query, sessions, meta, e.now().UTC()))
}

func write(path, md string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// DisplayTitle prefers the user's custom name over the parsed title.
func DisplayTitle(s index.Session, m overlay.Metadata) string {
	if m.CustomName != "" {
		return m.CustomName
	}
	return s.Title
}

func BuildSessionMarkdown(s index.Session, m overlay.Metadata, now time.Time) string {
	var b strings.Builder
	b.WriteString("# " + escapeInline(DisplayTitle(s, m)) + "\n\n")
	if m.CustomName != "" && m.CustomName != s.Title {
		b.WriteString("_Originally: " + escapeInline(s.Title) + "_\n\n")
	}
	if !now.IsZero() {
		b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	}

	b.WriteString("```text\n")
	b.WriteString("id: " + s.ID + "\n")
	b.WriteString("source: " + safeValue(string(s.Source)) + "\n")
	b.WriteString("project: " + safeValue(s.Project) + "\n")
	b.WriteString(fmt.Sprintf("message_count: %d\n", s.MessageCount))
	if s.FirstTimestamp != nil {
		b.WriteString("started: " + s.FirstTimestamp.Format(time.RFC3339) + "\n")
	}
	b.WriteString("last_activity: " + s.LastActivity.Format(time.RFC3339) + "\n")
	b.WriteString("file: " + safeValue(s.Locator.Path()) + "\n")
	b.WriteString("```\n\n")

	if flags := flagList(m); flags != "" {
		b.WriteString("**Status:** " + flags + "\n\n")
	}
	if len(m.Tags) > 0 {
		tags := make([]string, len(m.Tags))
		for i, t := range m.Tags {
			tags[i] = "`" + t + "`"
		}
		b.WriteString("**Tags:** " + strings.Join(tags, " ") + "\n\n")
	}

	b.WriteString("## First message\n\n")
	if s.Preview == "" {
		b.WriteString("_No text content._\n\n")
	} else {
		b.WriteString("> " + s.Preview + "\n\n")
	}

	b.WriteString("## Resume\n\n")
	b.WriteString("```sh\n" + clipboard.ResumeCommand(s) + "\n```\n")
	return b.String()
}

func BuildListingMarkdown(query string, sessions []index.Session, meta func(id string) overlay.Metadata, now time.Time) string {
	if meta == nil {
		meta = func(string) overlay.Metadata { return overlay.Metadata{} }
	}
	var b strings.Builder
	b.WriteString("# Sessions\n\n")
	if q := strings.TrimSpace(query); q != "" {
		b.WriteString("Query: `" + q + "`\n\n")
	}
	b.WriteString(fmt.Sprintf("Exported: %s, %d sessions\n\n", now.Format(time.RFC3339), len(sessions)))
	b.WriteString("| Title | Project | Source | Messages | Last activity | Tags |\n")
	b.WriteString("|---|---|---|---:|---|---|\n")
	for _, s := range sessions {
		m := meta(s.ID)
		title := escapeCell(DisplayTitle(s, m))
		if m.Pinned {
			title = "📌 " + title
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s |\n",
			title,
			escapeCell(safeValue(s.ProjectName())),
			s.Source,
			s.MessageCount,
			s.LastActivity.Format("2006-01-02 15:04"),
			escapeCell(strings.Join(m.Tags, ", ")),
		))
	}
	return b.String()
}

func flagList(m overlay.Metadata) string {
	var flags []string
	if m.Pinned {
		flags = append(flags, "pinned")
	}
	if m.Favorite {
		flags = append(flags, "favorite")
	}
	if m.Archived {
		label := "archived"
		if m.ArchivedAt != nil {
			label += " " + m.ArchivedAt.Format(time.DateOnly)
		}
		flags = append(flags, label)
	}
	return strings.Join(flags, ", ")
}

// outputPath places exports in the override dir, else under docs/sessions
// of the repository containing project, else of the working directory.
func (e *Exporter) outputPath(project, file string) string {
	if e.overrideDir != "" {
		dir := e.overrideDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(e.cwd, dir)
		}
		return filepath.Join(dir, file)
	}

	root := e.cwd
	if repoRoot := findRepoRoot(project); repoRoot != "" {
		root = repoRoot
	}
	return filepath.Join(root, "docs", "sessions", file)
}

func findRepoRoot(start string) string {
	if start == "" {
		return ""
	}
	path := filepath.Clean(start)
	for {
		if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return ""
		}
		path = parent
	}
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func escapeInline(s string) string {
	return strings.NewReplacer("\n", " ", "#", `\#`).Replace(s)
}
