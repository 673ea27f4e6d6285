// Package format writes session listings, tag listings and project stats
// as tables, tab-separated text or JSON.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cmdtrace/internal/aggregate"
	"cmdtrace/internal/index"
	"cmdtrace/internal/overlay"
)

// Formats accepted by the writers.
var Formats = []string{"table", "plain", "json", "jsonl"}

// SessionRow is a session with its overlay state.
type SessionRow struct {
	index.Session
	Metadata overlay.Metadata `json:"metadata"`
}

func (r SessionRow) DisplayTitle() string {
	if r.Metadata.CustomName != "" {
		return r.Metadata.CustomName
	}
	return r.Title
}

func (r SessionRow) flags() string {
	var b strings.Builder
	if r.Metadata.Pinned {
		b.WriteString("P")
	}
	if r.Metadata.Favorite {
		b.WriteString("*")
	}
	if r.Metadata.Archived {
		b.WriteString("A")
	}
	return b.String()
}

func checkFormat(format string) (string, error) {
	format = strings.ToLower(format)
	if format == "" {
		return "table", nil
	}
	for _, f := range Formats {
		if f == format {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", format)
}

func WriteSessions(w io.Writer, rows []SessionRow, includeHeader bool, format string) error {
	format, err := checkFormat(format)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		return writeJSON(w, rows)
	case "jsonl":
		return writeJSONL(w, rows)
	case "plain":
		lines := make([][]string, 0, len(rows)+1)
		if includeHeader {
			lines = append(lines, []string{"last_activity", "id", "source", "messages", "flags", "tags", "project", "title"})
		}
		for _, r := range rows {
			lines = append(lines, []string{
				r.LastActivity.Format(time.RFC3339),
				r.ID,
				string(r.Source),
				fmt.Sprint(r.MessageCount),
				r.flags(),
				strings.Join(r.Metadata.Tags, ","),
				r.Project,
				escapeNewlines(r.DisplayTitle()),
			})
		}
		return writePlain(w, lines)
	}

	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 30},
		{Number: 7, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})
	if includeHeader {
		tw.AppendHeader(table.Row{"Last activity", "", "Title", "Project", "Messages", "Tags", "Source"})
	}
	for _, r := range rows {
		tw.AppendRow(table.Row{
			r.LastActivity.Format("2006-01-02 15:04"),
			r.flags(),
			escapeNewlines(r.DisplayTitle()),
			r.ProjectName(),
			r.MessageCount,
			strings.Join(r.Metadata.Tags, ", "),
			r.Source,
		})
	}
	if len(rows) == 0 {
		tw.AppendRow(table.Row{"-", "", "(no sessions)", "-", 0, "", "-"})
	}
	tw.Render()
	return nil
}

func WriteTags(w io.Writer, tags []aggregate.TagCount, format string) error {
	format, err := checkFormat(format)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		return writeJSON(w, tags)
	case "jsonl":
		return writeJSONL(w, tags)
	case "plain":
		lines := [][]string{{"name", "count", "important", "parent", "color"}}
		for _, t := range tags {
			lines = append(lines, []string{t.Name, fmt.Sprint(t.Count), fmt.Sprint(t.Important), t.Parent, t.Color})
		}
		return writePlain(w, lines)
	}

	tw := newTable(w)
	tw.AppendHeader(table.Row{"Tag", "Sessions", "Important", "Parent", "Color"})
	for _, t := range tags {
		important := ""
		if t.Important {
			important = "yes"
		}
		tw.AppendRow(table.Row{t.Name, t.Count, important, t.Parent, t.Color})
	}
	if len(tags) == 0 {
		tw.AppendRow(table.Row{"(no tags)", 0, "", "", ""})
	}
	tw.Render()
	return nil
}

func WriteProjects(w io.Writer, projects []aggregate.ProjectStats, format string) error {
	format, err := checkFormat(format)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		return writeJSON(w, projects)
	case "jsonl":
		return writeJSONL(w, projects)
	case "plain":
		lines := [][]string{{"project", "sessions", "messages", "mean", "active_days", "first", "last"}}
		for _, p := range projects {
			lines = append(lines, []string{
				p.Project,
				fmt.Sprint(p.Sessions),
				fmt.Sprint(p.TotalMessages),
				fmt.Sprintf("%.1f", p.MeanMessages()),
				fmt.Sprint(p.ActiveDays),
				p.FirstActivity.Format(time.RFC3339),
				p.LastActivity.Format(time.RFC3339),
			})
		}
		return writePlain(w, lines)
	}

	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	tw.AppendHeader(table.Row{"Project", "Sessions", "Messages", "Mean", "Active days", "First", "Last"})
	for _, p := range projects {
		tw.AppendRow(table.Row{
			p.Project,
			p.Sessions,
			p.TotalMessages,
			fmt.Sprintf("%.1f", p.MeanMessages()),
			p.ActiveDays,
			p.FirstActivity.Format(time.DateOnly),
			p.LastActivity.Format(time.DateOnly),
		})
	}
	if len(projects) == 0 {
		tw.AppendRow(table.Row{"(no projects)", 0, 0, "-", 0, "-", "-"})
	}
	tw.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

func writePlain(w io.Writer, lines [][]string) error {
	for _, fields := range lines {
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}
