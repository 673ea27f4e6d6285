package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cmdtrace/internal/aggregate"
	"cmdtrace/internal/format"
	"cmdtrace/internal/query"
)

type listOptions struct {
	format    string
	tag       string
	source    string
	archived  bool
	favorites bool
	noHeader  bool
	limit     int
}

func newListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List sessions matching a query, pinned first then newest",
		Long: `List sessions matching a query.

The query is free text or one operator prefix:
  title:  tag:  project:  content:  date:  regex:  messages:

Examples:
  cmdtrace list "date:week"
  cmdtrace list "messages:>=10"
  cmdtrace list --tag backend "parser"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, strings.Join(args, " "))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "table", "output format: table, plain, json, or jsonl")
	f.StringVar(&opts.tag, "tag", "", "only sessions carrying this tag")
	f.StringVar(&opts.source, "source", "", "claude or opencode (default: both)")
	f.BoolVar(&opts.archived, "archived", false, "include archived sessions")
	f.BoolVar(&opts.favorites, "favorites", false, "only favorite sessions")
	f.BoolVar(&opts.noHeader, "no-header", false, "omit header row for plain output")
	f.IntVar(&opts.limit, "limit", 0, "limit number of sessions printed (0 means no limit)")
	return cmd
}

func runList(cmd *cobra.Command, opts listOptions, search string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.sessions(ctx, opts.source)
	if err != nil {
		return err
	}
	res := query.Filter(sessions, query.Request{
		Search:        search,
		Tag:           opts.tag,
		ShowArchived:  opts.archived,
		FavoritesOnly: opts.favorites,
		Now:           time.Now(),
	}, a.overlay)
	if res.Err != nil {
		return res.Err
	}

	visible := res.Sessions
	if opts.limit > 0 && len(visible) > opts.limit {
		visible = visible[:opts.limit]
	}
	rows := make([]format.SessionRow, 0, len(visible))
	for _, s := range visible {
		rows = append(rows, format.SessionRow{Session: s, Metadata: a.overlay.Metadata(s.ID)})
	}
	return format.WriteSessions(cmd.OutOrStdout(), rows, !opts.noHeader, strings.ToLower(opts.format))
}

func newTagsCmd() *cobra.Command {
	var (
		sortFlag   string
		formatFlag string
		visible    bool
	)

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with usage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			mode := a.cfg.TagSort
			if sortFlag != "" {
				mode = sortFlag
			}
			sortMode, err := aggregate.ParseSortMode(mode)
			if err != nil {
				return err
			}
			listed := aggregate.ListTags(a.overlay.Tags(), a.overlay.UsageCounts(), sortMode)
			if visible {
				pinned, err := a.store.VisibleTags(ctx)
				if err != nil {
					return err
				}
				listed = aggregate.VisibleTags(listed, pinned)
			}
			return format.WriteTags(cmd.OutOrStdout(), listed, strings.ToLower(formatFlag))
		},
	}

	f := cmd.Flags()
	f.StringVar(&sortFlag, "sort", "", "importance, alphabetical, usage-desc or usage-asc (default from config)")
	f.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	f.BoolVar(&visible, "visible", false, "only the tags shown in the sidebar")
	return cmd
}

func newProjectsCmd() *cobra.Command {
	var (
		source     string
		formatFlag string
	)

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Summarize sessions per project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.sessions(ctx, source)
			if err != nil {
				return err
			}
			stats := aggregate.Projects(sessions, time.Local)
			return format.WriteProjects(cmd.OutOrStdout(), stats, strings.ToLower(formatFlag))
		},
	}

	f := cmd.Flags()
	f.StringVar(&source, "source", "", "claude or opencode (default: both)")
	f.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	return cmd
}
