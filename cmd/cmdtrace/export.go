package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cmdtrace/internal/export"
	"cmdtrace/internal/query"
)

func newExportCmd() *cobra.Command {
	var (
		dir      string
		search   string
		tag      string
		source   string
		archived bool
	)

	cmd := &cobra.Command{
		Use:   "export [session-id]",
		Short: "Write a session, or a filtered listing, as markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if dir == "" {
				dir = a.cfg.ExportDir
			}
			exp, err := export.New(dir)
			if err != nil {
				return err
			}

			var path string
			if len(args) == 1 {
				s, err := a.findSession(ctx, args[0])
				if err != nil {
					return err
				}
				path, err = exp.Session(s, a.overlay.Metadata(s.ID))
				if err != nil {
					return err
				}
			} else {
				sessions, err := a.sessions(ctx, source)
				if err != nil {
					return err
				}
				res := query.Filter(sessions, query.Request{
					Search:       search,
					Tag:          tag,
					ShowArchived: archived,
					Now:          time.Now(),
				}, a.overlay)
				if res.Err != nil {
					return res.Err
				}
				path, err = exp.Listing("sessions", search, res.Sessions, a.overlay.Metadata)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "output directory (default: docs/sessions in the repo root)")
	f.StringVar(&search, "query", "", "filter the listing with a query")
	f.StringVar(&tag, "tag", "", "only sessions carrying this tag")
	f.StringVar(&source, "source", "", "claude or opencode (default: both)")
	f.BoolVar(&archived, "archived", false, "include archived sessions")
	return cmd
}
