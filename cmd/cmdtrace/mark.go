package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cmdtrace/internal/overlay"
)

func newMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Toggle favorite, pinned or archived on a session",
	}
	cmd.AddCommand(newToggleCmd("favorite", "Toggle favorite", func(ov *overlay.State) toggleFunc { return ov.ToggleFavorite }))
	cmd.AddCommand(newToggleCmd("pin", "Toggle pinned", func(ov *overlay.State) toggleFunc { return ov.TogglePin }))
	cmd.AddCommand(newToggleCmd("archive", "Toggle archived", func(ov *overlay.State) toggleFunc { return ov.ToggleArchive }))
	return cmd
}

type toggleFunc func(ctx context.Context, id string) (overlay.Metadata, error)

func newToggleCmd(name, short string, pick func(*overlay.State) toggleFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.findSession(ctx, args[0])
			if err != nil {
				return err
			}
			m, err := pick(a.overlay)(ctx, s.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: favorite=%t pinned=%t archived=%t\n", s.ID, m.Favorite, m.Pinned, m.Archived)
			return nil
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> [name]",
		Short: "Set a custom display name; no name clears it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.findSession(ctx, args[0])
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			_, err = a.overlay.SetCustomName(ctx, s.ID, name)
			return err
		},
	}
}
