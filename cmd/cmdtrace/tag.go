package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmdtrace/internal/overlay"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags and their assignment to sessions",
	}
	cmd.AddCommand(newTagCreateCmd())
	cmd.AddCommand(newTagAddCmd())
	cmd.AddCommand(newTagRemoveCmd())
	cmd.AddCommand(newTagRenameCmd())
	cmd.AddCommand(newTagDeleteCmd())
	cmd.AddCommand(newTagParentCmd())
	cmd.AddCommand(newTagVisibleCmd())
	return cmd
}

func newTagCreateCmd() *cobra.Command {
	var (
		color     string
		important bool
		parent    string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create or update a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			tag, ok := a.overlay.Tag(args[0])
			if !ok {
				tag = overlay.TagInfo{Name: args[0]}
			}
			if cmd.Flags().Changed("color") {
				tag.Color = color
			}
			if cmd.Flags().Changed("important") {
				tag.Important = important
			}
			if cmd.Flags().Changed("parent") {
				tag.Parent = parent
			}
			return a.overlay.PutTag(cmd.Context(), tag)
		},
	}
	f := cmd.Flags()
	f.StringVar(&color, "color", overlay.DefaultTagColor, "display color")
	f.BoolVar(&important, "important", false, "show the tag in the default sidebar")
	f.StringVar(&parent, "parent", "", "parent tag (one level of nesting)")
	return cmd
}

func newTagAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <session-id> <tag>",
		Short: "Attach a tag to a session",
		Args:  cobra.ExactArgs(2),
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
			m, err := a.overlay.AddTag(ctx, s.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", s.ID, m.Tags)
			return nil
		},
	}
}

func newTagRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id> <tag>",
		Short: "Detach a tag from a session",
		Args:  cobra.ExactArgs(2),
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
			m, err := a.overlay.RemoveTag(ctx, s.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", s.ID, m.Tags)
			return nil
		},
	}
}

func newTagRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a tag everywhere it is used",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.overlay.RenameTag(cmd.Context(), args[0], args[1])
		},
	}
}

func newTagDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a tag and strip it from every session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.overlay.DeleteTag(cmd.Context(), args[0])
		},
	}
}

func newTagParentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parent <child> [parent]",
		Short: "Nest a tag under a parent, or clear its parent",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			parent := ""
			if len(args) == 2 {
				parent = args[1]
			}
			return a.overlay.SetTagParent(cmd.Context(), args[0], parent)
		},
	}
}

func newTagVisibleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visible [name...]",
		Short: "Pin the tags shown in the sidebar; no names restores the default",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range args {
				if _, ok := a.overlay.Tag(name); !ok {
					return fmt.Errorf("unknown tag %q", name)
				}
			}
			return a.store.SetVisibleTags(ctx, args)
		},
	}
}
