package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"cmdtrace/internal/logging"
)

type globalFlags struct {
	configPath   string
	claudeHome   string
	openCodeHome string
	dbPath       string
	logLevel     string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "cmdtrace",
	Short:         "Browse, search and organize Claude Code and OpenCode sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
			return runTUI(cmd.Context())
		}
		return runList(cmd, listOptions{format: "plain"}, "")
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config.yml")
	pf.StringVar(&flags.claudeHome, "claude-home", "", "override the Claude home directory")
	pf.StringVar(&flags.openCodeHome, "opencode-home", "", "override the OpenCode data directory")
	pf.StringVar(&flags.dbPath, "db-path", "", "override the metadata database path")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newTagsCmd())
	rootCmd.AddCommand(newProjectsCmd())
	rootCmd.AddCommand(newTagCmd())
	rootCmd.AddCommand(newMarkCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newExportCmd())
}

func main() {
	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cmdtrace: %v\n", err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
