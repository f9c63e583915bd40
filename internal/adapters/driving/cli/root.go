// Package cli wires the tap's commands. Records go to stdout and
// nothing else does; user-facing prose and diagnostics stay on stderr.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentry-tap/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath  string
	statePath   string
	verboseMode bool
)

var rootCmd = &cobra.Command{
	Use:   "sentry-tap",
	Short: "Extract Sentry records as a resumable data stream",
	Long: `sentry-tap incrementally extracts projects, issues, events, users and
teams from a Sentry organization and writes them to stdout as
newline-delimited SCHEMA, RECORD and STATE messages. Bookmarks in the
emitted state let an interrupted or scheduled run resume where the
previous one started.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseMode)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the config file (default ~/.sentry-tap/config.toml)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "",
		"path to the state file or data directory, overriding the config")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false,
		"log diagnostics to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
