// Package cli implements the atlas command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/atlas/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configDir   string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Versioned document store with change tracking",
	Long: `Atlas ingests hierarchical documents from external sources,
stores every element as append-only versions, and computes structure
and content diffs between consecutive snapshots.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.atlas)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
