// Package cmd wires the verso CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verso-build/verso/internal/output"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "verso",
	Short: "Verso: version-namespaced source tree rewriting",
	Long: `Verso rewrites a library source tree into a version-namespaced copy:
package identifiers gain a version prefix, sources relocate under the
versioned package root, and version-gated regions are stripped.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.SetupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "verso.hcl", "Path to transform configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
