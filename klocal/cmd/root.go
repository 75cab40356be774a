// Package cmd provides the command-line interface of klocal.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "klocal",
	Short: "klocal anneals higher-order binary and spin energy models.",
	Long: `klocal anneals higher-order binary and spin energy models ` +
		`with single-variable flips and coordinated k-local moves. ` +
		`Runs can be recorded into SQLite and watched over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits through atexit so that recorders get flushed.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
