package main

import (
	"log/slog"

	"github.com/praetorian-inc/sieve/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "Sieve - multi-pattern line scanner",
	Long: `Sieve compiles a set of literal patterns into a single matcher and
streams newline-delimited input through it, reporting every match and the
scan throughput.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write log records as JSON")

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the diagnostics logger from the persistent flags.
// Log records always go to stderr so stdout carries only results.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := "info"
	switch {
	case quiet:
		level = "error"
	case verbose:
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), logging.Config{Level: level, JSON: logJSON})
}
