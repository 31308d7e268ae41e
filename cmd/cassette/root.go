package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	dir     string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cassette",
	Short: "Inspect and convert recorded HTTP cassettes",
	Long: `cassette works with the cassettes written by the vcr package.

Cassettes are read from a directory of YAML files (--dir). The convert
command copies cassettes between that directory and a SQLite database.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "d", "testdata/cassettes", "cassette directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
