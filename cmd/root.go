// Package cmd contains the skibot command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skigaudi/skibot/internal/log"
)

var debugLog bool

var rootCmd = &cobra.Command{
	Use:   "skibot",
	Short: "SkiGaudi festival assistant backend",
	Long: `skibot serves the SkiGaudi student festival assistant: a retrieval
augmented chat API over the festival FAQ and uploaded knowledge documents,
with admin mutation tools callable from chat or HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")
}

// newLogger builds the process logger. Debug level comes from --debug or
// the DEBUG environment variable.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if debugLog || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
