// The hlslocalizer command parses HLS attribute lists, derives cache identifiers and
// plans offline downloads of HLS items.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

const flagVerbose = "verbose"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "hlslocalizer",
		Short:        "Prepare HLS streams for offline playback",
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().Bool(flagVerbose, false, "Enable verbose logging")

	root.AddCommand(
		newAttrsCommand(),
		newIDCommand(),
		newPlanCommand(),
		newServeCommand(),
	)

	return root
}

// newLogger builds the slog logger for a command, writing to its error stream.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool(flagVerbose)

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	return newTextLogger(cmd.ErrOrStderr(), logLevel)
}

func newTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
