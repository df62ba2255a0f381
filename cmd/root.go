// Package cmd implements the simplexsearch command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "simplexsearch",
	Short: "Derivative-free simplex search driven by an external scoring program",
	Long: `simplexsearch minimizes a loss reported by an external program. Each
candidate point is passed to the program as VAR0..VARn environment variables
together with a codec profile; the program prints a "Loss <value>" line.
The search combines a restarting Nelder-Mead simplex with per-axis line
searches, and can persist checkpoints to resume long runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		handler, err := newLogHandler(os.Stderr, logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogHandler builds the slog handler selected by --log-format.
func newLogHandler(w io.Writer, level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	switch format {
	case "json", "":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s (must be json or text)", format)
	}
}
