package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/server"
)

var (
	serveAddr       string
	serveDataDir    string
	serveConfigPath string
	serveBinary     string
	serveArgs       []string
	serveOrigins    []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for background search jobs",
	Long: `Starts an HTTP server that runs searches as background jobs.

Every job runs the scoring program given by --binary/--arg (or the binary,
args and collaborator settings of --config); job requests cannot choose
another program. Jobs are created with POST /api/v1/jobs and report progress
over GET /api/v1/jobs/:id/stream (Server-Sent Events). Checkpoints and traces
are written below --data-dir.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Directory for checkpoints and traces (empty keeps jobs in memory)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "YAML config providing binary, args and collaborator settings")
	serveCmd.Flags().StringVar(&serveBinary, "binary", "", "Scoring program run by every job")
	serveCmd.Flags().StringArrayVar(&serveArgs, "arg", nil, "Argument passed to the scoring program (repeatable)")
	serveCmd.Flags().StringArrayVar(&serveOrigins, "cors-origin", nil, "Browser origin allowed to call the API (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

// serveOptions resolves the scoring program the server is allowed to run.
func serveOptions(cmd *cobra.Command) (server.Options, error) {
	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			return server.Options{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("binary") {
		cfg.Binary = serveBinary
	}
	if cmd.Flags().Changed("arg") {
		cfg.Args = serveArgs
	}
	if cfg.Binary == "" {
		return server.Options{}, fmt.Errorf("a scoring program is required (--binary or binary in --config)")
	}
	return server.Options{
		Version:        version,
		Binary:         cfg.Binary,
		Args:           cfg.Args,
		Collaborator:   cfg.Collaborator,
		AllowedOrigins: serveOrigins,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	opts, err := serveOptions(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(serveDataDir)
	if err != nil {
		return err
	}
	opts.Store = st

	slog.Info("Serving jobs", "addr", serveAddr, "binary", opts.Binary, "args", opts.Args)
	srv := server.NewServer(serveAddr, opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
