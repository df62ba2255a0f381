package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
)

var (
	runFlags      searchFlags
	runDataDir    string
	runJobID      string
	runNoProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run [<binary> <dim> <amount> <max-evals>]",
	Short: "Run a search against a scoring program",
	Long: `Runs a simplex search, scoring every candidate with the configured program.

The short form "run <binary> <dim> <amount> <max-evals>" sets the four
essential parameters positionally; everything else comes from --config and
flags. The best point is printed to stdout, logs and progress go to stderr.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 4 {
			return fmt.Errorf("accepts 0 or 4 args, received %d", len(args))
		}
		return nil
	},
	RunE: runOptimization,
}

func init() {
	addSearchFlags(runCmd, &runFlags)
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "./data", "Directory for checkpoints and traces (empty disables)")
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "Job ID for checkpoints (default: random UUID)")
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(runCmd)
}

// buildRunConfig merges config file, flags and positional arguments.
func buildRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd, &runFlags)
	if err != nil {
		return nil, err
	}
	if err := applyPositional(args, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd, args)
	if err != nil {
		return err
	}

	scorer, err := objective.NewProcessScorer(cfg.ProcessConfig())
	if err != nil {
		return err
	}

	st, err := openStore(runDataDir)
	if err != nil {
		return err
	}

	jobID := runJobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runSearch(ctx, cmd.OutOrStdout(), searchRun{
		JobID:    jobID,
		Config:   cfg,
		Scorer:   scorer,
		Store:    st,
		Progress: progressWriter(runNoProgress),
	})
	return err
}
