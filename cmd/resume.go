package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/store"
)

var (
	resumeDataDir    string
	resumeConfigPath string
	resumeMaxEvals   int
	resumeNoProgress bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a search from its checkpoint",
	Long: `Continues a checkpointed search from its best point. The run reuses the
checkpointed configuration unless --config supplies a compatible one
(same binary, dimension and arguments). Evaluations are appended to the
job's existing trace.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Directory holding checkpoints and traces")
	resumeCmd.Flags().StringVar(&resumeConfigPath, "config", "", "Replacement config (must be compatible with the checkpoint)")
	resumeCmd.Flags().IntVar(&resumeMaxEvals, "max-evals", 0, "Evaluation budget for the resumed run (default: checkpointed budget)")
	resumeCmd.Flags().BoolVar(&resumeNoProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(resumeCmd)
}

// resumeConfig picks the configuration of a resumed run.
func resumeConfig(cp *store.Checkpoint, configPath string, maxEvals int) (*config.Config, error) {
	cfg := cp.Config.Clone()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := cp.IsCompatible(*loaded); err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if maxEvals > 0 {
		cfg.MaxEvaluations = maxEvals
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	st, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to open data dir: %w", err)
	}

	cp, err := st.LoadCheckpoint(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no checkpoint for job %s in %s", jobID, resumeDataDir)
		}
		return err
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint is invalid: %w", err)
	}

	cfg, err := resumeConfig(cp, resumeConfigPath, resumeMaxEvals)
	if err != nil {
		return err
	}

	slog.Info("Resuming from checkpoint",
		"job_id", jobID,
		"best", cp.BestValue,
		"evaluations", cp.Evaluations,
		"restarts", cp.Restarts,
	)

	scorer, err := objective.NewProcessScorer(cfg.ProcessConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runSearch(ctx, cmd.OutOrStdout(), searchRun{
		JobID:    jobID,
		Config:   cfg,
		Scorer:   scorer,
		Origin:   cp.BestPoint,
		Store:    st,
		Previous: cp,
		Progress: progressWriter(resumeNoProgress),
	})
	return err
}
