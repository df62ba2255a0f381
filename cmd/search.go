package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/opt"
	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
	"github.com/cwbudde/simplexsearch/internal/store"
)

// searchRun describes one CLI search, fresh or resumed.
type searchRun struct {
	JobID    string
	Config   *config.Config
	Scorer   objective.Scorer
	Origin   []float64
	Store    *store.FSStore    // nil disables checkpoints and trace
	Previous *store.Checkpoint // set when resuming
	Progress io.Writer         // nil disables the progress bar
}

// runSearch executes a search and prints the result to out. The returned
// error is nil when the search ended successfully (budget exhausted,
// converged or restarts exhausted).
func runSearch(ctx context.Context, out io.Writer, run searchRun) (*opt.Result, error) {
	cfg := run.Config

	var recorder *store.Recorder
	if run.Store != nil {
		rec, err := store.NewRecorder(run.Store, run.JobID, *cfg, run.Previous)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
		defer rec.Close()
		recorder = rec
	}

	var bar *progressbar.ProgressBar
	if run.Progress != nil {
		bar = newProgressBar(run.Progress, scoredTotal(cfg.MaxEvaluations))
	}

	hooks := opt.Hooks{
		OnEvaluate: func(ev simplex.Evaluation) {
			if recorder != nil {
				recorder.Evaluated(ev)
			}
			if bar != nil && !ev.Cached {
				_ = bar.Set(ev.Index)
			}
		},
		OnProgress: func(p search.Progress) {
			slog.Info("Search progress",
				"phase", p.Phase,
				"stage", p.Stage,
				"best", p.Best.Value(),
				"evaluations", p.Evaluations,
				"profile", p.Profile,
			)
			if recorder != nil {
				recorder.Progress(p)
			}
			if bar != nil {
				bar.Describe(fmt.Sprintf("best %.6g", p.Best.Value()))
			}
		},
	}

	slog.Info("Starting search",
		"job_id", run.JobID,
		"method", cfg.Method,
		"binary", cfg.Binary,
		"dim", cfg.Dim,
		"amount", cfg.Amount,
		"max_evaluations", cfg.MaxEvaluations,
		"resumed", run.Previous != nil,
	)

	start := time.Now()
	result, err := opt.Execute(ctx, cfg, run.Scorer, run.Origin, hooks)
	elapsed := time.Since(start)

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(run.Progress)
	}
	if result == nil {
		return nil, err
	}

	if recorder != nil {
		if ferr := recorder.Finish(result.Best, result.Evaluations, result.Restarts); ferr != nil {
			slog.Error("Failed to save final checkpoint", "job_id", run.JobID, "error", ferr)
		}
	}

	outcome := simplex.OutcomeOf(err)
	slog.Info("Search finished",
		"job_id", run.JobID,
		"outcome", outcome.String(),
		"stop", result.Stop,
		"best", result.Value(),
		"evaluations", result.Evaluations,
		"restarts", result.Restarts,
		"elapsed", elapsed,
	)

	printResult(out, run.JobID, result, elapsed)

	switch outcome {
	case simplex.Continue, simplex.BudgetExhausted:
		return result, nil
	case simplex.Cancelled:
		return result, fmt.Errorf("search interrupted: %w", err)
	default:
		return result, fmt.Errorf("search failed: %w", err)
	}
}

// scoredTotal is the number of scorer calls a budget allows: the call that
// reaches the budget stops the search without scoring.
func scoredTotal(maxEvaluations int) int {
	return maxEvaluations - 1
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("searching"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("evals"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func printResult(out io.Writer, jobID string, result *opt.Result, elapsed time.Duration) {
	fmt.Fprintf(out, "Job:          %s\n", jobID)
	fmt.Fprintf(out, "Method:       %s\n", result.Method)
	fmt.Fprintf(out, "Stop:         %s\n", result.Stop)
	fmt.Fprintf(out, "Evaluations:  %d\n", result.Evaluations)
	fmt.Fprintf(out, "Restarts:     %d\n", result.Restarts)
	fmt.Fprintf(out, "Elapsed:      %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Best value:   %s\n", objective.FormatValue(result.Value()))
	if result.Best != nil {
		fmt.Fprintf(out, "Best point:   %s\n", result.Best.String())
	}
}

// openStore returns nil when dir is empty.
func openStore(dir string) (*store.FSStore, error) {
	if dir == "" {
		return nil, nil
	}
	s, err := store.NewFSStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data dir: %w", err)
	}
	return s, nil
}

// progressWriter returns stderr unless the bar is disabled.
func progressWriter(disabled bool) io.Writer {
	if disabled {
		return nil
	}
	return os.Stderr
}
