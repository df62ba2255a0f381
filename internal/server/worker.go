package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/opt"
	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
	"github.com/cwbudde/simplexsearch/internal/store"
)

// ScorerFactory builds the scorer for a job.
type ScorerFactory func(cfg *config.Config) (objective.Scorer, error)

// ProcessScorers runs the job's configured collaborator binary.
func ProcessScorers(cfg *config.Config) (objective.Scorer, error) {
	return objective.NewProcessScorer(cfg.ProcessConfig())
}

// workerEnv carries what runJob needs besides the job itself.
type workerEnv struct {
	store     *store.FSStore // nil disables traces and checkpoints
	newScorer ScorerFactory
}

// runJob executes a search job. The job ends completed when the search
// finishes normally (budget spent, converged, restarts exhausted), failed on
// a protocol or setup error and cancelled when ctx or CancelJob stops it.
func runJob(ctx context.Context, jm *JobManager, env workerEnv, jobID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var job *Job
	skipped := false
	err := jm.UpdateJob(jobID, func(j *Job) {
		if j.State == StateCancelled {
			skipped = true
			return
		}
		j.State = StateRunning
		j.cancel = cancel
		job = j.snapshot()
	})
	if err != nil {
		return err
	}
	if skipped {
		slog.Info("Job cancelled before start", "job_id", jobID)
		return context.Canceled
	}

	cfg := job.Config
	slog.Info("Starting job", "job_id", jobID, "binary", cfg.Binary, "dim", cfg.Dim, "method", cfg.Method)

	newScorer := env.newScorer
	if newScorer == nil {
		newScorer = ProcessScorers
	}
	scorer, err := newScorer(&cfg)
	if err != nil {
		err = fmt.Errorf("failed to create scorer: %w", err)
		markJobFailed(jm, jobID, err)
		return err
	}

	var rec *store.Recorder
	if env.store != nil {
		rec, err = store.NewRecorder(env.store, jobID, cfg, nil)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer rec.Close()
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	hooks := opt.Hooks{
		OnEvaluate: func(ev simplex.Evaluation) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.Evaluations = ev.Index
				j.Profile = ev.Profile
				if j.BestPoint == nil || ev.Point.Value() < j.BestValue {
					j.BestValue = ev.Point.Value()
					j.BestPoint = append([]float64(nil), ev.Point.Coords()...)
				}
			})
			if rec != nil {
				rec.Evaluated(ev)
			}
		},
		OnProgress: func(p search.Progress) {
			jm.UpdateJob(jobID, func(j *Job) {
				if p.Phase == "restart" {
					j.Restarts = p.Stage + 1
				}
			})
			if rec != nil {
				rec.Progress(p)
			}
			broadcastJob(jm, jobID)
		},
	}

	result, err := opt.Execute(ctx, &cfg, scorer, nil, hooks)
	close(progressDone)

	if result != nil {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Evaluations = result.Evaluations
			j.Restarts = result.Restarts
			j.Stop = result.Stop
			if result.Best != nil {
				j.BestValue = result.Best.Value()
				j.BestPoint = append([]float64(nil), result.Best.Coords()...)
			}
		})
		if rec != nil {
			if ferr := rec.Finish(result.Best, result.Evaluations, result.Restarts); ferr != nil {
				slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", ferr)
			}
		}
	}

	switch outcome := simplex.OutcomeOf(err); {
	case outcome.Success():
		markJobCompleted(jm, jobID)
		return nil
	case outcome == simplex.Cancelled:
		markJobCancelled(jm, jobID)
		return err
	default:
		markJobFailed(jm, jobID, err)
		return err
	}
}

// monitorProgress periodically broadcasts progress events during a search
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !broadcastJob(jm, jobID) {
				return
			}
		}
	}
}

// broadcastJob sends the job's current state to stream subscribers.
func broadcastJob(jm *JobManager, jobID string) bool {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return false
	}
	jm.broadcaster.Broadcast(eventFromJob(job))
	return true
}

func markJobCompleted(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
		j.cancel = nil
	})
	if job, ok := jm.GetJob(jobID); ok {
		slog.Info("Job completed",
			"job_id", jobID,
			"elapsed", job.Elapsed(),
			"stop", job.Stop,
			"evaluations", job.Evaluations,
			"best", job.BestValue,
			"evals_per_second", job.EvalsPerSecond(),
		)
	}
	broadcastJob(jm, jobID)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
		j.cancel = nil
	})
	var protoErr *objective.ProtocolError
	if errors.As(err, &protoErr) {
		slog.Error("Job failed: collaborator protocol error", "job_id", jobID, "error", err)
	} else {
		slog.Error("Job failed", "job_id", jobID, "error", err)
	}
	broadcastJob(jm, jobID)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
		j.cancel = nil
	})
	slog.Info("Job cancelled", "job_id", jobID)
	broadcastJob(jm, jobID)
}
