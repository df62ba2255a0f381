package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// Recorder persists a running search: every evaluation goes to the trace,
// and a checkpoint is written every config.CheckpointInterval restarts and
// once more when the search ends.
type Recorder struct {
	mu      sync.Mutex
	store   *FSStore
	trace   *TraceWriter
	jobID   string
	config  config.Config
	profile string

	// restartOffset is added to restart counts of a resumed search
	restartOffset int
	evalOffset    int
	traceFailed   bool
}

// NewRecorder opens the trace of jobID. A resumed job appends to its
// existing trace and continues the restart and evaluation counts of prev.
func NewRecorder(s *FSStore, jobID string, cfg config.Config, prev *Checkpoint) (*Recorder, error) {
	trace, err := NewTraceWriter(s.BaseDir(), jobID, prev != nil)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		store:  s,
		trace:  trace,
		jobID:  jobID,
		config: cfg,
	}
	if prev != nil {
		r.restartOffset = prev.Restarts
		r.evalOffset = prev.Evaluations
	}
	return r, nil
}

// Evaluated appends one evaluation to the trace. Write failures are logged
// once and otherwise ignored so the search is not interrupted.
func (r *Recorder) Evaluated(ev simplex.Evaluation) {
	r.mu.Lock()
	r.profile = ev.Profile
	r.mu.Unlock()

	entry := EntryFromEvaluation(ev)
	entry.Index += r.evalOffset
	if err := r.trace.Write(entry); err != nil && !r.traceFailed {
		r.traceFailed = true
		slog.Warn("Trace write failed, further errors suppressed", "jobID", r.jobID, "error", err)
	}
}

// Progress checkpoints after every configured number of restarts.
func (r *Recorder) Progress(p search.Progress) {
	if p.Phase != "restart" || r.config.CheckpointInterval <= 0 {
		return
	}
	restarts := p.Stage + 1
	if restarts%r.config.CheckpointInterval != 0 {
		return
	}
	if err := r.save(p.Best, p.Evaluations, restarts, p.Profile); err != nil {
		slog.Error("Failed to save checkpoint", "jobID", r.jobID, "error", err)
	}
}

// Finish writes the final checkpoint. best may be nil when nothing was scored.
func (r *Recorder) Finish(best simplex.Point, evaluations, restarts int) error {
	if best == nil || !best.Evaluated() {
		slog.Debug("Skipping final checkpoint, no evaluated point", "jobID", r.jobID)
		return nil
	}
	r.mu.Lock()
	profile := r.profile
	r.mu.Unlock()
	return r.save(best, evaluations, restarts, profile)
}

func (r *Recorder) save(best simplex.Point, evaluations, restarts int, profile string) error {
	if err := r.trace.Flush(); err != nil {
		slog.Warn("Trace flush failed", "jobID", r.jobID, "error", err)
	}
	cp := NewCheckpoint(r.jobID, best.Coords(), best.Value(),
		evaluations+r.evalOffset, restarts+r.restartOffset, profile, r.config)
	if err := r.store.SaveCheckpoint(r.jobID, cp); err != nil {
		return fmt.Errorf("checkpoint %s: %w", r.jobID, err)
	}
	slog.Info("Checkpoint saved",
		"job_id", r.jobID,
		"restarts", cp.Restarts,
		"evaluations", cp.Evaluations,
		"best", cp.BestValue,
	)
	return nil
}

// TracePath returns the trace file being written.
func (r *Recorder) TracePath() string {
	return r.trace.Path()
}

// Close flushes and closes the trace.
func (r *Recorder) Close() error {
	return r.trace.Close()
}
