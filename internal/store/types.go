package store

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cwbudde/simplexsearch/internal/config"
)

// Checkpoint is the persisted state of a search that can be resumed later.
//
// Only the best point is saved, not the simplex or the evaluation cache.
// A resumed search rebuilds its simplex around BestPoint with a fresh
// cache, so it is not an exact continuation: the best value never gets
// worse, but the path taken afterwards differs from an uninterrupted run.
type Checkpoint struct {
	JobID string `json:"jobId"`

	// BestPoint holds the coordinates of the lowest-scoring point so far
	BestPoint []float64 `json:"bestPoint"`
	BestValue float64   `json:"bestValue"`

	// Evaluations counts budget-consuming evaluations up to this checkpoint
	Evaluations int `json:"evaluations"`

	// Restarts counts completed restarts of the simplex search
	Restarts int `json:"restarts"`

	// Profile is the parameter profile in effect when the checkpoint was taken
	Profile string `json:"profile,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Config is the run configuration, needed to check compatibility on resume
	Config config.Config `json:"config"`
}

// CheckpointInfo contains checkpoint metadata without the point or full config.
type CheckpointInfo struct {
	JobID       string    `json:"jobId"`
	BestValue   float64   `json:"bestValue"`
	Evaluations int       `json:"evaluations"`
	Restarts    int       `json:"restarts"`
	Timestamp   time.Time `json:"timestamp"`
	Method      string    `json:"method"`
	Dim         int       `json:"dim"`
	Binary      string    `json:"binary"`
}

// NewCheckpoint creates a checkpoint from search state.
func NewCheckpoint(jobID string, bestPoint []float64, bestValue float64, evaluations, restarts int, profile string, cfg config.Config) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestPoint:   slices.Clone(bestPoint),
		BestValue:   bestValue,
		Evaluations: evaluations,
		Restarts:    restarts,
		Profile:     profile,
		Timestamp:   time.Now(),
		Config:      cfg,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:       c.JobID,
		BestValue:   c.BestValue,
		Evaluations: c.Evaluations,
		Restarts:    c.Restarts,
		Timestamp:   c.Timestamp,
		Method:      c.Config.Method,
		Dim:         c.Config.Dim,
		Binary:      c.Config.Binary,
	}
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestPoint) == 0 {
		return &ValidationError{Field: "BestPoint", Reason: "cannot be empty"}
	}
	if math.IsNaN(c.BestValue) || c.BestValue <= 0 {
		return &ValidationError{Field: "BestValue", Reason: "must be a positive number"}
	}
	if c.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if c.Restarts < 0 {
		return &ValidationError{Field: "Restarts", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Binary == "" {
		return &ValidationError{Field: "Config.Binary", Reason: "cannot be empty"}
	}
	if c.Config.Dim <= 0 {
		return &ValidationError{Field: "Config.Dim", Reason: "must be positive"}
	}
	if len(c.BestPoint) != c.Config.Dim {
		return &ValidationError{
			Field:  "BestPoint",
			Reason: fmt.Sprintf("length mismatch: expected %d coordinates, got %d", c.Config.Dim, len(c.BestPoint)),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks that a search configured by cfg scores the same
// objective as the checkpointed one.
func (c *Checkpoint) IsCompatible(cfg config.Config) error {
	if c.Config.Binary != cfg.Binary {
		return &CompatibilityError{
			Field:    "Binary",
			Expected: c.Config.Binary,
			Actual:   cfg.Binary,
		}
	}
	if c.Config.Dim != cfg.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", cfg.Dim),
		}
	}
	if !slices.Equal(c.Config.Args, cfg.Args) {
		return &CompatibilityError{
			Field:    "Args",
			Expected: strings.Join(c.Config.Args, " "),
			Actual:   strings.Join(cfg.Args, " "),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
