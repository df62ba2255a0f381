package store

// Store defines checkpoint persistence. Implementations must be safe for
// concurrent use.
//
// Load and Delete return an error matching ErrNotFound (errors.Is) when the
// job has no checkpoint; other failures are wrapped with context.
type Store interface {
	// SaveCheckpoint validates and atomically writes a checkpoint,
	// overwriting any previous one for the job.
	SaveCheckpoint(jobID string, checkpoint *Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for the given job.
	LoadCheckpoint(jobID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for all checkpoints, newest first.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the job directory: checkpoint.json and trace.jsonl.
	DeleteCheckpoint(jobID string) error
}

// ErrNotFound is returned when a requested checkpoint does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing checkpoint error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "checkpoint not found: " + e.JobID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
