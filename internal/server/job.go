package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/simplexsearch/internal/config"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is the run configuration submitted with a job.
type JobConfig = config.Config

// Job represents a search job
type Job struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Config      JobConfig  `json:"config"`
	BestPoint   []float64  `json:"bestPoint,omitempty"`
	BestValue   float64    `json:"bestValue"`
	Evaluations int        `json:"evaluations"`
	Restarts    int        `json:"restarts"`
	Profile     string     `json:"profile,omitempty"`
	Stop        string     `json:"stop,omitempty"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`

	cancel context.CancelFunc
}

// Elapsed returns the run time so far, or the total run time once finished.
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// EvalsPerSecond returns the evaluation throughput.
func (j *Job) EvalsPerSecond() float64 {
	secs := j.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(j.Evaluations) / secs
}

// snapshot returns a copy that does not share mutable state with j.
func (j *Job) snapshot() *Job {
	c := *j
	c.BestPoint = slices.Clone(j.BestPoint)
	c.Config = *j.Config.Clone()
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	c.cancel = nil
	return &c
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job with a fresh ID.
func (jm *JobManager) CreateJob(cfg JobConfig) *Job {
	return jm.CreateJobWithID(uuid.New().String(), cfg)
}

// CreateJobWithID registers a pending job under a caller-chosen ID.
func (jm *JobManager) CreateJobWithID(id string, cfg JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        id,
		State:     StatePending,
		Config:    cfg,
		StartTime: time.Now(),
	}
	jm.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob returns a snapshot of a job.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns snapshots of all jobs, oldest first.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	return runningJobs
}

// ErrJobFinished is returned when cancelling a job that already ended.
var ErrJobFinished = errors.New("job already finished")

// CancelJob requests cancellation. The worker marks the job cancelled once
// the running evaluation returns.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.State.Terminal() {
		return ErrJobFinished
	}
	if job.cancel == nil {
		// not started yet; the worker sees the state and skips the run
		endTime := time.Now()
		job.State = StateCancelled
		job.EndTime = &endTime
		return nil
	}
	job.cancel()
	return nil
}
