package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/store"
)

// defaultTraceLimit caps trace responses when no limit is given.
const defaultTraceLimit = 100

// Options configures a Server.
type Options struct {
	// Store persists traces and checkpoints; nil keeps jobs in memory only
	Store *store.FSStore

	// NewScorer builds each job's scorer; nil runs the configured binary
	NewScorer ScorerFactory

	// Version is reported by the index endpoint
	Version string

	// Binary and Args fix the scoring program every job runs. A job request
	// may omit them or repeat them verbatim; anything else is rejected, and
	// no job can be created while Binary is empty.
	Binary string
	Args   []string

	// Collaborator replaces the collaborator settings of every job request.
	// The zero value uses the defaults.
	Collaborator config.CollaboratorConfig

	// AllowedOrigins lists browser origins that get CORS headers. Empty
	// disables cross-origin access.
	AllowedOrigins []string
}

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	addr       string
	server     *http.Server
	opts       Options

	// baseCtx is the parent of every job; Shutdown cancels it
	baseCtx    context.Context
	cancelJobs context.CancelFunc
	wg         sync.WaitGroup
}

// NewServer creates a new HTTP server
func NewServer(addr string, opts Options) *Server {
	if opts.Collaborator == (config.CollaboratorConfig{}) {
		opts.Collaborator = config.Default().Collaborator
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		addr:       addr,
		opts:       opts,
		baseCtx:    ctx,
		cancelJobs: cancel,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/checkpoints", s.handleCheckpoints)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr, "persist", s.opts.Store != nil)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, cancels running jobs and waits for
// their workers to record the cancellation.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))

	// Cancelled jobs send their terminal event, which ends open streams
	// so that the HTTP shutdown below does not wait on them.
	s.cancelJobs()
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// StartJob registers a job and runs it in the background.
func (s *Server) StartJob(cfg JobConfig) *Job {
	job := s.jobManager.CreateJob(cfg)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		env := workerEnv{store: s.opts.Store, newScorer: s.opts.NewScorer}
		if err := runJob(s.baseCtx, s.jobManager, env, job.ID); err != nil {
			slog.Debug("Job ended with error", "job_id", job.ID, "error", err)
		}
	}()
	return job
}

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	counts := make(map[JobState]int)
	for _, job := range s.jobManager.ListJobs() {
		counts[job.State]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "simplexsearch",
		"version": s.opts.Version,
		"jobs":    counts,
	})
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}
	jobID := parts[0]

	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		s.handleCancelJob(w, r, jobID)
	case r.Method != http.MethodGet:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	case sub == "" || sub == "status":
		s.handleGetJobStatus(w, r, jobID)
	case sub == "stream":
		s.handleJobStream(w, r, jobID)
	case sub == "trace":
		s.handleGetTrace(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleCreateJob handles POST /api/v1/jobs. The body is a run config in
// JSON; omitted fields take their defaults. The scoring program and the
// collaborator settings always come from the server options.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.opts.Binary == "" {
		writeError(w, http.StatusServiceUnavailable, "no scoring binary configured")
		return
	}

	cfg := config.Default()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := s.pinCollaborator(cfg); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.StartJob(*cfg)
	writeJSON(w, http.StatusCreated, job)
}

// pinCollaborator applies the server's scoring program to cfg. A request
// naming a different binary or different arguments is an error.
func (s *Server) pinCollaborator(cfg *config.Config) error {
	if cfg.Binary != "" && cfg.Binary != s.opts.Binary {
		return fmt.Errorf("binary %q is not allowed, this server runs %q", cfg.Binary, s.opts.Binary)
	}
	if cfg.Args != nil && !slices.Equal(cfg.Args, s.opts.Args) {
		return fmt.Errorf("args are fixed by the server")
	}
	cfg.Binary = s.opts.Binary
	cfg.Args = slices.Clone(s.opts.Args)
	cfg.Collaborator = s.opts.Collaborator
	return nil
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// StatusResponse is the body of GET /api/v1/jobs/:id/status.
type StatusResponse struct {
	*Job
	Elapsed        float64 `json:"elapsed"`
	EvalsPerSecond float64 `json:"evalsPerSecond"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Job:            job,
		Elapsed:        job.Elapsed().Seconds(),
		EvalsPerSecond: job.EvalsPerSecond(),
	})
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err := s.jobManager.CancelJob(jobID); err != nil {
		if errors.Is(err, ErrJobFinished) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, _ := s.jobManager.GetJob(jobID)
	writeJSON(w, http.StatusAccepted, job)
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace?limit=N
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.opts.Store == nil {
		writeError(w, http.StatusNotFound, "traces are not persisted by this server")
		return
	}
	limit, ok := queryInt(r, "limit", defaultTraceLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	reader, err := store.NewTraceReader(s.opts.Store.BaseDir(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer reader.Close()

	entries, err := reader.ReadTail(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.Store == nil {
		writeJSON(w, http.StatusOK, []store.CheckpointInfo{})
		return
	}
	infos, err := s.opts.Store.ListCheckpoints()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// corsMiddleware adds CORS headers for allowed origins only.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(s.opts.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
