package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/simplexsearch/internal/config"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Binary = "./score"
	cfg.Args = []string{"--input", "/data/a.png"}
	cfg.Dim = 3
	return *cfg
}

// createTestCheckpoint creates a checkpoint with test data.
func createTestCheckpoint(jobID string) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestPoint:   []float64{0.25, -1.5, 3},
		BestValue:   0.0234,
		Evaluations: 500,
		Restarts:    4,
		Profile:     "jxl:d1.000,jxl:d2.236",
		Timestamp:   time.Now(),
		Config:      testConfig(),
	}
}

func TestNewFSStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != dir {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Base directory was not created: %v", err)
	}
}

func TestSaveAndLoadCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "test-job-123"
	checkpoint := createTestCheckpoint(jobID)
	if err := store.SaveCheckpoint(jobID, checkpoint); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "jobs", jobID, "checkpoint.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Fatalf("Checkpoint file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}

	loaded, err := store.LoadCheckpoint(jobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.BestValue != checkpoint.BestValue {
		t.Errorf("BestValue = %g, want %g", loaded.BestValue, checkpoint.BestValue)
	}
	if loaded.Evaluations != 500 || loaded.Restarts != 4 {
		t.Errorf("Counters = %d/%d, want 500/4", loaded.Evaluations, loaded.Restarts)
	}
	for i, v := range checkpoint.BestPoint {
		if loaded.BestPoint[i] != v {
			t.Errorf("BestPoint[%d] = %g, want %g", i, loaded.BestPoint[i], v)
		}
	}
	if loaded.Config.Binary != "./score" || loaded.Config.Dim != 3 {
		t.Errorf("Config not restored: %+v", loaded.Config)
	}
}

func TestSaveCheckpoint_Rejected(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveCheckpoint("", createTestCheckpoint("x")); err == nil {
		t.Error("Expected error for empty jobID")
	}
	if err := store.SaveCheckpoint("x", nil); err == nil {
		t.Error("Expected error for nil checkpoint")
	}

	invalid := createTestCheckpoint("x")
	invalid.BestPoint = []float64{1}
	err := store.SaveCheckpoint("x", invalid)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestSaveCheckpoint_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	jobID := "overwrite"
	first := createTestCheckpoint(jobID)
	if err := store.SaveCheckpoint(jobID, first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	second := createTestCheckpoint(jobID)
	second.BestValue = 0.01
	second.Restarts = 9
	if err := store.SaveCheckpoint(jobID, second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(jobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.BestValue != 0.01 || loaded.Restarts != 9 {
		t.Errorf("Expected overwritten checkpoint, got value %g restarts %d", loaded.BestValue, loaded.Restarts)
	}
}

func TestLoadCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadCheckpoint("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.LoadCheckpoint(""); err == nil {
		t.Error("Expected error for empty jobID")
	}
}

func TestListCheckpoints_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no checkpoints, got %d", len(infos))
	}
}

func TestListCheckpoints_NewestFirst(t *testing.T) {
	store, tempDir := setupTestStore(t)

	base := time.Date(2025, 10, 23, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		jobID := fmt.Sprintf("job-%d", i)
		cp := createTestCheckpoint(jobID)
		cp.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveCheckpoint(jobID, cp); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
	}

	// A trace-only directory and a stray file are skipped
	if err := os.MkdirAll(filepath.Join(tempDir, "jobs", "trace-only"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "jobs", "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// A corrupted checkpoint is skipped too
	corrupt := filepath.Join(tempDir, "jobs", "corrupt")
	if err := os.MkdirAll(corrupt, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(corrupt, "checkpoint.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(infos))
	}
	if infos[0].JobID != "job-2" || infos[2].JobID != "job-0" {
		t.Errorf("Expected newest first, got %s ... %s", infos[0].JobID, infos[2].JobID)
	}
	if infos[0].Dim != 3 || infos[0].Binary != "./score" || infos[0].Method != "simplex" {
		t.Errorf("Unexpected info metadata: %+v", infos[0])
	}
}

func TestDeleteCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "to-delete"
	if err := store.SaveCheckpoint(jobID, createTestCheckpoint(jobID)); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if err := os.WriteFile(store.TracePath(jobID), []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteCheckpoint(jobID); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "jobs", jobID)); !os.IsNotExist(err) {
		t.Error("Job directory should have been removed")
	}

	if err := store.DeleteCheckpoint(jobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.DeleteCheckpoint(""); err == nil {
		t.Error("Expected error for empty jobID")
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numJobs = 10
	var wg sync.WaitGroup
	errs := make(chan error, numJobs)
	for i := 0; i < numJobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jobID := fmt.Sprintf("concurrent-%d", i)
			errs <- store.SaveCheckpoint(jobID, createTestCheckpoint(jobID))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent save failed: %v", err)
		}
	}

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != numJobs {
		t.Errorf("Expected %d checkpoints, got %d", numJobs, len(infos))
	}
}
