package store

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/simplexsearch/internal/config"
)

func TestCheckpoint_JSONRoundTrip(t *testing.T) {
	original := createTestCheckpoint("test-job-123")
	original.Timestamp = time.Date(2025, 10, 23, 10, 30, 0, 0, time.UTC)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal checkpoint: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal into map: %v", err)
	}
	for _, key := range []string{"jobId", "bestPoint", "bestValue", "evaluations", "restarts", "timestamp", "config"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Missing JSON key %q", key)
		}
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal checkpoint: %v", err)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if err := restored.Validate(); err != nil {
		t.Errorf("Restored checkpoint is invalid: %v", err)
	}
}

func TestCheckpoint_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Checkpoint)
		field  string
	}{
		{name: "valid", mutate: func(*Checkpoint) {}},
		{name: "empty job id", mutate: func(c *Checkpoint) { c.JobID = "" }, field: "JobID"},
		{name: "nil point", mutate: func(c *Checkpoint) { c.BestPoint = nil }, field: "BestPoint"},
		{name: "short point", mutate: func(c *Checkpoint) { c.BestPoint = []float64{1, 2} }, field: "BestPoint"},
		{name: "zero value", mutate: func(c *Checkpoint) { c.BestValue = 0 }, field: "BestValue"},
		{name: "NaN value", mutate: func(c *Checkpoint) { c.BestValue = math.NaN() }, field: "BestValue"},
		{name: "negative evaluations", mutate: func(c *Checkpoint) { c.Evaluations = -1 }, field: "Evaluations"},
		{name: "negative restarts", mutate: func(c *Checkpoint) { c.Restarts = -1 }, field: "Restarts"},
		{name: "zero timestamp", mutate: func(c *Checkpoint) { c.Timestamp = time.Time{} }, field: "Timestamp"},
		{name: "no binary", mutate: func(c *Checkpoint) { c.Config.Binary = "" }, field: "Config.Binary"},
		{name: "zero dim", mutate: func(c *Checkpoint) { c.Config.Dim = 0 }, field: "Config.Dim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := createTestCheckpoint("job")
			tt.mutate(cp)
			err := cp.Validate()

			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid checkpoint, got %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", validationErr.Field, tt.field)
			}
		})
	}
}

func TestCheckpoint_IsCompatible(t *testing.T) {
	cp := createTestCheckpoint("job")

	same := testConfig()
	same.MaxEvaluations = 99 // budget may change on resume
	same.Amount = 2
	if err := cp.IsCompatible(same); err != nil {
		t.Errorf("Expected compatible, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{name: "binary", mutate: func(c *config.Config) { c.Binary = "./other" }, field: "Binary"},
		{name: "dim", mutate: func(c *config.Config) { c.Dim = 4 }, field: "Dim"},
		{name: "args", mutate: func(c *config.Config) { c.Args = []string{"--input", "/data/b.png"} }, field: "Args"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cp.IsCompatible(cfg)
			var compatErr *CompatibilityError
			if !errors.As(err, &compatErr) {
				t.Fatalf("Expected CompatibilityError, got %v", err)
			}
			if compatErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", compatErr.Field, tt.field)
			}
		})
	}
}

func TestNewCheckpoint(t *testing.T) {
	point := []float64{1, 2, 3}
	cp := NewCheckpoint("job", point, 0.5, 10, 2, "jxl:fast", testConfig())
	point[0] = 99

	if cp.BestPoint[0] != 1 {
		t.Error("NewCheckpoint should copy the point")
	}
	if cp.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if err := cp.Validate(); err != nil {
		t.Errorf("NewCheckpoint produced invalid checkpoint: %v", err)
	}

	info := cp.ToInfo()
	if info.JobID != "job" || info.BestValue != 0.5 || info.Evaluations != 10 || info.Restarts != 2 {
		t.Errorf("Unexpected info: %+v", info)
	}
}
