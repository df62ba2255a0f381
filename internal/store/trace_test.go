package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/simplexsearch/internal/simplex"
)

func writeEntries(t *testing.T, dir, jobID string, appendMode bool, entries []TraceEntry) {
	t.Helper()
	writer, err := NewTraceWriter(dir, jobID, appendMode)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if writer.Count() != len(entries) {
		t.Errorf("Count = %d, want %d", writer.Count(), len(entries))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
}

func readEntries(t *testing.T, dir, jobID string) []TraceEntry {
	t.Helper()
	reader, err := NewTraceReader(dir, jobID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	return entries
}

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	entries := []TraceEntry{
		{Index: 1, Value: 4.0, Coords: []float64{0, 0}, Profile: "jxl:fast", Timestamp: time.Now()},
		{Index: 2, Value: 3.5, Coords: []float64{1, 0}, Timestamp: time.Now()},
		{Index: 2, Value: 3.5, Coords: []float64{1, 0}, Cached: true, Timestamp: time.Now()},
		{Index: 3, Value: 1e30, Coords: []float64{1, 1}, Timestamp: time.Now()},
	}
	writeEntries(t, tmpDir, "job", false, entries)

	got := readEntries(t, tmpDir, "job")
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i, entry := range got {
		if entry.Index != entries[i].Index || entry.Value != entries[i].Value || entry.Cached != entries[i].Cached {
			t.Errorf("Entry %d mismatch: got %+v, want %+v", i, entry, entries[i])
		}
		if len(entry.Coords) != len(entries[i].Coords) {
			t.Errorf("Entry %d: expected %d coords, got %d", i, len(entries[i].Coords), len(entry.Coords))
		}
	}
	if got[0].Profile != "jxl:fast" {
		t.Errorf("Profile = %q, want jxl:fast", got[0].Profile)
	}
}

func TestTraceWriter_AppendAndTruncate(t *testing.T) {
	tmpDir := t.TempDir()
	first := []TraceEntry{{Index: 1, Value: 2}, {Index: 2, Value: 1.5}}
	second := []TraceEntry{{Index: 3, Value: 1.2}}

	writeEntries(t, tmpDir, "job", false, first)
	writeEntries(t, tmpDir, "job", true, second)
	if got := readEntries(t, tmpDir, "job"); len(got) != 3 {
		t.Fatalf("Expected 3 entries after append, got %d", len(got))
	}

	writeEntries(t, tmpDir, "job", false, second)
	if got := readEntries(t, tmpDir, "job"); len(got) != 1 {
		t.Fatalf("Expected 1 entry after truncate, got %d", len(got))
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewTraceWriter(tmpDir, "job", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(TraceEntry{Index: 1, Value: 2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	info, err := os.Stat(writer.Path())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected data on disk after flush")
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	tmpDir := t.TempDir()
	writeEntries(t, tmpDir, "job", false, []TraceEntry{{Index: 1}, {Index: 2}})

	reader, err := NewTraceReader(tmpDir, "job")
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	for want := 1; want <= 2; want++ {
		entry, err := reader.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if entry.Index != want {
			t.Errorf("Index = %d, want %d", entry.Index, want)
		}
	}
	if _, err := reader.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTraceReader_ReadTail(t *testing.T) {
	tmpDir := t.TempDir()
	var entries []TraceEntry
	for i := 1; i <= 25; i++ {
		entries = append(entries, TraceEntry{Index: i})
	}
	writeEntries(t, tmpDir, "job", false, entries)

	for _, n := range []int{1, 5, 10, 25, 40} {
		t.Run(fmt.Sprintf("last-%d", n), func(t *testing.T) {
			reader, err := NewTraceReader(tmpDir, "job")
			if err != nil {
				t.Fatalf("Failed to create trace reader: %v", err)
			}
			defer reader.Close()

			tail, err := reader.ReadTail(n)
			if err != nil {
				t.Fatalf("ReadTail failed: %v", err)
			}
			want := min(n, 25)
			if len(tail) != want {
				t.Fatalf("Expected %d entries, got %d", want, len(tail))
			}
			if tail[len(tail)-1].Index != 25 || tail[0].Index != 25-want+1 {
				t.Errorf("Unexpected window %d..%d", tail[0].Index, tail[len(tail)-1].Index)
			}
		})
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestEntryFromEvaluation(t *testing.T) {
	p := simplex.NewPoint(1.5, -2)
	p[0] = 3.25

	entry := EntryFromEvaluation(simplex.Evaluation{Index: 7, Point: p, Cached: true, Profile: "jxl:fast"})
	p[1] = 99

	if entry.Index != 7 || entry.Value != 3.25 || !entry.Cached || entry.Profile != "jxl:fast" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if len(entry.Coords) != 2 || entry.Coords[0] != 1.5 {
		t.Errorf("Coords should be copied, got %v", entry.Coords)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewTraceWriter(tmpDir, "job", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	const goroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := writer.Write(TraceEntry{Index: g*perGoroutine + i, Coords: []float64{float64(g)}}); err != nil {
					t.Errorf("Write failed: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := readEntries(t, tmpDir, "job"); len(got) != goroutines*perGoroutine {
		t.Errorf("Expected %d entries, got %d", goroutines*perGoroutine, len(got))
	}
}
