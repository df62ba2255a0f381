package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// TraceEntry records one evaluation. Each entry is a JSON line in trace.jsonl.
type TraceEntry struct {
	// Index is the budget counter after the evaluation; cache hits repeat it
	Index int `json:"index"`

	Value  float64   `json:"value"`
	Coords []float64 `json:"coords"`

	// Cached is set when the value came from the evaluation cache
	Cached bool `json:"cached,omitempty"`

	Profile   string    `json:"profile,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EntryFromEvaluation converts a session evaluation report to a trace entry.
func EntryFromEvaluation(ev simplex.Evaluation) TraceEntry {
	return TraceEntry{
		Index:     ev.Index,
		Value:     ev.Point.Value(),
		Coords:    append([]float64(nil), ev.Point.Coords()...),
		Cached:    ev.Cached,
		Profile:   ev.Profile,
		Timestamp: time.Now(),
	}
}

// TraceWriter appends trace entries to a JSONL file through a buffer.
// It is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	count  int
}

// NewTraceWriter opens <baseDir>/jobs/<jobID>/trace.jsonl, truncating it
// unless append is set. Resumed jobs append.
func NewTraceWriter(baseDir, jobID string, append bool) (*TraceWriter, error) {
	jobDir := filepath.Join(baseDir, "jobs", jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	path := filepath.Join(jobDir, traceFile)
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write buffers one entry. It is written on Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	data = append(data, '\n')

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	tw.count++
	return nil
}

// Count returns the number of entries written by this writer.
func (tw *TraceWriter) Count() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.count
}

// Flush writes buffered entries and syncs the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader reads trace entries from a JSONL file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace of a job.
func NewTraceReader(baseDir, jobID string) (*TraceReader, error) {
	file, err := os.Open(filepath.Join(baseDir, "jobs", jobID, traceFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{JobID: jobID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// Lines carry all coordinates, which may be long for high dimensions
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &TraceReader{file: file, scanner: scanner}, nil
}

// Read returns the next entry, or io.EOF when there are no more.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads all remaining entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	return tr.ReadTail(0)
}

// ReadTail reads the remaining entries and keeps only the last n
// (n <= 0 keeps all).
func (tr *TraceReader) ReadTail(n int) ([]TraceEntry, error) {
	entries := []TraceEntry{}
	for {
		entry, err := tr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
		if n > 0 && len(entries) > 2*n {
			entries = append(entries[:0], entries[len(entries)-n:]...)
		}
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// Close closes the trace reader.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}
