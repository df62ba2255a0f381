package objective

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Defaults for the collaborator process contract.
const (
	DefaultEnvPrefix   = "VAR"
	DefaultResetSlots  = 300
	DefaultBestEnv     = "BEST"
	DefaultProfileFlag = "--codec"

	lossMarker = "Loss"

	// waitDelay bounds how long output pipes are drained after the
	// collaborator is killed, in case it left children holding them open.
	waitDelay = 2 * time.Second
)

// ProcessConfig describes how to invoke the external scoring program.
type ProcessConfig struct {
	Binary string
	Args   []string

	// ProfileFlag is placed before the profile string on the command line.
	// Empty disables passing the profile.
	ProfileFlag string

	// EnvPrefix names the per-dimension variables (VAR0, VAR1, ...).
	EnvPrefix string

	// ResetSlots variables are zeroed on every call so values from a
	// previous, larger-dimension run never leak into this one.
	ResetSlots int

	// BestEnv receives the published best point. Empty disables it.
	BestEnv string

	// Timeout bounds a single invocation. Zero means no limit.
	Timeout time.Duration
}

// ProcessScorer runs an external program once per evaluation and reads the
// objective value from its standard output.
type ProcessScorer struct {
	config  ProcessConfig
	baseEnv []string
}

// NewProcessScorer creates a scorer for the given binary.
func NewProcessScorer(config ProcessConfig) (*ProcessScorer, error) {
	if config.Binary == "" {
		return nil, fmt.Errorf("binary cannot be empty")
	}
	if config.EnvPrefix == "" {
		config.EnvPrefix = DefaultEnvPrefix
	}
	if config.ResetSlots < 0 {
		return nil, fmt.Errorf("reset slots cannot be negative: %d", config.ResetSlots)
	}

	return &ProcessScorer{
		config:  config,
		baseEnv: os.Environ(),
	}, nil
}

// Score implements Scorer.
func (ps *ProcessScorer) Score(ctx context.Context, req Request) (float64, error) {
	runCtx := ctx
	if ps.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, ps.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, ps.config.Binary, ps.args(req.Profile)...)
	cmd.Env = ps.environ(req)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, &ProtocolError{Binary: ps.config.Binary, Err: err}
		}
		// Exit status is not part of the contract; only the output is.
		slog.Debug("Collaborator exited with error", "binary", ps.config.Binary, "error", err)
	}

	if stderr.Len() > 0 {
		slog.Debug("Collaborator stderr", "binary", ps.config.Binary, "bytes", stderr.Len())
	}

	value, lines, err := ParseLoss(&stdout)
	if err != nil {
		return 0, &ProtocolError{Binary: ps.config.Binary, Lines: lines, Err: err}
	}

	slog.Debug("Collaborator scored point",
		"binary", ps.config.Binary,
		"value", value,
		"lines", lines,
		"elapsed", time.Since(start),
	)
	return value, nil
}

func (ps *ProcessScorer) args(profile string) []string {
	args := append([]string{}, ps.config.Args...)
	if ps.config.ProfileFlag != "" && profile != "" {
		args = append(args, ps.config.ProfileFlag, profile)
	}
	return args
}

// environ builds the child environment. Later entries override earlier
// ones, so the reset slots are written before the active coordinates.
func (ps *ProcessScorer) environ(req Request) []string {
	env := make([]string, 0, len(ps.baseEnv)+ps.config.ResetSlots+len(req.Coords)+1)
	env = append(env, ps.baseEnv...)
	for i := 0; i < ps.config.ResetSlots; i++ {
		env = append(env, fmt.Sprintf("%s%d=0", ps.config.EnvPrefix, i))
	}
	for i, v := range req.Coords {
		env = append(env, fmt.Sprintf("%s%d=%s", ps.config.EnvPrefix, i, FormatValue(v)))
	}
	if ps.config.BestEnv != "" && req.Best != "" {
		env = append(env, ps.config.BestEnv+"="+req.Best)
	}
	return env
}

// FormatValue renders a coordinate the way it is passed to the collaborator.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseLoss scans collaborator output for Loss records. A record is a line
// starting with "Loss" whose second whitespace-separated field parses as a
// float; the last record wins. It returns the number of lines read and
// ErrNoScore when no record was found.
func ParseLoss(r io.Reader) (float64, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		value float64
		found bool
		lines int
	)
	for scanner.Scan() {
		lines++
		line := scanner.Text()
		slog.Debug("Collaborator output", "line", line)

		if !strings.HasPrefix(line, lossMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			slog.Debug("Ignoring malformed Loss line", "line", line, "error", err)
			continue
		}
		value = v
		found = true
	}
	if err := scanner.Err(); err != nil {
		return 0, lines, fmt.Errorf("failed to read collaborator output: %w", err)
	}
	if !found {
		return 0, lines, ErrNoScore
	}
	return value, lines, nil
}
