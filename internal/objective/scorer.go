package objective

import (
	"context"
	"errors"
	"fmt"
)

// Request carries everything a scorer is told about one candidate point.
type Request struct {
	// Coords are the search-space coordinates (slots 1..dim of a point).
	Coords []float64

	// Profile is the opaque parameter profile in effect for this evaluation.
	Profile string

	// Best is the human-readable best point published by the search so far.
	Best string
}

// Scorer computes the objective value of a candidate point.
// Implementations may be slow; the search calls Score synchronously.
type Scorer interface {
	Score(ctx context.Context, req Request) (float64, error)
}

// Func adapts a plain objective function to the Scorer interface.
// The profile and best marker are ignored.
type Func func(coords []float64) float64

// Score implements Scorer.
func (f Func) Score(_ context.Context, req Request) (float64, error) {
	return f(req.Coords), nil
}

// ErrNoScore is wrapped by ProtocolError when the collaborator output
// contains no recognizable Loss line.
var ErrNoScore = errors.New("no Loss line in collaborator output")

// ProtocolError reports that a scorer invocation did not yield a score.
// It is not retryable.
type ProtocolError struct {
	Binary string
	Lines  int // stdout lines read before giving up
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Binary == "" {
		return fmt.Sprintf("protocol failure: %v", e.Err)
	}
	return fmt.Sprintf("protocol failure running %s (%d output lines): %v", e.Binary, e.Lines, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ProtocolError, so errors.Is(err, &ProtocolError{})
// matches any protocol failure.
func (e *ProtocolError) Is(target error) bool {
	_, ok := target.(*ProtocolError)
	return ok
}
