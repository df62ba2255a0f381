package simplex

import (
	"context"

	"github.com/cwbudde/simplexsearch/internal/objective"
)

// countingScorer wraps an objective function and records every request.
type countingScorer struct {
	fn       func([]float64) float64
	calls    int
	requests []objective.Request
	err      error
}

func (c *countingScorer) Score(_ context.Context, req objective.Request) (float64, error) {
	c.calls++
	c.requests = append(c.requests, req)
	if c.err != nil {
		return 0, c.err
	}
	return c.fn(req.Coords), nil
}

// sphere is sum(x_i^2) + 1, kept positive so it never hits the sentinel.
func sphere(x []float64) float64 {
	sum := 1.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func newTestSession(fn func([]float64) float64, maxEvals int) (*Session, *countingScorer) {
	scorer := &countingScorer{fn: fn}
	return NewSession(scorer, Options{MaxEvaluations: maxEvals}), scorer
}

// evaluated builds an already-evaluated point.
func evaluated(value float64, coords ...float64) Point {
	p := NewPoint(coords...)
	p[0] = value
	return p
}
