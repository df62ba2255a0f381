package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	dim      int
	maxIters int
	popSize  int
	seed     int64
	lower    float64
	upper    float64
	profiles search.Profiles
}

// NewMayfly creates a new Mayfly optimizer adapter. The library uses one
// scalar bound for every dimension.
func NewMayfly(dim, maxIters, popSize int, seed int64, lower, upper float64, profiles search.Profiles) Optimizer {
	return &MayflyAdapter{
		dim:      dim,
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		lower:    lower,
		upper:    upper,
		profiles: profiles,
	}
}

// Name implements Optimizer.
func (m *MayflyAdapter) Name() string {
	return "mayfly"
}

// Run executes the Mayfly optimization. The origin is ignored; the
// population is drawn uniformly from the bounds.
func (m *MayflyAdapter) Run(ctx context.Context, session *simplex.Session, _ []float64) (*Result, error) {
	if m.profiles != nil {
		session.SetProfile(m.profiles.Next())
	}
	obj := &sessionObjective{ctx: ctx, session: session}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = obj.eval
	config.ProblemSize = m.dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = m.lower
	config.UpperBound = m.upper
	config.Rand = rand.New(rand.NewSource(m.seed))

	if _, err := mayfly.Optimize(config); err != nil && obj.err == nil {
		return nil, fmt.Errorf("mayfly: %w", err)
	}

	slog.Info("Mayfly finished", "evaluations", session.Evaluations(), "iterations", m.maxIters)
	return obj.finish(m.Name())
}

