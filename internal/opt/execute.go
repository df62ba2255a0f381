package opt

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/profile"
	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// Hooks observe a run. Both are called on the searching goroutine.
type Hooks struct {
	OnEvaluate func(simplex.Evaluation)
	OnProgress func(search.Progress)
}

// Execute runs the method selected by cfg against scorer, starting from
// origin (nil uses cfg.Origin). One seeded random source drives both the
// session's coordinate shuffling and the profile generator, so a run is
// reproducible for a deterministic scorer.
//
// The result is non-nil whenever the search started. The returned error
// follows Optimizer.Run; classify it with simplex.OutcomeOf.
func Execute(ctx context.Context, cfg *config.Config, scorer objective.Scorer, origin []float64, hooks Hooks) (*Result, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	session := simplex.NewSession(scorer, simplex.Options{
		MaxEvaluations: cfg.MaxEvaluations,
		Rand:           rng,
		OnEvaluate:     hooks.OnEvaluate,
	})

	profiles, err := profile.NewGenerator(cfg.Profile, rng)
	if err != nil {
		return nil, fmt.Errorf("profile generator: %w", err)
	}

	optimizer, err := New(cfg, profiles, hooks.OnProgress)
	if err != nil {
		return nil, err
	}

	if origin == nil && len(cfg.Origin) > 0 {
		origin = cfg.Origin
	}
	return optimizer.Run(ctx, session, origin)
}
