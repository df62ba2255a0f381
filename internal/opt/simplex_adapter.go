package opt

import (
	"context"

	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// SimplexAdapter runs the restarting simplex search driver.
type SimplexAdapter struct {
	config     search.Config
	profiles   search.Profiles
	onProgress func(search.Progress)
}

// NewSimplex creates the simplex search optimizer.
func NewSimplex(config search.Config, profiles search.Profiles, onProgress func(search.Progress)) Optimizer {
	return &SimplexAdapter{
		config:     config,
		profiles:   profiles,
		onProgress: onProgress,
	}
}

// Name implements Optimizer.
func (s *SimplexAdapter) Name() string {
	return "simplex"
}

// Run implements Optimizer.
func (s *SimplexAdapter) Run(ctx context.Context, session *simplex.Session, origin []float64) (*Result, error) {
	cfg := s.config
	if origin != nil {
		cfg.Origin = origin
	}
	driver, err := search.NewDriver(cfg, session, s.profiles)
	if err != nil {
		return nil, err
	}
	if s.onProgress != nil {
		driver.OnProgress(s.onProgress)
	}

	res, err := driver.Run(ctx)
	result := &Result{
		Method:      s.Name(),
		Best:        res.Best,
		Evaluations: res.Evaluations,
		Restarts:    res.Restarts,
		Stop:        string(res.Stop),
	}
	return result, err
}
