// Package opt provides the search methods behind one interface. Every method
// scores points through a simplex.Session, so the evaluation cache, the
// budget and the collaborator protocol handling are shared.
package opt

import (
	"context"
	"fmt"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Name returns the method name used in configs and logs
	Name() string

	// Run minimizes over session starting near origin (nil = zero vector).
	// Budget exhaustion ends a run successfully; protocol failures and
	// cancellation are returned as errors together with the partial result.
	Run(ctx context.Context, session *simplex.Session, origin []float64) (*Result, error)
}

// Result is the outcome of a run.
type Result struct {
	Method      string
	Best        simplex.Point // augmented: Best[0] is the value; nil if nothing was scored
	Evaluations int
	Restarts    int
	Stop        string
}

// Value returns the best objective value, or Sentinel when nothing was scored.
func (r *Result) Value() float64 {
	if r.Best == nil {
		return simplex.Sentinel
	}
	return r.Best[0]
}

// New builds the optimizer selected by cfg.Method. profiles supplies
// parameter profiles; onProgress, if non-nil, receives the simplex driver's
// stage and restart reports.
func New(cfg *config.Config, profiles search.Profiles, onProgress func(search.Progress)) (Optimizer, error) {
	switch cfg.Method {
	case config.MethodSimplex, "":
		return NewSimplex(cfg.SearchConfig(), profiles, onProgress), nil
	case config.MethodMayfly:
		return NewMayfly(cfg.Dim, cfg.Iters, cfg.PopSize, cfg.Seed, cfg.Lower, cfg.Upper, profiles), nil
	case config.MethodGonum:
		return NewGonum(cfg.Dim, cfg.Amount, profiles), nil
	default:
		return nil, fmt.Errorf("unknown method: %s", cfg.Method)
	}
}

// sessionObjective adapts a Session to the plain func([]float64) float64
// objective that population and gonum methods expect. The first error is
// kept and every later call returns Sentinel without scoring.
type sessionObjective struct {
	ctx     context.Context
	session *simplex.Session
	best    simplex.Point
	err     error
}

func (o *sessionObjective) eval(x []float64) float64 {
	if o.err != nil {
		return simplex.Sentinel
	}
	p := simplex.NewPoint(x...)
	if err := o.session.Evaluate(o.ctx, p, true); err != nil {
		o.err = err
		return simplex.Sentinel
	}
	if o.best == nil || p[0] < o.best[0] {
		o.best = p.Clone()
		o.session.PublishBest(o.best)
	}
	return p[0]
}

// finish builds the result and classifies the stored error.
func (o *sessionObjective) finish(method string) (*Result, error) {
	result := &Result{
		Method:      method,
		Best:        o.best,
		Evaluations: o.session.Evaluations(),
		Stop:        "completed",
	}
	if o.err == nil {
		return result, nil
	}
	if simplex.OutcomeOf(o.err) == simplex.BudgetExhausted {
		result.Stop = string(search.StopBudgetExhausted)
		return result, nil
	}
	return result, o.err
}
