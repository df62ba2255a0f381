package opt

import (
	"context"
	"log/slog"

	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// GonumAdapter runs gonum's plain Nelder–Mead as a baseline for the
// restarting simplex search.
type GonumAdapter struct {
	dim      int
	amount   float64
	profiles search.Profiles
}

// NewGonum creates a gonum Nelder–Mead optimizer whose initial simplex has
// edge length amount.
func NewGonum(dim int, amount float64, profiles search.Profiles) Optimizer {
	return &GonumAdapter{
		dim:      dim,
		amount:   amount,
		profiles: profiles,
	}
}

// Name implements Optimizer.
func (g *GonumAdapter) Name() string {
	return "gonum"
}

// Run implements Optimizer.
func (g *GonumAdapter) Run(ctx context.Context, session *simplex.Session, origin []float64) (*Result, error) {
	if g.profiles != nil {
		session.SetProfile(g.profiles.Next())
	}
	obj := &sessionObjective{ctx: ctx, session: session}

	problem := optimize.Problem{
		Func: obj.eval,
		Status: func() (optimize.Status, error) {
			if obj.err != nil {
				return optimize.Failure, obj.err
			}
			return optimize.NotTerminated, nil
		},
	}

	settings := &optimize.Settings{
		Concurrent: 0, // the session is single-goroutine
	}
	if limit := session.MaxEvaluations(); limit > 0 {
		settings.FuncEvaluations = limit
	}

	initX := make([]float64, g.dim)
	if origin != nil {
		copy(initX, origin)
	}

	method := &optimize.NelderMead{SimplexSize: g.amount}
	res, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil && obj.err == nil {
		slog.Warn("Gonum optimization ended", "error", err)
	}

	result, runErr := obj.finish(g.Name())
	if res != nil {
		result.Stop = res.Status.String()
	}
	if obj.err != nil && simplex.OutcomeOf(obj.err) == simplex.BudgetExhausted {
		result.Stop = string(search.StopBudgetExhausted)
	}
	slog.Info("Gonum Nelder-Mead finished", "stop", result.Stop, "evaluations", result.Evaluations)
	return result, runErr
}
