// Package search drives a simplex search: a staged construction of the
// initial simplex followed by an open-ended loop of Nelder–Mead generations
// and randomized restarts.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/simplexsearch/internal/simplex"
)

// DefaultMaxRestarts bounds the restart loop when no limit is configured.
// In practice the evaluation budget ends the search long before.
const DefaultMaxRestarts = 99999

// stageScales multiply the configured amount for the initial construction
// stages. The first stage explores wide; later ones refine around the best.
var stageScales = []float64{7.0, 2.47, 1.0, 0.33}

// Profiles supplies a new parameter profile on demand.
type Profiles interface {
	Next() string
}

// StopReason explains why a successful search ended.
type StopReason string

const (
	StopBudgetExhausted   StopReason = "budget-exhausted"
	StopConverged         StopReason = "converged"
	StopRestartsExhausted StopReason = "restarts-exhausted"
)

// Config holds the driver settings.
type Config struct {
	Dim    int
	Amount float64

	// Origin is the starting coordinate vector. Nil starts at zero.
	Origin []float64

	// MaxRestarts limits the restart loop; <= 0 uses DefaultMaxRestarts.
	MaxRestarts int

	Convergence ConvergenceConfig
}

// Progress is reported after every construction stage and every restart.
type Progress struct {
	Phase       string // "init" or "restart"
	Stage       int    // construction stage, or restart number
	Best        simplex.Point
	Evaluations int
	Profile     string
}

// Result summarizes a finished search.
type Result struct {
	Best        simplex.Point
	Evaluations int
	Restarts    int
	Stop        StopReason
}

// Driver runs the search over one Session.
type Driver struct {
	config     Config
	session    *simplex.Session
	profiles   Profiles
	onProgress func(Progress)

	current  simplex.Simplex
	best     simplex.Point
	restarts int
}

// NewDriver validates config and returns a driver.
func NewDriver(config Config, session *simplex.Session, profiles Profiles) (*Driver, error) {
	if config.Dim < 1 {
		return nil, fmt.Errorf("dimension must be positive: %d", config.Dim)
	}
	if config.Amount == 0 || math.IsNaN(config.Amount) || math.IsInf(config.Amount, 0) {
		return nil, fmt.Errorf("amount must be a non-zero finite number: %g", config.Amount)
	}
	if config.Origin != nil && len(config.Origin) != config.Dim {
		return nil, fmt.Errorf("origin has %d coordinates, expected %d", len(config.Origin), config.Dim)
	}
	if config.MaxRestarts <= 0 {
		config.MaxRestarts = DefaultMaxRestarts
	}
	return &Driver{
		config:   config,
		session:  session,
		profiles: profiles,
	}, nil
}

// OnProgress registers a callback for progress reports.
func (d *Driver) OnProgress(fn func(Progress)) {
	d.onProgress = fn
}

// Run executes the search until the budget is spent, convergence is
// detected or the restart limit is reached; those end with a nil error.
// Protocol failures and context cancellation are returned as errors. The
// result is never nil and always carries the best point found so far.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	err := d.run(ctx)
	d.observe(d.current)
	result := &Result{
		Best:        d.best,
		Evaluations: d.session.Evaluations(),
		Restarts:    d.restarts,
	}

	switch {
	case err == nil:
		result.Stop = StopRestartsExhausted
	case errors.Is(err, errConverged):
		result.Stop = StopConverged
	case simplex.OutcomeOf(err) == simplex.BudgetExhausted:
		result.Stop = StopBudgetExhausted
	default:
		return result, err
	}

	slog.Info("Search finished",
		"stop", result.Stop,
		"evaluations", result.Evaluations,
		"restarts", result.Restarts,
		"best", d.bestValue(),
	)
	return result, nil
}

var errConverged = errors.New("search converged")

func (d *Driver) run(ctx context.Context) error {
	dim := d.config.Dim
	origin := simplex.Origin(dim)
	if d.config.Origin != nil {
		origin = simplex.NewPoint(d.config.Origin...)
	}

	d.session.SetProfile(d.profiles.Next())

	var sx simplex.Simplex
	for stage, scale := range stageScales {
		if stage == 1 {
			d.session.SetProfile(d.profiles.Next())
		}
		if sx != nil {
			origin = sx[0].Clone()
		}

		var err error
		sx, err = d.session.BuildSimplex(ctx, origin, dim, d.config.Amount*scale)
		if err != nil {
			return err
		}
		d.observe(sx)
		slog.Info("Initial simplex stage complete",
			"stage", stage,
			"amount", d.config.Amount*scale,
			"best", sx[0][0],
			"evaluations", d.session.Evaluations(),
		)
		d.report("init", stage)
	}

	tracker := NewConvergenceTracker(d.config.Convergence)
	for restart := 0; restart < d.config.MaxRestarts; restart++ {
		for gen := 0; gen < 2*dim; gen++ {
			sx.Sort()
			d.session.PublishBest(sx[0])
			if _, err := d.session.Step(ctx, sx); err != nil {
				return err
			}
			d.observe(sx)
		}

		r := d.session.Rand().Float64()
		mulli := 0.1 + 15*r*r
		d.session.SetProfile(d.profiles.Next())
		slog.Info("Restart",
			"restart", restart,
			"mulli", mulli,
			"best", sx[0][0],
			"evaluations", d.session.Evaluations(),
		)

		sx.Sort()
		d.session.PublishBest(sx[0])
		var err error
		sx, err = d.session.BuildSimplex(ctx, sx[0].Clone(), dim, d.config.Amount*mulli)
		if err != nil {
			return err
		}
		d.observe(sx)
		d.restarts = restart + 1
		d.report("restart", restart)

		if tracker.Update(d.bestValue()) {
			return errConverged
		}
	}
	return nil
}

// observe keeps the best point seen across simplex rebuilds. Points
// scored by a rebuild or step that was cut short reach it through the
// session's lowest point.
func (d *Driver) observe(sx simplex.Simplex) {
	d.current = sx
	if low := d.session.Lowest(); low != nil && (d.best == nil || low[0] < d.best[0]) {
		d.best = low
	}
	for _, p := range sx {
		if !p.Evaluated() {
			continue
		}
		if d.best == nil || p[0] < d.best[0] {
			d.best = p.Clone()
		}
	}
}

func (d *Driver) bestValue() float64 {
	if d.best == nil {
		return math.Inf(1)
	}
	return d.best[0]
}

func (d *Driver) report(phase string, stage int) {
	if d.onProgress == nil || d.best == nil {
		return
	}
	d.onProgress(Progress{
		Phase:       phase,
		Stage:       stage,
		Best:        d.best.Clone(),
		Evaluations: d.session.Evaluations(),
		Profile:     d.session.Profile(),
	})
}
