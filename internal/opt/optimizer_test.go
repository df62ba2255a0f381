package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/search"
	"github.com/cwbudde/simplexsearch/internal/simplex"
)

func testConfig(method string) *config.Config {
	cfg := config.Default()
	cfg.Binary = "./score"
	cfg.Dim = 2
	cfg.MaxEvaluations = 80
	cfg.Method = method
	return cfg
}

func TestNew(t *testing.T) {
	for _, method := range []string{config.MethodSimplex, config.MethodMayfly, config.MethodGonum} {
		t.Run(method, func(t *testing.T) {
			optimizer, err := New(testConfig(method), fixedProfiles("p"), nil)
			require.NoError(t, err)
			assert.Equal(t, method, optimizer.Name())
		})
	}

	_, err := New(testConfig("anneal"), fixedProfiles("p"), nil)
	assert.Error(t, err)
}

func TestSimplexAdapter(t *testing.T) {
	cfg := testConfig(config.MethodSimplex)
	var reports []search.Progress
	optimizer, err := New(cfg, fixedProfiles("jxl:d1.000"), func(p search.Progress) {
		reports = append(reports, p)
	})
	require.NoError(t, err)

	session := simplex.NewSession(objective.Func(sphere), simplex.Options{MaxEvaluations: cfg.MaxEvaluations})
	result, err := optimizer.Run(context.Background(), session, []float64{2, 2})
	require.NoError(t, err)

	assert.Equal(t, "simplex", result.Method)
	assert.Equal(t, string(search.StopBudgetExhausted), result.Stop)
	assert.Equal(t, 80, result.Evaluations)
	assert.Less(t, result.Value(), sphere([]float64{2, 2}))
	assert.NotEmpty(t, reports)
	assert.Equal(t, "jxl:d1.000", session.Profile())
}

func TestExecute(t *testing.T) {
	for _, method := range []string{config.MethodSimplex, config.MethodMayfly, config.MethodGonum} {
		t.Run(method, func(t *testing.T) {
			cfg := testConfig(method)
			cfg.Iters = 20
			var evaluations []simplex.Evaluation

			result, err := Execute(context.Background(), cfg, objective.Func(sphere), []float64{1, 1}, Hooks{
				OnEvaluate: func(ev simplex.Evaluation) { evaluations = append(evaluations, ev) },
			})
			require.NoError(t, err)
			require.NotNil(t, result.Best)

			assert.Equal(t, method, result.Method)
			assert.NotEmpty(t, evaluations)
			assert.LessOrEqual(t, result.Evaluations, cfg.MaxEvaluations)
			for _, ev := range evaluations {
				assert.True(t, ev.Point.Evaluated())
			}
		})
	}
}

func TestExecute_Deterministic(t *testing.T) {
	cfg := testConfig(config.MethodSimplex)

	first, err := Execute(context.Background(), cfg, objective.Func(sphere), nil, Hooks{})
	require.NoError(t, err)
	second, err := Execute(context.Background(), cfg, objective.Func(sphere), nil, Hooks{})
	require.NoError(t, err)

	assert.Equal(t, first.Best, second.Best)
}

func TestExecute_UsesConfiguredOrigin(t *testing.T) {
	cfg := testConfig(config.MethodGonum)
	cfg.MaxEvaluations = 2
	cfg.Origin = []float64{4, 4}

	var first simplex.Evaluation
	seen := false
	_, err := Execute(context.Background(), cfg, objective.Func(sphere), nil, Hooks{
		OnEvaluate: func(ev simplex.Evaluation) {
			if !seen {
				first, seen = ev, true
			}
		},
	})
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, []float64{4, 4}, []float64(first.Point.Coords()))
}
