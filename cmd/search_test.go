package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/simplexsearch/internal/config"
	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/opt"
	"github.com/cwbudde/simplexsearch/internal/simplex"
	"github.com/cwbudde/simplexsearch/internal/store"
)

func sphere(coords []float64) float64 {
	sum := 1.0
	for _, c := range coords {
		sum += (c - 1) * (c - 1)
	}
	return sum
}

type brokenScorer struct{}

func (brokenScorer) Score(context.Context, objective.Request) (float64, error) {
	return 0, &objective.ProtocolError{Binary: "./score", Err: objective.ErrNoScore}
}

func testRunConfig() *config.Config {
	cfg := config.Default()
	cfg.Binary = "./score"
	cfg.Dim = 2
	cfg.MaxEvaluations = 60
	return cfg
}

func TestRunSearch_Success(t *testing.T) {
	st, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	var out, progress bytes.Buffer
	result, err := runSearch(context.Background(), &out, searchRun{
		JobID:    "job",
		Config:   testRunConfig(),
		Scorer:   objective.Func(sphere),
		Store:    st,
		Progress: &progress,
	})
	require.NoError(t, err, "budget exhaustion is a successful end")
	require.NotNil(t, result)

	assert.Equal(t, 60, result.Evaluations)
	assert.Equal(t, "budget-exhausted", result.Stop)
	assert.Less(t, result.Value(), 2.0)
	assert.Contains(t, out.String(), "Job:          job")
	assert.Contains(t, out.String(), "Best point:")
	assert.NotEmpty(t, progress.String())

	cp, err := st.LoadCheckpoint("job")
	require.NoError(t, err)
	assert.Equal(t, 60, cp.Evaluations)
	assert.Equal(t, result.Value(), cp.BestValue)
	assert.Equal(t, []float64(result.Best.Coords()), cp.BestPoint)

	reader, err := store.NewTraceReader(st.BaseDir(), "job")
	require.NoError(t, err)
	defer reader.Close()
	entries, err := reader.ReadAll()
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRunSearch_NoStore(t *testing.T) {
	var out bytes.Buffer
	result, err := runSearch(context.Background(), &out, searchRun{
		JobID:  "job",
		Config: testRunConfig(),
		Scorer: objective.Func(sphere),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, result.Evaluations)
}

func TestRunSearch_ProtocolFailure(t *testing.T) {
	var out bytes.Buffer
	result, err := runSearch(context.Background(), &out, searchRun{
		JobID:  "job",
		Config: testRunConfig(),
		Scorer: brokenScorer{},
		Store:  nil,
	})
	require.Error(t, err)
	require.NotNil(t, result)

	var protoErr *objective.ProtocolError
	assert.True(t, errors.As(err, &protoErr))
	assert.Contains(t, out.String(), "Best value:")
}

func TestRunSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := runSearch(ctx, &out, searchRun{
		JobID:  "job",
		Config: testRunConfig(),
		Scorer: objective.Func(sphere),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoredTotal(t *testing.T) {
	assert.Equal(t, 59, scoredTotal(60))
	assert.Equal(t, 0, scoredTotal(1))
}

func TestScoredTotal_MatchesLastIndex(t *testing.T) {
	cfg := testRunConfig()
	last := 0
	result, err := opt.Execute(context.Background(), cfg, objective.Func(sphere), nil, opt.Hooks{
		OnEvaluate: func(ev simplex.Evaluation) {
			if !ev.Cached {
				last = ev.Index
			}
		},
	})
	require.NoError(t, err)
	require.Equal(t, "budget-exhausted", result.Stop)
	assert.Equal(t, scoredTotal(cfg.MaxEvaluations), last, "the bar must be full after the last scored evaluation")
}
