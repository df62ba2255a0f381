package simplex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evaluateAll scores every point of a hand-built simplex.
func evaluateAll(t *testing.T, s *Session, sx Simplex) {
	t.Helper()
	for _, p := range sx {
		require.NoError(t, s.Evaluate(context.Background(), p, true))
	}
}

func containsCoords(sx Simplex, coords ...float64) (Point, bool) {
	for _, p := range sx {
		match := true
		for i, c := range coords {
			if p[i+1] != c {
				match = false
				break
			}
		}
		if match {
			return p, true
		}
	}
	return nil, false
}

func TestStep_ShrinkTowardBest(t *testing.T) {
	s, _ := newTestSession(sphere, 0)
	sx := Simplex{NewPoint(-1, 0), NewPoint(0, 0.5), NewPoint(0, 0)}
	evaluateAll(t, s, sx)

	// Centroid of the two best is (0, 0.25); reflecting (-1, 0) gives (1, 0.5),
	// which scores 2.25 and is worse than the second-worst 1.25.
	move, err := s.Step(context.Background(), sx)
	require.NoError(t, err)

	assert.Equal(t, MoveShrink, move)
	assert.True(t, sx.IsSorted())
	shrunk, ok := containsCoords(sx, -0.5, 0)
	require.True(t, ok, "worst must become the average of old worst and best: %v", sx)
	assert.Equal(t, 1.25, shrunk.Value())
	_, ok = containsCoords(sx, -1, 0)
	assert.False(t, ok, "old worst must be gone")
}

func TestStep_Reflect(t *testing.T) {
	s, _ := newTestSession(sphere, 0)
	sx := Simplex{NewPoint(1, 1), NewPoint(0, 0), NewPoint(1, 0)}
	evaluateAll(t, s, sx)

	move, err := s.Step(context.Background(), sx)
	require.NoError(t, err)

	assert.Equal(t, MoveReflect, move)
	reflected, ok := containsCoords(sx, 0, -1)
	require.True(t, ok, "reflected point missing: %v", sx)
	assert.Equal(t, 2.0, reflected.Value())
	assert.True(t, sx.IsSorted())
}

func TestStep_Expand(t *testing.T) {
	s, scorer := newTestSession(sphere, 0)
	sx := Simplex{NewPoint(2, 2), NewPoint(3, 2), NewPoint(3, 3)}
	evaluateAll(t, s, sx)
	before := scorer.calls

	move, err := s.Step(context.Background(), sx)
	require.NoError(t, err)

	assert.Equal(t, MoveExpand, move)
	assert.Equal(t, 2, scorer.calls-before, "reflected and expanded points are scored")
	best := sx.Best()
	assert.Equal(t, []float64{1.5, 0}, []float64(best.Coords()))
	assert.Equal(t, 3.25, best.Value())
}

func TestStep_KeepsSimplexSorted(t *testing.T) {
	s, _ := newTestSession(shifted, 0)
	ctx := context.Background()

	sx, err := s.BuildSimplex(ctx, Origin(3), 3, 0.5)
	require.NoError(t, err)
	start := sx.Best().Value()

	for i := 0; i < 30; i++ {
		_, err := s.Step(ctx, sx)
		require.NoError(t, err)
		require.True(t, sx.IsSorted(), "generation %d", i)
		require.Len(t, sx, 4)
	}
	assert.LessOrEqual(t, sx.Best().Value(), start)
}

func TestStep_RejectsTinySimplex(t *testing.T) {
	s, _ := newTestSession(sphere, 0)
	_, err := s.Step(context.Background(), Simplex{evaluated(1, 0)})
	assert.Error(t, err)
}
