package simplex

import (
	"context"
	"fmt"
	"log/slog"
)

// BuildSimplex constructs a sorted simplex of dim+1 points around origin.
//
// The cache is cleared first. Coordinates are visited in a random order; for
// each one the current best point is offset by amount along that axis and
// then refined by line search with scale 2.0, then 1.1, then 0.9 (the last
// only if 1.1 made no progress). The shuffled order changes which local
// optimum the greedy line search settles on, so runs with different seeds
// differ.
func (s *Session) BuildSimplex(ctx context.Context, origin Point, dim int, amount float64) (Simplex, error) {
	if origin.Dim() != dim {
		return nil, fmt.Errorf("origin has %d coordinates, expected %d", origin.Dim(), dim)
	}
	if dim < 1 {
		return nil, fmt.Errorf("dimension must be positive: %d", dim)
	}

	s.ForgetCache()

	best := origin.Clone()
	if err := s.Evaluate(ctx, best, true); err != nil {
		return nil, err
	}
	sx := make(Simplex, 1, dim+1)
	sx[0] = best

	order := s.rng.Perm(dim)
	for _, i := range order {
		index := i + 1

		p := sx[0].Clone()
		p[index] += amount
		if err := s.Evaluate(ctx, p, true); err != nil {
			return nil, err
		}
		sx = append(sx, p)

		grown, err := s.lineSearch(ctx, sx, scaleGrow, index)
		if err != nil {
			return nil, err
		}
		slowGrown, err := s.lineSearch(ctx, sx, scaleSlowGrow, index)
		if err != nil {
			return nil, err
		}
		shrunk := 0
		if slowGrown == 0 {
			if shrunk, err = s.lineSearch(ctx, sx, scaleSlowShrink, index); err != nil {
				return nil, err
			}
		}

		sx.Sort()
		slog.Debug("Simplex axis built",
			"index", index,
			"grow_steps", grown,
			"slow_grow_steps", slowGrown,
			"shrink_steps", shrunk,
			"best", sx[0][0],
		)
	}

	return sx, nil
}
