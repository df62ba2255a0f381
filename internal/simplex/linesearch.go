package simplex

import "context"

// Line-search scale factors used while building a simplex.
const (
	scaleGrow       = 2.0
	scaleSlowGrow   = 1.1
	scaleSlowShrink = 0.9
)

// StepOnce tries to improve the last point of sx by moving it along one
// coordinate relative to sx[0].
//
// If the last point already beats sx[0], its offset from sx[0] along index
// is multiplied by scale. Otherwise the offset is mirrored to the other side
// of sx[0]. The move is kept only if it strictly improves the last point;
// otherwise the point is restored and StepOnce reports false. Callers loop
// until it returns false.
func (s *Session) StepOnce(ctx context.Context, sx Simplex, scale float64, index int) (bool, error) {
	last := sx[len(sx)-1]
	best := sx[0]
	prior := last.Clone()

	gap := last[index] - best[index]
	switch {
	case prior[0] < best[0]:
		last[index] = best[index] + scale*gap
	case prior[0] >= 0:
		last[index] = best[index] - gap
	default:
		return false, nil
	}

	if err := s.Evaluate(ctx, last, true); err != nil {
		copy(last, prior)
		return false, err
	}
	if last[0] < prior[0] {
		return true, nil
	}
	copy(last, prior)
	return false, nil
}

// lineSearch calls StepOnce until it stops improving and returns the number
// of improving steps.
func (s *Session) lineSearch(ctx context.Context, sx Simplex, scale float64, index int) (int, error) {
	steps := 0
	for {
		improved, err := s.StepOnce(ctx, sx, scale, index)
		if err != nil {
			return steps, err
		}
		if !improved {
			return steps, nil
		}
		steps++
	}
}
