package simplex

import (
	"context"
	"fmt"
	"log/slog"
)

// Move names the update applied by Step.
type Move string

const (
	MoveReflect Move = "reflect"
	MoveExpand  Move = "expand"
	MoveShrink  Move = "shrink"
)

// Step runs one Nelder–Mead generation on a full simplex, replacing its
// worst point. The worst point is reflected through the centroid of the
// others. If the reflection is still worse than the second-worst point, the
// worst point moves halfway toward the best instead. If the reflection beats
// the best point, a further step in the same direction is tried and kept
// when it is better still. The simplex is sorted on return.
func (s *Session) Step(ctx context.Context, sx Simplex) (Move, error) {
	if len(sx) < 2 {
		return "", fmt.Errorf("simplex needs at least 2 points, has %d", len(sx))
	}

	sx.Sort()
	last := len(sx) - 1
	worst := sx[last]
	centroid := s.Midpoint(sx)
	direction := Subtract(centroid, worst)
	reflected := Add(centroid, direction)
	if err := s.Evaluate(ctx, reflected, true); err != nil {
		return "", err
	}

	move := MoveReflect
	switch {
	case reflected[0] > sx[last-1][0]:
		shrunk := Average(worst, sx[0])
		if err := s.Evaluate(ctx, shrunk, true); err != nil {
			return "", err
		}
		sx[last] = shrunk
		move = MoveShrink
	case reflected[0] < sx[0][0]:
		expanded := Add(reflected, direction)
		if err := s.Evaluate(ctx, expanded, true); err != nil {
			return "", err
		}
		if expanded[0] < reflected[0] {
			reflected = expanded
			move = MoveExpand
		}
		sx[last] = reflected
	default:
		sx[last] = reflected
	}

	sx.Sort()
	slog.Debug("Simplex step", "move", move, "best", sx[0][0], "worst", sx[last][0])
	return move, nil
}
