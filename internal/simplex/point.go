package simplex

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Sentinel replaces non-positive scores so that such points rank as very bad.
const Sentinel = 1e30

// Point is an augmented vector: slot 0 holds the objective value (lower is
// better, NaN until evaluated) and slots 1..dim hold the coordinates.
type Point []float64

// NewPoint returns an unevaluated point at the given coordinates.
func NewPoint(coords ...float64) Point {
	p := make(Point, len(coords)+1)
	p[0] = math.NaN()
	copy(p[1:], coords)
	return p
}

// Origin returns an unevaluated point at the origin of a dim-dimensional space.
func Origin(dim int) Point {
	return NewPoint(make([]float64, dim)...)
}

// Dim returns the number of coordinates.
func (p Point) Dim() int {
	return len(p) - 1
}

// Value returns the objective value.
func (p Point) Value() float64 {
	return p[0]
}

// Coords returns the coordinate slots. The slice aliases p.
func (p Point) Coords() []float64 {
	return p[1:]
}

// Evaluated reports whether slot 0 holds a number.
func (p Point) Evaluated() bool {
	return !math.IsNaN(p[0])
}

// Clone returns an independent copy of p.
func (p Point) Clone() Point {
	return append(Point(nil), p...)
}

// String formats the point as "[value, c1, c2, ...]". This is the form
// published as the best marker.
func (p Point) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range p {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Simplex is an ordered set of points. A full simplex holds dim+1 points.
type Simplex []Point

// Sort orders the simplex ascending by objective value only.
func (s Simplex) Sort() {
	slices.SortStableFunc(s, func(a, b Point) int {
		return cmp.Compare(a[0], b[0])
	})
}

// IsSorted reports whether the simplex is ascending by objective value.
func (s Simplex) IsSorted() bool {
	return slices.IsSortedFunc(s, func(a, b Point) int {
		return cmp.Compare(a[0], b[0])
	})
}

// Best returns the first point. Only meaningful after Sort.
func (s Simplex) Best() Point {
	return s[0]
}

// Worst returns the last point. Only meaningful after Sort.
func (s Simplex) Worst() Point {
	return s[len(s)-1]
}

// Clone deep-copies the simplex.
func (s Simplex) Clone() Simplex {
	out := make(Simplex, len(s))
	for i, p := range s {
		out[i] = p.Clone()
	}
	return out
}
