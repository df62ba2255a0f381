package simplex

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Subtract returns a - b over the coordinate slots.
func Subtract(a, b Point) Point {
	out := make(Point, len(a))
	out[0] = math.NaN()
	floats.SubTo(out[1:], a[1:], b[1:])
	return out
}

// Add returns a + b over the coordinate slots.
func Add(a, b Point) Point {
	out := make(Point, len(a))
	out[0] = math.NaN()
	floats.AddTo(out[1:], a[1:], b[1:])
	return out
}

// Average returns the coordinate-wise mean of a and b.
func Average(a, b Point) Point {
	out := Add(a, b)
	floats.Scale(0.5, out[1:])
	return out
}

// Centroid returns the mean of every point except the last one. The simplex
// must already be sorted so that the last point is the worst.
func Centroid(s Simplex) Point {
	dim := len(s) - 1
	out := make(Point, len(s[0]))
	out[0] = math.NaN()
	for _, p := range s[:dim] {
		floats.Add(out[1:], p[1:])
	}
	floats.Scale(1/float64(dim), out[1:])
	return out
}
