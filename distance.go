package mkapp

import "math"

// DistanceMetric measures similarity between object vectors. Implementations
// must be symmetric and non-negative; the tree additionally relies on the
// triangle inequality for covering-radius pruning.
type DistanceMetric interface {
	Distance(a, b []float64) float64
}

// DistanceFunc adapts a plain function into a DistanceMetric.
type DistanceFunc func(a, b []float64) float64

func (f DistanceFunc) Distance(a, b []float64) float64 { return f(a, b) }

// EuclideanMetric computes the Euclidean (L2) distance.
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ManhattanMetric computes the Manhattan (L1 / city-block) distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// ChebyshevMetric computes the Chebyshev (L-infinity) distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b []float64) float64 {
	var maxVal float64
	for i := range a {
		if v := math.Abs(a[i] - b[i]); v > maxVal {
			maxVal = v
		}
	}
	return maxVal
}
