// Package metric provides distance functions and bounding volumes used by
// the spatial trees and the distributed construction protocol.
package metric

import "math"

// Metric computes distances between points of equal dimensionality.
// Callers are responsible for matching vector lengths.
type Metric interface {
	Distance(a, b []float64) float64
	DistanceSq(a, b []float64) float64
}

// Euclidean is the L2 metric.
type Euclidean struct{}

// DistanceSq returns the squared L2 distance between a and b.
func (Euclidean) DistanceSq(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Distance returns the L2 distance between a and b.
func (e Euclidean) Distance(a, b []float64) float64 {
	return math.Sqrt(e.DistanceSq(a, b))
}
