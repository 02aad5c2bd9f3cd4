package index

import "math"

// EuclideanDistance computes the L2 distance between two vectors.
// For unit-normalized face embeddings the result lies in [0, 2].
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	sum, _ := SquaredDistanceWithin(a, b, math.Inf(1))
	return math.Sqrt(sum)
}

// SquaredDistanceWithin accumulates the squared L2 distance and gives up as soon as
// the partial sum exceeds limit, returning false. A completed sum equals the square
// of EuclideanDistance bit for bit.
func SquaredDistanceWithin(a, b []float32, limit float64) (float64, bool) {
	if len(a) != len(b) {
		return math.Inf(1), false
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
		if sum > limit {
			return sum, false
		}
	}
	return sum, true
}
