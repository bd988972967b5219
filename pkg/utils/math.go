package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp bounds v to the inclusive range [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GeometricMean computes the geometric mean of positive values via log-space
// accumulation so that long inputs do not overflow. Returns 0 for an empty
// slice.
func GeometricMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Log(v)
	}
	return math.Exp(sum / float64(len(values)))
}
