package hdrbake

import (
	"math"

	"golang.org/x/exp/constraints"
)

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }
func powf(v, e float32) float32 {
	return float32(math.Pow(float64(v), float64(e)))
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float32) float32 {
	return clamp(v, 0, 1)
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// toByte maps [0, 1] to [0, 255] rounding to nearest; NaN maps to 0.
func toByte(v float32) uint8 {
	if v != v {
		return 0
	}
	return uint8(clamp(v*255, 0, 255) + 0.5)
}
