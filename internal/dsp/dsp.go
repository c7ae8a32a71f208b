// Package dsp holds the small numeric building blocks shared by the
// biometric services. All functions tolerate empty input and never panic.
package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IsFinite reports whether v is neither NaN nor +-Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Finite returns the finite values of data, preserving order
func Finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if IsFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mean returns the arithmetic mean, or 0 for empty input
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopVariance returns the population variance, or 0 for empty input
func PopVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.PopVariance(data, nil)
}

// PopStdDev returns the population standard deviation, or 0 for empty input
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.PopStdDev(data, nil)
}

// PeakToPeak returns max-min, or 0 for empty input
func PeakToPeak(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Max(data) - floats.Min(data)
}

// Amplitude estimates the oscillation amplitude of data as sqrt(2) times its
// population standard deviation, which is exact for a pure sinusoid
func Amplitude(data []float64) float64 {
	return math.Sqrt2 * PopStdDev(data)
}

// IsConstant reports whether every value lies within eps of the first.
// Empty input is constant.
func IsConstant(data []float64, eps float64) bool {
	return PeakToPeak(data) <= eps
}

// RemoveDC subtracts the mean from a copy of data and returns it with the mean
func RemoveDC(data []float64) ([]float64, float64) {
	mean := Mean(data)
	out := make([]float64, len(data))
	copy(out, data)
	floats.AddConst(-mean, out)
	return out, mean
}

// MovingAverage applies a centered moving average. Near the edges the window
// shrinks to the samples available, so the output has the same length as data.
func MovingAverage(data []float64, kernelSize int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if kernelSize < 2 {
		copy(out, data)
		return out
	}

	half := kernelSize / 2
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > n-1 {
			hi = n - 1
		}
		out[i] = floats.Sum(data[lo:hi+1]) / float64(hi-lo+1)
	}
	return out
}

// Median returns the median of data, or 0 for empty input
func Median(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// CoefficientOfVariation returns popStdDev/mean, or 0 when the mean is zero
func CoefficientOfVariation(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(data, nil)
	if mean == 0 {
		return 0
	}
	return std / math.Abs(mean)
}
