package buffer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/biometrics/internal/types"
)

// DefaultLSBPerG is the LIS2DTW12 sensitivity at the +-2g full-scale setting
const DefaultLSBPerG = 16384.0

// AccelBuffer stores accelerometer samples and derives magnitudes in g
type AccelBuffer struct {
	*Series[types.AccelSample]
	lsbPerG float64
}

// NewAccelBuffer creates an accelerometer buffer. A non-positive lsbPerG selects DefaultLSBPerG.
func NewAccelBuffer(capacity int, lsbPerG float64) *AccelBuffer {
	if !(lsbPerG > 0) {
		lsbPerG = DefaultLSBPerG
	}
	return &AccelBuffer{
		Series:  NewSeries[types.AccelSample](capacity),
		lsbPerG: lsbPerG,
	}
}

// Magnitude returns the Euclidean norm of a sample in g
func Magnitude(s types.AccelSample, lsbPerG float64) float64 {
	x := float64(s.X)
	y := float64(s.Y)
	z := float64(s.Z)
	return math.Sqrt(x*x+y*y+z*z) / lsbPerG
}

// Magnitude returns the norm of a sample using this buffer's sensitivity
func (b *AccelBuffer) Magnitude(s types.AccelSample) float64 {
	return Magnitude(s, b.lsbPerG)
}

// Magnitudes returns the per-sample magnitude in g, in arrival order
func (b *AccelBuffer) Magnitudes() []float64 {
	samples := b.All()
	mags := make([]float64, len(samples))
	for i, s := range samples {
		mags[i] = Magnitude(s, b.lsbPerG)
	}
	return mags
}

// IsAtRest reports whether the mean magnitude is within threshold of 1g.
// An empty buffer is never at rest.
func (b *AccelBuffer) IsAtRest(threshold float64) bool {
	mags := b.Magnitudes()
	if len(mags) == 0 {
		return false
	}
	return math.Abs(stat.Mean(mags, nil)-1.0) < threshold
}
