package ppg

import (
	"math"

	"github.com/chrissnell/biometrics/internal/dsp"
)

// SpO2 curve bounds for EstimateSpO2
const (
	SpO2Floor   = 70.0
	SpO2Ceiling = 100.0
)

// IsSignalValid reports whether v is finite and strictly inside
// (LowSignalThreshold, SaturationThreshold). Values on a threshold are invalid.
func IsSignalValid(v float64, params Params) bool {
	if !dsp.IsFinite(v) {
		return false
	}
	return v > params.LowSignalThreshold && v < params.SaturationThreshold
}

// PerfusionIndex returns |normalized|/raw*100, or 0 when raw is zero or any input is non-finite
func PerfusionIndex(raw, normalized float64) float64 {
	if raw == 0 || !dsp.IsFinite(raw) || !dsp.IsFinite(normalized) {
		return 0
	}
	return math.Abs(normalized) / raw * 100
}

// RRatio returns (|redAC|/redDC)/(|irAC|/irDC). It is 0 whenever redDC, irDC
// or irAC is zero, or any input is non-finite.
func RRatio(redAC, redDC, irAC, irDC float64) float64 {
	for _, v := range []float64{redAC, redDC, irAC, irDC} {
		if !dsp.IsFinite(v) {
			return 0
		}
	}
	if redDC == 0 || irDC == 0 || irAC == 0 {
		return 0
	}
	return (math.Abs(redAC) / redDC) / (math.Abs(irAC) / irDC)
}

// EstimateSpO2 maps an R-ratio to saturation with the linear empirical curve
// 110-25r clamped to [70,100]. A zero ratio means no measurement and yields 0.
func EstimateSpO2(r float64) float64 {
	if r == 0 || !dsp.IsFinite(r) {
		return 0
	}
	return dsp.Clamp(110-25*r, SpO2Floor, SpO2Ceiling)
}
