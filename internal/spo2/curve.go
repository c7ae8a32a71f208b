package spo2

import (
	"fmt"
	"strings"

	"github.com/chrissnell/biometrics/internal/dsp"
)

// CalibrationCurve selects the polynomial that maps R-ratio to saturation
type CalibrationCurve int

const (
	// CurveLinear is 110 - 25r
	CurveLinear CalibrationCurve = iota
	// CurveQuadratic is the Maxim reference fit -45.060r^2 + 30.354r + 94.845
	CurveQuadratic
	// CurveCubic is a third-order fit that flattens near full saturation
	CurveCubic
)

// Polynomial coefficients, lowest order first. These are empirical
// calibration data for the optical front end, not physical constants.
var curveCoefficients = map[CalibrationCurve][]float64{
	CurveLinear:    {110, -25},
	CurveQuadratic: {94.845, 30.354, -45.060},
	CurveCubic:     {101.3, -12.57, 8.2, -16.666},
}

// Coefficients returns a copy of the curve's polynomial, lowest order first
func (c CalibrationCurve) Coefficients() []float64 {
	coeffs, ok := curveCoefficients[c]
	if !ok {
		coeffs = curveCoefficients[CurveLinear]
	}
	return append([]float64(nil), coeffs...)
}

// Apply evaluates the curve at r and clamps to [0,100]. A zero or
// non-finite ratio means no measurement and yields 0.
func (c CalibrationCurve) Apply(r float64) float64 {
	if r == 0 || !dsp.IsFinite(r) {
		return 0
	}
	coeffs := c.Coefficients()
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*r + coeffs[i]
	}
	return dsp.Clamp(v, 0, 100)
}

func (c CalibrationCurve) String() string {
	switch c {
	case CurveLinear:
		return "linear"
	case CurveQuadratic:
		return "quadratic"
	case CurveCubic:
		return "cubic"
	default:
		return "unknown"
	}
}

// ParseCurve converts a curve name to a CalibrationCurve
func ParseCurve(name string) (CalibrationCurve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return CurveLinear, nil
	case "quadratic":
		return CurveQuadratic, nil
	case "cubic":
		return CurveCubic, nil
	default:
		return CurveLinear, fmt.Errorf("unknown calibration curve %q", name)
	}
}
