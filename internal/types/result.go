package types

import "time"

// Status tags why a service did or did not produce a measurement.
// The set is closed; callers may switch on it exhaustively.
type Status int

const (
	// StatusInsufficientData means the window is not yet full (normal warm-up)
	StatusInsufficientData Status = iota
	// StatusInvalidSignal means readings were saturated, too low, or had no usable pulse
	StatusInvalidSignal
	// StatusDegenerateWindow means the window had zero variance
	StatusDegenerateWindow
	// StatusValid means a measurement was produced
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusInsufficientData:
		return "insufficient_data"
	case StatusInvalidSignal:
		return "invalid_signal"
	case StatusDegenerateWindow:
		return "degenerate_window"
	case StatusValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Physiologic bounds used by result validity checks
const (
	ValidBPMMin = 40.0
	ValidBPMMax = 200.0

	HRMinConfidence = 0.5

	SpO2BandMin            = 70.0
	SpO2BandMax            = 100.0
	SpO2ClinicalConfidence = 0.7
)

// HRResult is the reduction of one heart-rate window
type HRResult struct {
	BPM        float64
	Confidence float64
	IsWorn     bool
	PeakCount  int
	// HRVMs is nil unless peaks were found
	HRVMs  *float64
	Status Status
}

// IsValid reports whether the BPM is physiologic and confidence is sufficient
func (r HRResult) IsValid() bool {
	return r.BPM >= ValidBPMMin && r.BPM <= ValidBPMMax && r.Confidence > HRMinConfidence
}

// EmptyHRResult is returned whenever no rate can be computed
func EmptyHRResult(status Status) HRResult {
	return HRResult{Status: status}
}

// SpO2Result is the reduction of one SpO2 window
type SpO2Result struct {
	Percentage float64
	Confidence float64
	RRatio     float64
	IsValid    bool
	Status     Status

	RedAC float64
	RedDC float64
	IRAC  float64
	IRDC  float64
}

// IsClinicallyValid additionally requires the percentage inside the physiologic
// band and a confidence of at least 0.7
func (r SpO2Result) IsClinicallyValid() bool {
	return r.IsValid &&
		r.Percentage >= SpO2BandMin && r.Percentage <= SpO2BandMax &&
		r.Confidence >= SpO2ClinicalConfidence
}

// EmptySpO2Result is returned whenever no saturation can be computed
func EmptySpO2Result(status Status) SpO2Result {
	return SpO2Result{Status: status}
}

// ActivityState is the wearer activity as seen by the threshold classifier
type ActivityState int

const (
	ActivityRelaxed ActivityState = iota
	ActivityClenching
	ActivityGrinding
	ActivityMotion
)

func (a ActivityState) String() string {
	switch a {
	case ActivityRelaxed:
		return "relaxed"
	case ActivityClenching:
		return "clenching"
	case ActivityGrinding:
		return "grinding"
	case ActivityMotion:
		return "motion"
	default:
		return "unknown"
	}
}

// SignalStrength is a coarse tier derived from the perfusion index
type SignalStrength int

const (
	SignalNone SignalStrength = iota
	SignalWeak
	SignalModerate
	SignalStrong
)

func (s SignalStrength) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalWeak:
		return "weak"
	case SignalModerate:
		return "moderate"
	case SignalStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// Perfusion-index band edges (percent). These are tuned for the Oralable
// optical front end and should be treated as calibration data.
const (
	PIWeak     = 0.1
	PIModerate = 0.5
	PIStrong   = 1.5
)

// SignalStrengthFromPI maps a perfusion index to a strength tier
func SignalStrengthFromPI(pi float64) SignalStrength {
	switch {
	case !(pi >= PIWeak): // also catches NaN
		return SignalNone
	case pi < PIModerate:
		return SignalWeak
	case pi < PIStrong:
		return SignalModerate
	default:
		return SignalStrong
	}
}

// ProcessingMethod records which entry point produced a result
type ProcessingMethod int

const (
	MethodRealtime ProcessingMethod = iota
	MethodBatch
)

func (m ProcessingMethod) String() string {
	if m == MethodBatch {
		return "batch"
	}
	return "realtime"
}

// BiometricResult is an immutable snapshot produced once per processor call
type BiometricResult struct {
	Timestamp time.Time

	HeartRate           float64
	HeartRateConfidence float64
	HeartRateValid      bool
	IsWorn              bool
	PeakCount           int
	HRVMs               *float64

	SpO2              float64
	SpO2Confidence    float64
	SpO2Valid         bool
	SpO2ClinicalValid bool
	RRatio            float64

	PerfusionIndex float64
	Activity       ActivityState
	MotionLevel    float64
	SignalStrength SignalStrength
	Method         ProcessingMethod
}

// EmptyBiometricResult is the all-unavailable result returned during warm-up
func EmptyBiometricResult(ts time.Time, method ProcessingMethod) BiometricResult {
	return BiometricResult{
		Timestamp:      ts,
		Activity:       ActivityRelaxed,
		SignalStrength: SignalNone,
		Method:         method,
	}
}

// HasData reports whether any measurement is present
func (r BiometricResult) HasData() bool {
	return r.HeartRate > 0 || r.SpO2 > 0
}
