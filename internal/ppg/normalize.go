// Package ppg implements adaptive-baseline normalization of photoplethysmography
// channels together with the perfusion-index, R-ratio and SpO2 estimates that
// are derived from the normalized (AC) and raw (DC) signal.
package ppg

import (
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/biometrics/internal/dsp"
	"github.com/chrissnell/biometrics/internal/types"
)

// Method selects how NormalizePPGData treats a batch
type Method int

const (
	// MethodRaw passes samples through unchanged
	MethodRaw Method = iota
	// MethodDynamicRange min-max scales each channel of the batch to [0,1]
	MethodDynamicRange
	// MethodAdaptiveBaseline removes a per-channel EMA that restarts every call
	MethodAdaptiveBaseline
	// MethodPersistent removes a per-channel EMA carried across calls until Reset
	MethodPersistent
)

func (m Method) String() string {
	switch m {
	case MethodRaw:
		return "raw"
	case MethodDynamicRange:
		return "dynamic_range"
	case MethodAdaptiveBaseline:
		return "adaptive_baseline"
	case MethodPersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// Params are the tuning constants of the normalization service. The values in
// DefaultParams are device calibration data, not physical constants.
type Params struct {
	// Alpha is the EMA smoothing factor for the baseline (0-1)
	Alpha float64
	// SaturationThreshold is the highest raw count still considered unsaturated
	SaturationThreshold float64
	// LowSignalThreshold is the lowest raw count still considered in contact
	LowSignalThreshold float64
}

// DefaultParams returns the parameters tuned for the 18-bit optical front end
func DefaultParams() Params {
	return Params{
		Alpha:               0.01,
		SaturationThreshold: 260000,
		LowSignalThreshold:  1000,
	}
}

// Baseline is a single-channel exponential moving average
type Baseline struct {
	alpha       float64
	value       float64
	initialized bool
}

// NewBaseline returns an uninitialized baseline with smoothing factor alpha
func NewBaseline(alpha float64) Baseline {
	return Baseline{alpha: alpha}
}

// Update folds v into the baseline and returns the AC component v-baseline.
// The first sample seeds the baseline and yields zero.
func (b *Baseline) Update(v float64) float64 {
	if !b.initialized {
		b.value = v
		b.initialized = true
		return 0
	}
	b.value += b.alpha * (v - b.value)
	return v - b.value
}

// Value returns the current baseline level
func (b *Baseline) Value() float64 {
	return b.value
}

// Initialized reports whether a sample has been seen since the last reset
func (b *Baseline) Initialized() bool {
	return b.initialized
}

// Reset returns the baseline to its uninitialized state
func (b *Baseline) Reset() {
	b.value = 0
	b.initialized = false
}

// Service owns one persistent baseline per PPG channel
type Service struct {
	mu        sync.Mutex
	params    Params
	baselines map[types.PPGChannel]*Baseline
	logger    *zap.SugaredLogger
}

// NewService creates a normalization service. A nil logger disables logging.
func NewService(params Params, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Service{
		params:    params,
		baselines: make(map[types.PPGChannel]*Baseline, len(types.Channels)),
		logger:    logger,
	}
	for _, ch := range types.Channels {
		b := NewBaseline(params.Alpha)
		s.baselines[ch] = &b
	}
	return s
}

// Params returns the service configuration
func (s *Service) Params() Params {
	return s.params
}

// Normalize feeds v through the IR baseline and returns its AC component
func (s *Service) Normalize(v float64) float64 {
	return s.NormalizeChannel(types.ChannelIR, v)
}

// NormalizeChannel feeds v through the persistent baseline of channel ch.
// Non-finite input returns 0 and leaves the baseline untouched.
func (s *Service) NormalizeChannel(ch types.PPGChannel, v float64) float64 {
	if !dsp.IsFinite(v) {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baselines[ch].Update(v)
}

// BaselineValue returns the current baseline of a channel and whether it is initialized
func (s *Service) BaselineValue(ch types.PPGChannel) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.baselines[ch]
	return b.Value(), b.Initialized()
}

// NormalizePPGData normalizes a batch of samples with the chosen method.
// Samples with any non-finite channel are dropped.
func (s *Service) NormalizePPGData(samples []types.PPGValues, method Method) []types.PPGValues {
	clean := make([]types.PPGValues, 0, len(samples))
	for _, p := range samples {
		if dsp.IsFinite(p.IR) && dsp.IsFinite(p.Red) && dsp.IsFinite(p.Green) {
			clean = append(clean, p)
		}
	}
	if dropped := len(samples) - len(clean); dropped > 0 {
		s.logger.Debugf("dropped %d non-finite PPG samples before %v normalization", dropped, method)
	}

	switch method {
	case MethodDynamicRange:
		return normalizeDynamicRange(clean)
	case MethodAdaptiveBaseline:
		return s.normalizeAdaptive(clean)
	case MethodPersistent:
		return s.normalizePersistent(clean)
	default:
		return clean
	}
}

func normalizeDynamicRange(samples []types.PPGValues) []types.PPGValues {
	out := make([]types.PPGValues, len(samples))
	for _, ch := range types.Channels {
		values := make([]float64, len(samples))
		for i, p := range samples {
			values[i] = p.Get(ch)
		}
		span := dsp.PeakToPeak(values)
		lo := 0.0
		if len(values) > 0 {
			lo = floats.Min(values)
		}
		for i := range out {
			scaled := 0.0
			if span > 0 {
				scaled = (values[i] - lo) / span
			}
			out[i] = out[i].With(ch, scaled)
		}
	}
	return out
}

func (s *Service) normalizeAdaptive(samples []types.PPGValues) []types.PPGValues {
	baselines := make(map[types.PPGChannel]*Baseline, len(types.Channels))
	for _, ch := range types.Channels {
		b := NewBaseline(s.params.Alpha)
		baselines[ch] = &b
	}
	return applyBaselines(samples, baselines)
}

func (s *Service) normalizePersistent(samples []types.PPGValues) []types.PPGValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyBaselines(samples, s.baselines)
}

func applyBaselines(samples []types.PPGValues, baselines map[types.PPGChannel]*Baseline) []types.PPGValues {
	out := make([]types.PPGValues, len(samples))
	for i, p := range samples {
		for _, ch := range types.Channels {
			out[i] = out[i].With(ch, baselines[ch].Update(p.Get(ch)))
		}
	}
	return out
}

// Reset clears every persistent baseline
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.baselines {
		b.Reset()
	}
	s.logger.Debug("PPG baselines reset")
}

// IsSignalValid reports whether a raw reading lies strictly between the
// low-signal and saturation thresholds
func (s *Service) IsSignalValid(v float64) bool {
	return IsSignalValid(v, s.params)
}
