// Package heartrate estimates pulse rate from a window of PPG samples by
// DC removal, smoothing and spacing-constrained peak detection.
package heartrate

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/biometrics/internal/buffer"
	"github.com/chrissnell/biometrics/internal/dsp"
	"github.com/chrissnell/biometrics/internal/types"
)

// Config defines the heart-rate window and detection parameters
type Config struct {
	SampleRate    float64
	WindowSeconds float64
	MinBPM        float64
	MaxBPM        float64

	// MinPeaks is the fewest peaks that produce a rate
	MinPeaks int
	// PeakThreshold is the fraction of the window's dynamic range a peak must exceed
	PeakThreshold float64
	// SmoothingSeconds is the width of the moving-average smoother
	SmoothingSeconds float64
	// MinPulseAmplitude is the peak-to-peak AC (counts) needed to call the sensor worn
	MinPulseAmplitude float64
	// MinValidFraction is the share of the window whose raw readings must pass signal checks
	MinValidFraction float64
}

// DefaultConfig returns the 50 Hz, 3 s configuration used by the Oralable device
func DefaultConfig() Config {
	return Config{
		SampleRate:        50,
		WindowSeconds:     3,
		MinBPM:            40,
		MaxBPM:            180,
		MinPeaks:          2,
		PeakThreshold:     0.5,
		SmoothingSeconds:  0.1,
		MinPulseAmplitude: 50,
		MinValidFraction:  0.5,
	}
}

// BufferSize returns round(SampleRate * WindowSeconds), at least 1
func (c Config) BufferSize() int {
	n := int(math.Round(c.SampleRate * c.WindowSeconds))
	if n < 1 {
		return 1
	}
	return n
}

// MinPeakDistance returns the minimum spacing between peaks in samples,
// which bounds the highest detectable rate at MaxBPM
func (c Config) MinPeakDistance() int {
	if !(c.MaxBPM > 0) {
		return 1
	}
	d := int(math.Floor(c.SampleRate * 60 / c.MaxBPM))
	if d < 1 {
		return 1
	}
	return d
}

func (c Config) smoothingKernel() int {
	k := int(math.Round(c.SampleRate * c.SmoothingSeconds))
	if k < 3 {
		k = 3
	}
	if k%2 == 0 {
		k++
	}
	return k
}

// Service buffers PPG samples and reduces each full window to an HRResult
type Service struct {
	mu      sync.Mutex
	cfg     Config
	samples *buffer.Ring[float64]
	valid   *buffer.Ring[bool]
	warm    bool
	logger  *zap.SugaredLogger
}

// NewService creates a heart-rate service. A nil logger disables logging.
func NewService(cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MinPeaks < 2 {
		cfg.MinPeaks = 2
	}
	return &Service{
		cfg:     cfg,
		samples: buffer.NewRing[float64](cfg.BufferSize()),
		valid:   buffer.NewRing[bool](cfg.BufferSize()),
		logger:  logger,
	}
}

// Config returns the service configuration
func (s *Service) Config() Config {
	return s.cfg
}

// Process appends samples and, once the window is full, returns the rate over
// the most recent window. Non-finite samples are discarded.
func (s *Service) Process(samples []float64) types.HRResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range dsp.Finite(samples) {
		s.samples.Append(v)
		s.valid.Append(true)
	}
	return s.evaluate()
}

// ProcessSingle is the streaming form of Process
func (s *Service) ProcessSingle(sample float64) types.HRResult {
	return s.AddSample(sample, true)
}

// AddSample appends one filtered sample together with whether the raw reading
// it came from passed the saturation and low-signal checks
func (s *Service) AddSample(sample float64, valid bool) types.HRResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dsp.IsFinite(sample) {
		s.samples.Append(sample)
		s.valid.Append(valid)
	}
	return s.evaluate()
}

func (s *Service) evaluate() types.HRResult {
	if !s.samples.IsFull() {
		return types.EmptyHRResult(types.StatusInsufficientData)
	}
	if !s.warm {
		s.warm = true
		s.logger.Debugf("heart-rate window filled (%d samples)", s.samples.Cap())
	}
	flags := s.valid.All()
	n := 0
	for _, ok := range flags {
		if ok {
			n++
		}
	}
	return Qualify(Analyze(s.samples.All(), s.cfg), float64(n)/float64(len(flags)), s.cfg)
}

// Reset clears the window
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples.Clear()
	s.valid.Clear()
	s.warm = false
}

// BufferFillLevel returns filled/capacity, capped at 1.0
func (s *Service) BufferFillLevel() float64 {
	return s.samples.FillLevel()
}

// BufferSize returns the number of buffered samples
func (s *Service) BufferSize() int {
	return s.samples.Len()
}

// Capacity returns the window length in samples
func (s *Service) Capacity() int {
	return s.samples.Cap()
}

// Analyze reduces one window to a heart-rate result. It does not require the
// window to match cfg.BufferSize(), which lets batch callers analyze whole recordings.
func Analyze(window []float64, cfg Config) types.HRResult {
	window = dsp.Finite(window)
	if len(window) < 3 || !(cfg.SampleRate > 0) {
		return types.EmptyHRResult(types.StatusInsufficientData)
	}
	if dsp.IsConstant(window, 0) {
		return types.EmptyHRResult(types.StatusDegenerateWindow)
	}

	ac, _ := dsp.RemoveDC(window)
	smoothed := dsp.MovingAverage(ac, cfg.smoothingKernel())

	isWorn := dsp.PeakToPeak(smoothed) >= cfg.MinPulseAmplitude
	peaks := DetectPeaks(smoothed, cfg.PeakThreshold, cfg.MinPeakDistance())

	minPeaks := cfg.MinPeaks
	if minPeaks < 2 {
		minPeaks = 2
	}
	if len(peaks) < minPeaks {
		res := types.EmptyHRResult(types.StatusInvalidSignal)
		res.IsWorn = isWorn
		res.PeakCount = len(peaks)
		return res
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i]-peaks[i-1]) / cfg.SampleRate
	}

	meanInterval := dsp.Mean(intervals)
	bpm := dsp.Clamp(60/meanInterval, cfg.MinBPM, cfg.MaxBPM)
	hrv := dsp.PopStdDev(intervals) * 1000

	return types.HRResult{
		BPM:        bpm,
		Confidence: Confidence(len(peaks), dsp.CoefficientOfVariation(intervals)),
		IsWorn:     isWorn,
		PeakCount:  len(peaks),
		HRVMs:      &hrv,
		Status:     types.StatusValid,
	}
}

// Qualify folds the share of usable raw readings into a result. Below
// cfg.MinValidFraction the sensor is treated as off-skin or saturated and the
// result becomes an empty InvalidSignal; otherwise confidence is scaled by the share.
func Qualify(res types.HRResult, validFraction float64, cfg Config) types.HRResult {
	if res.Status == types.StatusInsufficientData {
		return res
	}
	if !dsp.IsFinite(validFraction) || validFraction < cfg.MinValidFraction {
		out := types.EmptyHRResult(types.StatusInvalidSignal)
		out.PeakCount = res.PeakCount
		return out
	}
	res.Confidence *= dsp.Clamp(validFraction, 0, 1)
	return res
}

// Confidence combines peak count and interval regularity into [0,1].
// Five or more peaks saturate the count term; a CV of 0.5 or more zeroes the regularity term.
func Confidence(peakCount int, cv float64) float64 {
	if peakCount < 2 {
		return 0
	}
	countFactor := math.Min(1, float64(peakCount-1)/4)
	regularity := 0.0
	if dsp.IsFinite(cv) {
		regularity = math.Max(0, 1-2*cv)
	}
	return dsp.Clamp(0.4*countFactor+0.6*regularity, 0, 1)
}

// DetectPeaks returns the indices of local maxima of data that exceed
// min + thresholdFraction*(max-min), with at least minDistance samples between
// accepted peaks. When two candidates are too close the higher one is kept.
func DetectPeaks(data []float64, thresholdFraction float64, minDistance int) []int {
	n := len(data)
	if n < 3 {
		return nil
	}
	if minDistance < 1 {
		minDistance = 1
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return nil
	}
	threshold := lo + thresholdFraction*(hi-lo)

	var peaks []int
	for i := 1; i < n-1; i++ {
		v := data[i]
		if v <= threshold || v <= data[i-1] || v < data[i+1] {
			continue
		}
		if len(peaks) > 0 {
			last := peaks[len(peaks)-1]
			if i-last < minDistance {
				if v > data[last] {
					peaks[len(peaks)-1] = i
				}
				continue
			}
		}
		peaks = append(peaks, i)
	}
	return peaks
}
