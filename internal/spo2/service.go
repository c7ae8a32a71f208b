// Package spo2 estimates peripheral oxygen saturation from windows of paired
// red and infrared PPG samples.
package spo2

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/biometrics/internal/buffer"
	"github.com/chrissnell/biometrics/internal/dsp"
	"github.com/chrissnell/biometrics/internal/ppg"
	"github.com/chrissnell/biometrics/internal/types"
)

// Config defines the SpO2 window and quality parameters
type Config struct {
	SampleRate    float64
	WindowSeconds float64
	Curve         CalibrationCurve

	// MinConfidence is the floor confidence must exceed for IsValid
	MinConfidence float64
	// StrongPerfusionIndex is the IR perfusion index (percent) that earns full perfusion credit
	StrongPerfusionIndex float64
	// MinValidFraction is the share of the window that must pass signal checks
	MinValidFraction float64
	// Signal carries the saturation and low-signal thresholds
	Signal ppg.Params
}

// DefaultConfig returns the 50 Hz, 5 s configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:           50,
		WindowSeconds:        5,
		Curve:                CurveLinear,
		MinConfidence:        0.5,
		StrongPerfusionIndex: 1.0,
		MinValidFraction:     0.5,
		Signal:               ppg.DefaultParams(),
	}
}

// BufferSize returns round(SampleRate * WindowSeconds), at least 2
func (c Config) BufferSize() int {
	n := int(math.Round(c.SampleRate * c.WindowSeconds))
	if n < 2 {
		return 2
	}
	return n
}

type pair struct {
	red float64
	ir  float64
}

// Service buffers red/IR pairs and reduces each full window to an SpO2Result
type Service struct {
	mu      sync.Mutex
	cfg     Config
	samples *buffer.Ring[pair]
	warm    bool
	logger  *zap.SugaredLogger
}

// NewService creates an SpO2 service. A nil logger disables logging.
func NewService(cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		cfg:     cfg,
		samples: buffer.NewRing[pair](cfg.BufferSize()),
		logger:  logger,
	}
}

// Config returns the service configuration
func (s *Service) Config() Config {
	return s.cfg
}

// AddSample appends one red/IR pair and returns the result for the current window.
// Pairs with a non-finite value are discarded.
func (s *Service) AddSample(red, ir float64) types.SpO2Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dsp.IsFinite(red) && dsp.IsFinite(ir) {
		s.samples.Append(pair{red: red, ir: ir})
	}
	return s.evaluate()
}

// Process appends paired samples (truncated to the shorter slice) and returns
// the result for the most recent window
func (s *Service) Process(red, ir []float64) types.SpO2Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(red)
	if len(ir) < n {
		n = len(ir)
	}
	pairs := make([]pair, 0, n)
	for i := 0; i < n; i++ {
		if dsp.IsFinite(red[i]) && dsp.IsFinite(ir[i]) {
			pairs = append(pairs, pair{red: red[i], ir: ir[i]})
		}
	}
	s.samples.AppendMany(pairs...)
	return s.evaluate()
}

func (s *Service) evaluate() types.SpO2Result {
	if !s.samples.IsFull() {
		return types.EmptySpO2Result(types.StatusInsufficientData)
	}
	if !s.warm {
		s.warm = true
		s.logger.Debugf("SpO2 window filled (%d samples)", s.samples.Cap())
	}

	window := s.samples.All()
	red := make([]float64, len(window))
	ir := make([]float64, len(window))
	for i, p := range window {
		red[i] = p.red
		ir[i] = p.ir
	}
	res := Analyze(red, ir, s.cfg)
	if res.Status == types.StatusDegenerateWindow {
		s.logger.Debug("SpO2 window has zero variance")
	}
	return res
}

// Reset clears the window
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples.Clear()
	s.warm = false
}

// BufferFillLevel returns filled/capacity, capped at 1.0
func (s *Service) BufferFillLevel() float64 {
	return s.samples.FillLevel()
}

// BufferSize returns the number of buffered pairs
func (s *Service) BufferSize() int {
	return s.samples.Len()
}

// Capacity returns the window length in samples
func (s *Service) Capacity() int {
	return s.samples.Cap()
}

// Analyze reduces one red/IR window to an SpO2 result. Pairs where either
// channel fails the saturation/low-signal check are excluded from AC/DC.
func Analyze(red, ir []float64, cfg Config) types.SpO2Result {
	n := len(red)
	if len(ir) < n {
		n = len(ir)
	}
	if n < 2 {
		return types.EmptySpO2Result(types.StatusInsufficientData)
	}

	validRed := make([]float64, 0, n)
	validIR := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if ppg.IsSignalValid(red[i], cfg.Signal) && ppg.IsSignalValid(ir[i], cfg.Signal) {
			validRed = append(validRed, red[i])
			validIR = append(validIR, ir[i])
		}
	}

	validFraction := float64(len(validIR)) / float64(n)
	if len(validIR) < 2 || validFraction < cfg.MinValidFraction {
		return types.EmptySpO2Result(types.StatusInvalidSignal)
	}

	res := types.SpO2Result{
		RedDC: dsp.Mean(validRed),
		IRDC:  dsp.Mean(validIR),
	}
	if dsp.IsConstant(validIR, 0) || dsp.IsConstant(validRed, 0) {
		res.Status = types.StatusDegenerateWindow
		return res
	}

	res.RedAC = dsp.Amplitude(validRed)
	res.IRAC = dsp.Amplitude(validIR)
	res.RRatio = ppg.RRatio(res.RedAC, res.RedDC, res.IRAC, res.IRDC)
	if res.RRatio == 0 {
		res.Status = types.StatusInvalidSignal
		return res
	}

	res.Percentage = cfg.Curve.Apply(res.RRatio)
	res.Confidence = Confidence(ppg.PerfusionIndex(res.IRDC, res.IRAC), validFraction, cfg)
	res.IsValid = res.RRatio > 0 && res.Confidence > cfg.MinConfidence
	if res.IsValid {
		res.Status = types.StatusValid
	} else {
		res.Status = types.StatusInvalidSignal
	}
	return res
}

// Confidence weights perfusion strength (70%) and the share of usable samples (30%)
func Confidence(irPerfusionIndex, validFraction float64, cfg Config) float64 {
	strong := cfg.StrongPerfusionIndex
	if !(strong > 0) {
		strong = 1
	}
	perfusion := dsp.Clamp(irPerfusionIndex/strong, 0, 1)
	return dsp.Clamp(0.7*perfusion+0.3*dsp.Clamp(validFraction, 0, 1), 0, 1)
}
