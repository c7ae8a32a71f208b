// Package processor combines the PPG, motion, activity, heart-rate and SpO2
// services behind a per-sample and a batch entry point.
package processor

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/biometrics/internal/activity"
	"github.com/chrissnell/biometrics/internal/buffer"
	"github.com/chrissnell/biometrics/internal/heartrate"
	"github.com/chrissnell/biometrics/internal/motion"
	"github.com/chrissnell/biometrics/internal/ppg"
	"github.com/chrissnell/biometrics/internal/spo2"
	"github.com/chrissnell/biometrics/internal/types"
	"github.com/chrissnell/biometrics/pkg/config"
)

// Processor turns a stream of raw samples into BiometricResult snapshots
type Processor struct {
	mu sync.Mutex

	profile   config.Profile
	hrCfg     heartrate.Config
	spo2Cfg   spo2.Config
	curve     spo2.CalibrationCurve
	hrChannel types.PPGChannel
	lsbPerG   float64
	maxGap    time.Duration
	now       func() time.Time
	logger    *zap.SugaredLogger

	samples    *buffer.Series[types.RawSample]
	accel      *buffer.AccelBuffer
	normalizer *ppg.Service
	motion     *motion.Compensator
	activity   *activity.Classifier
	heartRate  *heartrate.Service
	spo2       *spo2.Service
	warm       bool
}

// New builds a processor and all of its services from one profile
func New(profile config.Profile, opts ...Option) *Processor {
	p := &Processor{
		profile:   profile,
		hrChannel: types.ChannelIR,
		lsbPerG:   buffer.DefaultLSBPerG,
		now:       time.Now,
		logger:    zap.NewNop().Sugar(),
	}
	if c, err := spo2.ParseCurve(profile.SpO2Curve); err == nil {
		p.curve = c
	}
	for _, opt := range opts {
		opt(p)
	}

	p.hrCfg = heartRateConfig(profile)
	p.spo2Cfg = spo2Config(profile, p.curve)

	p.samples = buffer.NewSeriesWithClock[types.RawSample](p.RequiredBufferSize(), p.now)
	p.accel = buffer.NewAccelBuffer(motion.DefaultParams().HistorySize, p.lsbPerG)
	p.normalizer = ppg.NewService(ppg.DefaultParams(), p.logger.Named("ppg"))
	p.motion = motion.NewCompensator(motion.DefaultParams(), p.logger.Named("motion"))
	p.activity = activity.NewClassifier(activity.DefaultParams(), p.logger.Named("activity"))
	p.heartRate = heartrate.NewService(p.hrCfg, p.logger.Named("heartrate"))
	p.spo2 = spo2.NewService(p.spo2Cfg, p.logger.Named("spo2"))

	p.logger.Debugw("processor ready",
		"profile", profile.Name,
		"sample_rate", profile.SampleRate,
		"hr_window", p.hrCfg.BufferSize(),
		"spo2_window", p.spo2Cfg.BufferSize(),
		"curve", p.curve.String(),
	)
	return p
}

func heartRateConfig(profile config.Profile) heartrate.Config {
	cfg := heartrate.DefaultConfig()
	cfg.SampleRate = profile.SampleRate
	cfg.WindowSeconds = profile.HRWindowSeconds
	cfg.MinBPM = profile.MinBPM
	cfg.MaxBPM = profile.MaxBPM
	return cfg
}

func spo2Config(profile config.Profile, curve spo2.CalibrationCurve) spo2.Config {
	cfg := spo2.DefaultConfig()
	cfg.SampleRate = profile.SampleRate
	cfg.WindowSeconds = profile.SpO2WindowSeconds
	cfg.Curve = curve
	return cfg
}

// Profile returns the profile the processor was built from
func (p *Processor) Profile() config.Profile {
	return p.profile
}

// Process stamps one sample with the processor clock and processes it
func (p *Processor) Process(ir, red, green int32, accelX, accelY, accelZ int16) types.BiometricResult {
	return p.ProcessSample(types.RawSample{
		Time:   p.now(),
		IR:     ir,
		Red:    red,
		Green:  green,
		AccelX: accelX,
		AccelY: accelY,
		AccelZ: accelZ,
	})
}

// ProcessSample feeds one sample through every service and returns a realtime
// result. Until both analysis windows are full the result is empty.
func (p *Processor) ProcessSample(s types.RawSample) types.BiometricResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxGap > 0 {
		if last, ok := p.samples.Latest(); ok && s.Time.Sub(last.Time) > p.maxGap {
			p.logger.Infof("%v gap in sample stream, restarting analysis", s.Time.Sub(last.Time))
			p.reset()
		}
	}

	p.samples.Append(s)
	accel := s.Accel()
	p.accel.Append(accel)
	magnitude := p.accel.Magnitude(accel)

	state := p.activity.Classify(float64(s.IR), magnitude)

	raw := s.PPG().Get(p.hrChannel)
	ac := p.normalizer.NormalizeChannel(p.hrChannel, raw)
	filtered := p.motion.Filter(ac, magnitude)

	hr := p.heartRate.AddSample(filtered, p.normalizer.IsSignalValid(raw))
	ox := p.spo2.AddSample(float64(s.Red), float64(s.IR))

	if hr.Status == types.StatusInsufficientData || ox.Status == types.StatusInsufficientData {
		return types.EmptyBiometricResult(s.Time, types.MethodRealtime)
	}
	if !p.warm {
		p.warm = true
		p.logger.Debugf("analysis windows filled after %d samples", p.samples.Len())
	}
	return assemble(s.Time, types.MethodRealtime, hr, ox, state, p.motion.Level())
}

// ProcessBatch reduces complete recorded arrays to one batch result. It uses
// fresh services and leaves streaming state untouched. Arrays of unequal
// length are truncated to the shortest.
func (p *Processor) ProcessBatch(ir, red, green []int32, accelX, accelY, accelZ []int16) types.BiometricResult {
	n := minLen(len(ir), len(red), len(green), len(accelX), len(accelY), len(accelZ))
	samples := make([]types.RawSample, n)
	for i := 0; i < n; i++ {
		samples[i] = types.RawSample{
			IR:     ir[i],
			Red:    red[i],
			Green:  green[i],
			AccelX: accelX[i],
			AccelY: accelY[i],
			AccelZ: accelZ[i],
		}
	}
	return p.batch(samples, p.now())
}

// ProcessRecording is ProcessBatch over recorded samples. The result carries
// the timestamp of the last sample.
func (p *Processor) ProcessRecording(samples []types.RawSample) types.BiometricResult {
	ts := p.now()
	if len(samples) > 0 {
		ts = samples[len(samples)-1].Time
	}
	return p.batch(samples, ts)
}

// spectralTolerance is how far, as a fraction, the batch peak-interval rate may
// drift from the spectral rate before its confidence is halved
const spectralTolerance = 0.15

func (p *Processor) batch(samples []types.RawSample, ts time.Time) types.BiometricResult {
	if len(samples) < p.RequiredBufferSize() {
		p.logger.Debugf("batch of %d samples is shorter than the %d-sample window", len(samples), p.RequiredBufferSize())
		return types.EmptyBiometricResult(ts, types.MethodBatch)
	}

	normalizer := ppg.NewService(ppg.DefaultParams(), nil)
	compensator := motion.NewCompensator(motion.DefaultParams(), nil)
	classifier := activity.NewClassifier(activity.DefaultParams(), nil)

	hrSeries := make([]float64, len(samples))
	red := make([]float64, len(samples))
	ir := make([]float64, len(samples))
	state := types.ActivityRelaxed
	valid := 0
	for i, s := range samples {
		magnitude := buffer.Magnitude(s.Accel(), p.lsbPerG)
		state = classifier.Classify(float64(s.IR), magnitude)
		raw := s.PPG().Get(p.hrChannel)
		if normalizer.IsSignalValid(raw) {
			valid++
		}
		ac := normalizer.NormalizeChannel(p.hrChannel, raw)
		hrSeries[i] = compensator.Filter(ac, magnitude)
		red[i] = float64(s.Red)
		ir[i] = float64(s.IR)
	}

	hr := heartrate.Analyze(hrSeries, p.hrCfg)
	if bpm, ok := heartrate.SpectralRate(hrSeries, p.hrCfg); ok {
		hr = heartrate.CrossCheck(hr, bpm, spectralTolerance)
	}
	hr = heartrate.Qualify(hr, float64(valid)/float64(len(samples)), p.hrCfg)
	ox := spo2.Analyze(red, ir, p.spo2Cfg)
	return assemble(ts, types.MethodBatch, hr, ox, state, compensator.Level())
}

func assemble(ts time.Time, method types.ProcessingMethod, hr types.HRResult, ox types.SpO2Result,
	state types.ActivityState, motionLevel float64) types.BiometricResult {
	pi := ppg.PerfusionIndex(ox.IRDC, ox.IRAC)
	return types.BiometricResult{
		Timestamp: ts,

		HeartRate:           hr.BPM,
		HeartRateConfidence: hr.Confidence,
		HeartRateValid:      hr.IsValid(),
		IsWorn:              hr.IsWorn,
		PeakCount:           hr.PeakCount,
		HRVMs:               hr.HRVMs,

		SpO2:              ox.Percentage,
		SpO2Confidence:    ox.Confidence,
		SpO2Valid:         ox.IsValid,
		SpO2ClinicalValid: ox.IsClinicallyValid(),
		RRatio:            ox.RRatio,

		PerfusionIndex: pi,
		Activity:       state,
		MotionLevel:    motionLevel,
		SignalStrength: types.SignalStrengthFromPI(pi),
		Method:         method,
	}
}

// Reset returns every service to its freshly constructed state
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func (p *Processor) reset() {
	p.samples.Clear()
	p.accel.Clear()
	p.normalizer.Reset()
	p.motion.Reset()
	p.activity.Reset()
	p.heartRate.Reset()
	p.spo2.Reset()
	p.warm = false
	p.logger.Debug("processor reset")
}

// CurrentBufferSize returns the number of buffered raw samples
func (p *Processor) CurrentBufferSize() int {
	return p.samples.Len()
}

// RequiredBufferSize returns the samples needed before results are produced
func (p *Processor) RequiredBufferSize() int {
	hr := p.hrCfg.BufferSize()
	ox := p.spo2Cfg.BufferSize()
	if hr > ox {
		return hr
	}
	return ox
}

// BufferFillLevel returns the fill of the slower of the two analysis windows
func (p *Processor) BufferFillLevel() float64 {
	return math.Min(p.heartRate.BufferFillLevel(), p.spo2.BufferFillLevel())
}

// IsAtRest reports whether the recent accelerometer history averages 1g
// within the classifier's motion threshold
func (p *Processor) IsAtRest() bool {
	return p.accel.IsAtRest(activity.DefaultParams().MotionThreshold)
}

// RecentSamples returns the buffered raw samples no older than age
func (p *Processor) RecentSamples(age time.Duration) []types.RawSample {
	now := p.now()
	return p.samples.Between(now.Add(-age), now)
}

func minLen(lengths ...int) int {
	n := math.MaxInt
	for _, l := range lengths {
		if l < n {
			n = l
		}
	}
	if n == math.MaxInt {
		return 0
	}
	return n
}
