// Package synth generates synthetic sensor streams that resemble an Oralable
// recording: a drifting PPG baseline with cardiac and respiratory components,
// periodic jaw-clench events, and a near-stationary accelerometer.
package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/chrissnell/biometrics/internal/types"
)

// MaxPPG is the full-scale value of the 18-bit optical front end
const MaxPPG = 262143

// Params shape the generated signal. Amplitudes are in PPG counts.
type Params struct {
	SampleRate float64

	HeartRateBPM    float64
	HeartRateJitter float64 // bpm, uniform +-

	Baseline           float64
	DriftAmplitude     float64
	DriftPeriodSeconds float64
	CardiacAmplitude   float64
	BreathsPerMinute   float64
	BreathingAmplitude float64
	NoiseStdDev        float64

	// Clench events start every ClenchInterval; zero disables them
	ClenchInterval    time.Duration
	ClenchMinDuration time.Duration
	ClenchMaxDuration time.Duration
	ClenchMinPeak     float64
	ClenchMaxPeak     float64

	// Red and green track IR at these DC ratios
	RedRatio   float64
	GreenRatio float64
	// RedPulsatility scales red's relative AC against IR's; 0.5 gives an R-ratio near 0.5
	RedPulsatility float64

	AccelNoiseG   float64
	ClenchMotionG float64
	LSBPerG       float64
}

// DefaultParams returns a 20 Hz, ~70 bpm stream with a clench every 15 s
func DefaultParams() Params {
	return Params{
		SampleRate:         20,
		HeartRateBPM:       70,
		HeartRateJitter:    2,
		Baseline:           50000,
		DriftAmplitude:     2000,
		DriftPeriodSeconds: 30 * 2 * math.Pi,
		CardiacAmplitude:   1500,
		BreathsPerMinute:   15,
		BreathingAmplitude: 800,
		NoiseStdDev:        300,
		ClenchInterval:     15 * time.Second,
		ClenchMinDuration:  2 * time.Second,
		ClenchMaxDuration:  4 * time.Second,
		ClenchMinPeak:      10000,
		ClenchMaxPeak:      20000,
		RedRatio:           0.7,
		GreenRatio:         0.5,
		RedPulsatility:     0.5,
		AccelNoiseG:        0.01,
		ClenchMotionG:      0.05,
		LSBPerG:            16384,
	}
}

type clenchEvent struct {
	start    float64
	duration float64
	peak     float64
}

// Generator produces samples one at a time. It is not safe for concurrent use.
type Generator struct {
	params Params
	rng    *rand.Rand
	start  time.Time
	n      int
	phase  float64
	event  *clenchEvent
}

// NewGenerator creates a generator whose first sample is stamped start.
// The same seed always yields the same stream.
func NewGenerator(params Params, start time.Time, seed int64) *Generator {
	if !(params.SampleRate > 0) {
		params.SampleRate = DefaultParams().SampleRate
	}
	if !(params.LSBPerG > 0) {
		params.LSBPerG = DefaultParams().LSBPerG
	}
	return &Generator{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
		start:  start,
	}
}

// Elapsed returns the stream time of the next sample
func (g *Generator) Elapsed() time.Duration {
	return time.Duration(float64(g.n) / g.params.SampleRate * float64(time.Second))
}

// Next returns the next sample
func (g *Generator) Next() types.RawSample {
	p := g.params
	t := float64(g.n) / p.SampleRate
	ts := g.start.Add(g.Elapsed())
	g.n++

	bpm := p.HeartRateBPM + p.HeartRateJitter*(2*g.rng.Float64()-1)
	g.phase = math.Mod(g.phase+2*math.Pi*bpm/60/p.SampleRate, 2*math.Pi)

	baseline := p.Baseline
	if p.DriftPeriodSeconds > 0 {
		baseline += p.DriftAmplitude * math.Sin(2*math.Pi*t/p.DriftPeriodSeconds)
	}
	pulsatile := p.CardiacAmplitude*math.Sin(g.phase) +
		p.BreathingAmplitude*math.Sin(2*math.Pi*p.BreathsPerMinute/60*t)
	squeeze := g.clenchLevel(t)

	ir := clampPPG(baseline + pulsatile + squeeze + g.rng.NormFloat64()*p.NoiseStdDev)
	red := clampPPG(p.RedRatio*(baseline+squeeze+p.RedPulsatility*pulsatile) + g.rng.NormFloat64()*p.NoiseStdDev*2/3)
	green := clampPPG(p.GreenRatio*(baseline+pulsatile+squeeze) + g.rng.NormFloat64()*p.NoiseStdDev/2)

	ax := g.rng.NormFloat64() * p.AccelNoiseG
	ay := g.rng.NormFloat64() * p.AccelNoiseG
	az := 1 + g.rng.NormFloat64()*p.AccelNoiseG
	if squeeze > 5000 {
		ax += g.rng.NormFloat64() * p.ClenchMotionG
		ay += g.rng.NormFloat64() * p.ClenchMotionG
	}

	return types.RawSample{
		Time:   ts,
		IR:     ir,
		Red:    red,
		Green:  green,
		AccelX: g.accel(ax),
		AccelY: g.accel(ay),
		AccelZ: g.accel(az),
	}
}

// Generate returns the next n samples
func (g *Generator) Generate(n int) []types.RawSample {
	out := make([]types.RawSample, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Clenching reports whether a clench event covers the stream time of the next sample
func (g *Generator) Clenching() bool {
	t := float64(g.n) / g.params.SampleRate
	return g.event != nil && t >= g.event.start && t < g.event.start+g.event.duration
}

// clenchLevel returns the clench contribution at t with a 20% linear ramp on each side
func (g *Generator) clenchLevel(t float64) float64 {
	p := g.params
	interval := p.ClenchInterval.Seconds()
	if !(interval > 0) {
		return 0
	}

	if g.event == nil || t >= g.event.start+g.event.duration {
		next := math.Floor(t/interval) * interval
		if next < interval {
			next = interval
		}
		if g.event == nil || next > g.event.start {
			g.event = &clenchEvent{
				start:    next,
				duration: uniform(g.rng, p.ClenchMinDuration.Seconds(), p.ClenchMaxDuration.Seconds()),
				peak:     uniform(g.rng, p.ClenchMinPeak, p.ClenchMaxPeak),
			}
		}
	}

	e := g.event
	if t < e.start || t >= e.start+e.duration || e.duration <= 0 {
		return 0
	}
	progress := (t - e.start) / e.duration
	switch {
	case progress < 0.2:
		return e.peak * progress / 0.2
	case progress > 0.8:
		return e.peak * (1 - progress) / 0.2
	default:
		return e.peak
	}
}

func (g *Generator) accel(v float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v*g.params.LSBPerG)))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func clampPPG(v float64) int32 {
	return int32(math.Max(0, math.Min(MaxPPG, v)))
}
