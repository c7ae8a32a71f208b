// Package motion damps motion artifacts in a PPG signal using the variance of
// an accelerometer noise reference.
package motion

import (
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/biometrics/internal/buffer"
	"github.com/chrissnell/biometrics/internal/dsp"
)

// Params configure the compensator
type Params struct {
	// HistorySize is the number of noise-reference samples kept
	HistorySize int
	// VarianceThreshold (g^2) above which attenuation becomes proportional
	VarianceThreshold float64
}

// DefaultParams returns the tuned compensator settings
func DefaultParams() Params {
	return Params{
		HistorySize:       32,
		VarianceThreshold: 0.01,
	}
}

// Compensator attenuates a signal in proportion to recent reference variance
type Compensator struct {
	mu      sync.Mutex
	params  Params
	history *buffer.Ring[float64]
	gain    float64
	logger  *zap.SugaredLogger
}

// NewCompensator creates a compensator. A nil logger disables logging.
func NewCompensator(params Params, logger *zap.SugaredLogger) *Compensator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if params.HistorySize < 2 {
		params.HistorySize = 2
	}
	return &Compensator{
		params:  params,
		history: buffer.NewRing[float64](params.HistorySize),
		gain:    1,
		logger:  logger,
	}
}

// Gain maps a reference variance to the attenuation applied to the signal.
// Below threshold the gain is 1/(1+v), which is close to 1 for a still wearer;
// above it the gain falls as threshold/v. The two branches meet at the threshold.
func Gain(variance, threshold float64) float64 {
	if !dsp.IsFinite(variance) || variance <= 0 {
		return 1
	}
	if variance <= threshold {
		return 1 / (1 + variance)
	}
	return (threshold / variance) / (1 + threshold)
}

// Filter records noiseReference and returns signal scaled by the current gain.
// Non-finite references are not recorded; a non-finite signal yields 0.
func (c *Compensator) Filter(signal, noiseReference float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dsp.IsFinite(noiseReference) {
		c.history.Append(noiseReference)
	}
	c.gain = Gain(dsp.PopVariance(c.history.All()), c.params.VarianceThreshold)

	if !dsp.IsFinite(signal) {
		return 0
	}
	return signal * c.gain
}

// Variance returns the variance of the current reference history
func (c *Compensator) Variance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dsp.PopVariance(c.history.All())
}

// Level returns 1-gain: 0 for a still wearer, approaching 1 under heavy motion
func (c *Compensator) Level() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 1 - c.gain
}

// Reset clears the reference history
func (c *Compensator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Clear()
	c.gain = 1
	c.logger.Debug("motion compensator reset")
}
