// Package activity classifies wearer state from IR level and accelerometer magnitude
// using fixed thresholds.
package activity

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/biometrics/internal/buffer"
	"github.com/chrissnell/biometrics/internal/dsp"
	"github.com/chrissnell/biometrics/internal/types"
)

// Params hold the classifier thresholds. They are tuned against the Oralable
// masseter sensor and should be treated as calibration data.
type Params struct {
	// MotionThreshold is the deviation from rest magnitude (g) that counts as motion
	MotionThreshold float64
	// ClenchingThreshold is the IR rise (counts) above baseline for clenching
	ClenchingThreshold float64
	// GrindingThreshold is the IR rise (counts) above baseline for grinding
	GrindingThreshold float64
	// ShortTermSamples is the number of recent IR samples whose median is compared to the baseline
	ShortTermSamples int
	// BaselineAlpha is the EMA factor used to track the baselines while relaxed
	BaselineAlpha float64
}

// DefaultParams returns the tuned thresholds
func DefaultParams() Params {
	return Params{
		MotionThreshold:    0.15,
		ClenchingThreshold: 5000,
		GrindingThreshold:  15000,
		ShortTermSamples:   5,
		BaselineAlpha:      0.01,
	}
}

// Classifier is a threshold state machine over IR and accelerometer magnitude
type Classifier struct {
	mu            sync.Mutex
	params        Params
	recent        *buffer.Ring[float64]
	baselineIR    float64
	restMagnitude float64
	established   bool
	state         types.ActivityState
	logger        *zap.SugaredLogger
}

// NewClassifier creates a classifier. A nil logger disables logging.
func NewClassifier(params Params, logger *zap.SugaredLogger) *Classifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if params.ShortTermSamples < 1 {
		params.ShortTermSamples = 1
	}
	return &Classifier{
		params: params,
		recent: buffer.NewRing[float64](params.ShortTermSamples),
		state:  types.ActivityRelaxed,
		logger: logger,
	}
}

// Classify returns the activity for one IR reading and accelerometer magnitude (g).
// The first call after construction or Reset establishes the baselines and
// reports relaxed. Non-finite input repeats the previous state.
func (c *Classifier) Classify(ir, accMagnitude float64) types.ActivityState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !dsp.IsFinite(ir) || !dsp.IsFinite(accMagnitude) {
		return c.state
	}

	if !c.established {
		c.baselineIR = ir
		c.restMagnitude = accMagnitude
		c.established = true
		c.recent.Append(ir)
		c.state = types.ActivityRelaxed
		c.logger.Debugf("activity baseline established: ir=%.0f rest=%.3fg", ir, accMagnitude)
		return c.state
	}

	c.recent.Append(ir)
	alpha := c.params.BaselineAlpha

	if math.Abs(accMagnitude-c.restMagnitude) > c.params.MotionThreshold {
		c.setState(types.ActivityMotion)
		return c.state
	}
	c.restMagnitude += alpha * (accMagnitude - c.restMagnitude)

	variation := math.Abs(dsp.Median(c.recent.All()) - c.baselineIR)
	switch {
	case variation > c.params.GrindingThreshold:
		c.setState(types.ActivityGrinding)
	case variation > c.params.ClenchingThreshold:
		c.setState(types.ActivityClenching)
	default:
		c.baselineIR += alpha * (ir - c.baselineIR)
		c.setState(types.ActivityRelaxed)
	}
	return c.state
}

func (c *Classifier) setState(s types.ActivityState) {
	if s != c.state {
		c.logger.Debugf("activity %v -> %v", c.state, s)
	}
	c.state = s
}

// State returns the most recent classification
func (c *Classifier) State() types.ActivityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset forces the baselines to be re-established on the next call
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent.Clear()
	c.baselineIR = 0
	c.restMagnitude = 0
	c.established = false
	c.state = types.ActivityRelaxed
}
