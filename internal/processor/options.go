package processor

import (
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/biometrics/internal/spo2"
	"github.com/chrissnell/biometrics/internal/types"
)

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the logger shared by the processor and its services
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the time source used to stamp Process results
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLSBPerG sets the accelerometer sensitivity in counts per g
func WithLSBPerG(lsbPerG float64) Option {
	return func(p *Processor) {
		if lsbPerG > 0 {
			p.lsbPerG = lsbPerG
		}
	}
}

// WithCurve overrides the profile's SpO2 calibration curve
func WithCurve(curve spo2.CalibrationCurve) Option {
	return func(p *Processor) {
		p.curve = curve
	}
}

// WithHeartRateChannel selects the PPG channel used for heart rate (IR by default)
func WithHeartRateChannel(ch types.PPGChannel) Option {
	return func(p *Processor) {
		p.hrChannel = ch
	}
}

// WithMaxGap resets streaming state when consecutive samples are further
// apart than gap. Zero disables gap detection.
func WithMaxGap(gap time.Duration) Option {
	return func(p *Processor) {
		if gap >= 0 {
			p.maxGap = gap
		}
	}
}
