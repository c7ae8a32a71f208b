package spo2

import (
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/chrissnell/biometrics/internal/types"
)

// pulsatile returns red and IR windows whose AC/DC ratios differ by r
func pulsatile(n int, rate, freq, irDC, irPI, r float64) (red, ir []float64) {
	redDC := irDC * 0.7
	red = make([]float64, n)
	ir = make([]float64, n)
	for i := 0; i < n; i++ {
		phase := math.Sin(2 * math.Pi * freq * float64(i) / rate)
		ir[i] = irDC + irDC*irPI/100*phase
		red[i] = redDC + redDC*r*irPI/100*phase
	}
	return red, ir
}

func TestFlatWindowIsInvalid(t *testing.T) {
	s := NewService(DefaultConfig(), zaptest.NewLogger(t).Sugar())

	var res types.SpO2Result
	for i := 0; i < s.Capacity(); i++ {
		res = s.AddSample(50000, 50000)
	}
	if res.IsValid {
		t.Error("expected flat window to be invalid")
	}
	if res.Status != types.StatusDegenerateWindow {
		t.Errorf("expected degenerate window, got %v", res.Status)
	}
}

func TestRatioHalfGives97Point5(t *testing.T) {
	cfg := DefaultConfig()
	s := NewService(cfg, nil)

	red, ir := pulsatile(cfg.BufferSize(), cfg.SampleRate, 1.2, 100000, 2, 0.5)
	res := s.Process(red, ir)

	if math.Abs(res.RRatio-0.5) > 1e-6 {
		t.Errorf("expected r=0.5, got %.6f", res.RRatio)
	}
	if math.Abs(res.Percentage-97.5) > 1e-4 {
		t.Errorf("expected 97.5%%, got %.4f", res.Percentage)
	}
	if !res.IsValid || !res.IsClinicallyValid() {
		t.Errorf("expected valid and clinically valid result, got %+v", res)
	}
	if res.Confidence != 1 {
		t.Errorf("expected full confidence for PI=2%%, got %.3f", res.Confidence)
	}
}

func TestWarmUp(t *testing.T) {
	cfg := DefaultConfig()
	s := NewService(cfg, nil)
	red, ir := pulsatile(cfg.BufferSize(), cfg.SampleRate, 1.2, 100000, 2, 0.5)

	for i := 0; i < len(red)-1; i++ {
		res := s.AddSample(red[i], ir[i])
		if res.Status != types.StatusInsufficientData || res.IsValid || res.Percentage != 0 {
			t.Fatalf("sample %d: expected empty warm-up result, got %+v", i, res)
		}
	}
	if s.BufferFillLevel() >= 1 {
		t.Error("expected buffer not yet full")
	}
	res := s.AddSample(red[len(red)-1], ir[len(ir)-1])
	if !res.IsValid {
		t.Errorf("expected valid result once full, got %+v", res)
	}
}

func TestSaturatedSamplesExcluded(t *testing.T) {
	cfg := DefaultConfig()
	red, ir := pulsatile(cfg.BufferSize(), cfg.SampleRate, 1.2, 100000, 2, 0.5)

	clean := Analyze(red, ir, cfg)

	// saturate a fifth of the IR channel
	for i := 0; i < len(ir); i += 5 {
		ir[i] = 262143
	}
	degraded := Analyze(red, ir, cfg)

	if degraded.Confidence >= clean.Confidence {
		t.Errorf("expected saturation to lower confidence: clean %.3f degraded %.3f", clean.Confidence, degraded.Confidence)
	}
	if degraded.IRDC > 150000 {
		t.Errorf("saturated samples leaked into the IR DC estimate: %.0f", degraded.IRDC)
	}

	// mostly saturated windows yield no result
	for i := range ir {
		if i%4 != 0 {
			ir[i] = 262143
		}
	}
	if res := Analyze(red, ir, cfg); res.Status != types.StatusInvalidSignal || res.IsValid {
		t.Errorf("expected invalid signal, got %+v", res)
	}
}

func TestLowPerfusionNotValid(t *testing.T) {
	cfg := DefaultConfig()
	red, ir := pulsatile(cfg.BufferSize(), cfg.SampleRate, 1.2, 100000, 0.05, 0.5)

	res := Analyze(red, ir, cfg)
	if res.IsValid {
		t.Errorf("expected weak perfusion to be invalid, confidence %.3f", res.Confidence)
	}
	if res.RRatio <= 0 {
		t.Error("expected a ratio even when confidence is low")
	}
}

func TestFlatRedIsDegenerate(t *testing.T) {
	cfg := DefaultConfig()
	_, ir := pulsatile(cfg.BufferSize(), cfg.SampleRate, 1.2, 100000, 2, 0.5)
	red := make([]float64, len(ir))
	for i := range red {
		red[i] = 70000
	}
	res := Analyze(red, ir, cfg)
	if res.IsValid || res.RRatio != 0 {
		t.Errorf("expected no ratio without red pulsatility, got %+v", res)
	}
}

func TestProcessMismatchedLengths(t *testing.T) {
	cfg := DefaultConfig()
	s := NewService(cfg, nil)
	red, ir := pulsatile(cfg.BufferSize()+10, cfg.SampleRate, 1.2, 100000, 2, 0.5)

	s.Process(red, ir[:cfg.BufferSize()-1])
	if s.BufferSize() != cfg.BufferSize()-1 {
		t.Errorf("expected %d pairs, got %d", cfg.BufferSize()-1, s.BufferSize())
	}
}

func TestServiceNonFiniteDiscarded(t *testing.T) {
	s := NewService(DefaultConfig(), nil)
	s.AddSample(math.NaN(), 1000)
	s.AddSample(1000, math.Inf(-1))
	if s.BufferSize() != 0 {
		t.Errorf("expected non-finite pairs to be discarded, got %d buffered", s.BufferSize())
	}
}

func TestServiceResetMatchesFresh(t *testing.T) {
	cfg := DefaultConfig()
	s := NewService(cfg, nil)
	red, ir := pulsatile(cfg.BufferSize(), cfg.SampleRate, 1.2, 100000, 2, 0.5)
	s.Process(red, ir)

	s.Reset()
	s.Reset()
	fresh := NewService(cfg, nil)
	if s.BufferSize() != fresh.BufferSize() || s.BufferFillLevel() != fresh.BufferFillLevel() {
		t.Error("reset service differs from a fresh one")
	}
	if got := s.AddSample(red[0], ir[0]); got != fresh.AddSample(red[0], ir[0]) {
		t.Errorf("expected identical first result after reset, got %+v", got)
	}
}

func TestConfidence(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name          string
		pi            float64
		validFraction float64
		expected      float64
	}{
		{name: "strong and clean", pi: 2, validFraction: 1, expected: 1},
		{name: "no perfusion", pi: 0, validFraction: 1, expected: 0.3},
		{name: "half perfusion", pi: 0.5, validFraction: 1, expected: 0.65},
		{name: "half usable", pi: 1, validFraction: 0.5, expected: 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Confidence(tt.pi, tt.validFraction, cfg); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %.3f, got %.3f", tt.expected, got)
			}
		})
	}
}
