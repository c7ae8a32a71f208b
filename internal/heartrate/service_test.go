package heartrate

import (
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/chrissnell/biometrics/internal/types"
)

func sine(n int, rate, freq, amplitude, dc float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = dc + amplitude*math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		rate, seconds float64
		expected      int
	}{
		{rate: 50, seconds: 3, expected: 150},
		{rate: 100, seconds: 3, expected: 300},
		{rate: 10, seconds: 2.56, expected: 26},
		{rate: 0, seconds: 3, expected: 1},
	}
	for _, tt := range tests {
		cfg := Config{SampleRate: tt.rate, WindowSeconds: tt.seconds}
		if got := cfg.BufferSize(); got != tt.expected {
			t.Errorf("rate %.0f x %.2fs: expected %d, got %d", tt.rate, tt.seconds, tt.expected, got)
		}
	}
}

func TestProcess72BPMSine(t *testing.T) {
	s := NewService(DefaultConfig(), zaptest.NewLogger(t).Sugar())

	res := s.Process(sine(150, 50, 1.2, 3000, 150000))
	if res.Status != types.StatusValid {
		t.Fatalf("expected valid status, got %v", res.Status)
	}
	if res.BPM < 65 || res.BPM > 80 {
		t.Errorf("expected bpm in [65,80], got %.1f", res.BPM)
	}
	if !res.IsWorn {
		t.Error("expected sensor to be worn")
	}
	if res.HRVMs == nil {
		t.Error("expected HRV when peaks were found")
	}
	if !res.IsValid() {
		t.Errorf("expected valid result, got confidence %.2f", res.Confidence)
	}
}

func TestProcessSineFrequencies(t *testing.T) {
	for _, freq := range []float64{1.0, 1.2, 1.5, 2.0, 2.5} {
		for _, rate := range []float64{50, 100} {
			cfg := DefaultConfig()
			cfg.SampleRate = rate
			s := NewService(cfg, nil)

			res := s.Process(sine(cfg.BufferSize(), rate, freq, 1000, 100000))
			expected := 60 * freq
			if math.Abs(res.BPM-expected) > 0.15*expected {
				t.Errorf("%.1f Hz at %.0f Hz sampling: expected %.1f +-15%%, got %.1f", freq, rate, expected, res.BPM)
			}
		}
	}
}

func TestProcessShortSequences(t *testing.T) {
	s := NewService(DefaultConfig(), nil)
	data := sine(149, 50, 1.2, 3000, 150000)

	for i := range data {
		res := s.ProcessSingle(data[i])
		if res.BPM != 0 || res.Confidence != 0 {
			t.Fatalf("sample %d: expected empty result before window fills, got %+v", i, res)
		}
		if res.Status != types.StatusInsufficientData {
			t.Fatalf("sample %d: expected insufficient data, got %v", i, res.Status)
		}
	}

	res := s.ProcessSingle(data[0])
	if res.Status == types.StatusInsufficientData {
		t.Error("expected a result once the window is full")
	}
}

func TestProcessFlatWindow(t *testing.T) {
	s := NewService(DefaultConfig(), nil)
	flat := make([]float64, 150)
	for i := range flat {
		flat[i] = 50000
	}

	res := s.Process(flat)
	if res.Status != types.StatusDegenerateWindow {
		t.Errorf("expected degenerate window, got %v", res.Status)
	}
	if res.BPM != 0 || res.Confidence != 0 || res.IsWorn {
		t.Errorf("expected empty not-worn result, got %+v", res)
	}
	if res.HRVMs != nil {
		t.Error("expected no HRV without peaks")
	}
}

func TestProcessTinyAmplitudeNotWorn(t *testing.T) {
	s := NewService(DefaultConfig(), nil)
	res := s.Process(sine(150, 50, 1.2, 5, 50000))
	if res.IsWorn {
		t.Error("expected a 10-count pulse not to count as worn")
	}
}

func TestProcessDiscardsNonFinite(t *testing.T) {
	s := NewService(DefaultConfig(), nil)
	data := sine(150, 50, 1.2, 3000, 150000)
	withGaps := append([]float64{math.NaN(), math.Inf(1)}, data...)

	res := s.Process(withGaps)
	if s.BufferSize() != 150 {
		t.Errorf("expected 150 buffered samples, got %d", s.BufferSize())
	}
	if res.BPM < 65 || res.BPM > 80 {
		t.Errorf("expected bpm in [65,80], got %.1f", res.BPM)
	}
}

func TestBufferFillLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 10
	cfg.WindowSeconds = 1
	s := NewService(cfg, nil)

	for i := 1; i <= 25; i++ {
		s.ProcessSingle(float64(i))
		expected := math.Min(float64(i)/10, 1)
		if got := s.BufferFillLevel(); got != expected {
			t.Errorf("after %d samples expected fill %.1f, got %.2f", i, expected, got)
		}
	}
}

func TestServiceResetMatchesFresh(t *testing.T) {
	s := NewService(DefaultConfig(), nil)
	s.Process(sine(200, 50, 1.2, 3000, 150000))
	s.Reset()
	s.Reset()

	fresh := NewService(DefaultConfig(), nil)
	if s.BufferSize() != fresh.BufferSize() || s.BufferFillLevel() != fresh.BufferFillLevel() {
		t.Error("reset service differs from a fresh one")
	}
	if res := s.ProcessSingle(1); res.Status != types.StatusInsufficientData {
		t.Errorf("expected insufficient data after reset, got %v", res.Status)
	}
}

func TestDetectPeaks(t *testing.T) {
	tests := []struct {
		name        string
		data        []float64
		threshold   float64
		minDistance int
		expected    []int
	}{
		{
			name:        "two clean peaks",
			data:        []float64{0, 5, 0, 0, 5, 0},
			threshold:   0.5,
			minDistance: 1,
			expected:    []int{1, 4},
		},
		{
			name:        "small bump under threshold",
			data:        []float64{0, 10, 0, 2, 0, 10, 0},
			threshold:   0.5,
			minDistance: 1,
			expected:    []int{1, 5},
		},
		{
			name:        "too close keeps the higher",
			data:        []float64{0, 8, 0, 10, 0, 0, 0, 9, 0},
			threshold:   0.5,
			minDistance: 3,
			expected:    []int{3, 7},
		},
		{
			name:        "edges are not peaks",
			data:        []float64{10, 0, 0, 10},
			threshold:   0.5,
			minDistance: 1,
			expected:    nil,
		},
		{
			name:        "flat",
			data:        []float64{1, 1, 1, 1},
			threshold:   0.5,
			minDistance: 1,
			expected:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPeaks(tt.data, tt.threshold, tt.minDistance)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	if got := Confidence(1, 0); got != 0 {
		t.Errorf("expected 0 for a single peak, got %f", got)
	}
	if got := Confidence(5, 0); got != 1 {
		t.Errorf("expected 1 for five perfectly regular peaks, got %f", got)
	}
	if Confidence(5, 0.3) >= Confidence(5, 0.05) {
		t.Error("expected irregular intervals to lower confidence")
	}
	if Confidence(3, 0) >= Confidence(6, 0) {
		t.Error("expected more peaks to raise confidence")
	}
	if got := Confidence(10, math.NaN()); got != 0.4 {
		t.Errorf("expected count term only for NaN CV, got %f", got)
	}
}

func TestMinPeakDistance(t *testing.T) {
	cfg := Config{SampleRate: 50, MaxBPM: 180}
	if got := cfg.MinPeakDistance(); got != 16 {
		t.Errorf("expected 16 samples, got %d", got)
	}
	cfg.MaxBPM = 0
	if got := cfg.MinPeakDistance(); got != 1 {
		t.Errorf("expected 1 sample when MaxBPM unset, got %d", got)
	}
}

func TestAddSampleSignalValidity(t *testing.T) {
	data := sine(150, 50, 1.2, 3000, 150000)

	tests := []struct {
		name          string
		validEvery    int // every Nth raw reading passes signal checks, 0 for none
		expectStatus  types.Status
		expectWorn    bool
		maxConfidence float64
	}{
		{name: "all valid", validEvery: 1, expectStatus: types.StatusValid, expectWorn: true, maxConfidence: 1},
		{name: "none valid", validEvery: 0, expectStatus: types.StatusInvalidSignal, expectWorn: false, maxConfidence: 0},
		{name: "a third valid", validEvery: 3, expectStatus: types.StatusInvalidSignal, expectWorn: false, maxConfidence: 0},
	}
	for _, tt := range tests {
		s := NewService(DefaultConfig(), zaptest.NewLogger(t).Sugar())
		var res types.HRResult
		for i, v := range data {
			res = s.AddSample(v, tt.validEvery > 0 && i%tt.validEvery == 0)
		}
		if res.Status != tt.expectStatus {
			t.Errorf("%s: expected status %v, got %v", tt.name, tt.expectStatus, res.Status)
		}
		if res.IsWorn != tt.expectWorn {
			t.Errorf("%s: expected worn=%v, got %v", tt.name, tt.expectWorn, res.IsWorn)
		}
		if res.Confidence > tt.maxConfidence {
			t.Errorf("%s: expected confidence <= %.2f, got %.2f", tt.name, tt.maxConfidence, res.Confidence)
		}
		if tt.expectStatus == types.StatusInvalidSignal && (res.BPM != 0 || res.IsValid()) {
			t.Errorf("%s: expected empty invalid result, got %+v", tt.name, res)
		}
	}
}

func TestQualifyScalesConfidence(t *testing.T) {
	cfg := DefaultConfig()
	full := Analyze(sine(150, 50, 1.2, 3000, 150000), cfg)

	tests := []struct {
		fraction float64
		expected float64
		status   types.Status
	}{
		{fraction: 1, expected: full.Confidence, status: types.StatusValid},
		{fraction: 0.8, expected: full.Confidence * 0.8, status: types.StatusValid},
		{fraction: 0.5, expected: full.Confidence * 0.5, status: types.StatusValid},
		{fraction: 0.49, expected: 0, status: types.StatusInvalidSignal},
		{fraction: math.NaN(), expected: 0, status: types.StatusInvalidSignal},
	}
	for _, tt := range tests {
		got := Qualify(full, tt.fraction, cfg)
		if got.Status != tt.status {
			t.Errorf("fraction %.2f: expected status %v, got %v", tt.fraction, tt.status, got.Status)
		}
		if math.Abs(got.Confidence-tt.expected) > 1e-9 {
			t.Errorf("fraction %.2f: expected confidence %.3f, got %.3f", tt.fraction, tt.expected, got.Confidence)
		}
	}

	pending := types.EmptyHRResult(types.StatusInsufficientData)
	if got := Qualify(pending, 0, cfg); got.Status != types.StatusInsufficientData {
		t.Errorf("expected insufficient data to pass through, got %v", got.Status)
	}
}
