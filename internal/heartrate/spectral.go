package heartrate

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/chrissnell/biometrics/internal/dsp"
	"github.com/chrissnell/biometrics/internal/types"
)

// minSpectrumSize is the smallest zero-padded FFT length, giving 50 Hz input
// a bin spacing under 3 bpm before interpolation
const minSpectrumSize = 1024

// SpectralRate returns the strongest pulse rate of window between cfg.MinBPM
// and cfg.MaxBPM from a Hann-windowed, zero-padded FFT. ok is false when the
// window is too short, flat or has no energy in the band.
func SpectralRate(samples []float64, cfg Config) (bpm float64, ok bool) {
	samples = dsp.Finite(samples)
	if len(samples) < 8 || !(cfg.SampleRate > 0) || dsp.IsConstant(samples, 0) {
		return 0, false
	}

	ac, _ := dsp.RemoveDC(samples)
	hann := window.Hann(len(ac))

	size := minSpectrumSize
	for size < 4*len(ac) {
		size *= 2
	}
	padded := make([]float64, size)
	for i, v := range ac {
		padded[i] = v * hann[i]
	}
	spectrum := fft.FFTReal(padded)

	binHz := cfg.SampleRate / float64(size)
	lo := int(math.Ceil(cfg.MinBPM / 60 / binHz))
	hi := int(math.Floor(cfg.MaxBPM / 60 / binHz))
	if lo < 1 {
		lo = 1
	}
	if hi > size/2-1 {
		hi = size/2 - 1
	}

	best, bestMag := -1, 0.0
	for i := lo; i <= hi; i++ {
		if m := cmplx.Abs(spectrum[i]); m > bestMag {
			best, bestMag = i, m
		}
	}
	if best < 0 {
		return 0, false
	}

	// parabolic interpolation between neighbouring bins
	y1, y3 := cmplx.Abs(spectrum[best-1]), cmplx.Abs(spectrum[best+1])
	offset := 0.0
	if d := 2 * (2*bestMag - y1 - y3); d != 0 {
		offset = (y3 - y1) / d
	}
	return (float64(best) + offset) * binHz * 60, true
}

// CrossCheck halves the confidence of a valid result whose peak-interval rate
// differs from the spectral rate by more than tolerance, a fraction of the spectral rate
func CrossCheck(res types.HRResult, spectralBPM, tolerance float64) types.HRResult {
	if res.Status != types.StatusValid || !(spectralBPM > 0) {
		return res
	}
	if math.Abs(res.BPM-spectralBPM) > tolerance*spectralBPM {
		res.Confidence /= 2
	}
	return res
}
