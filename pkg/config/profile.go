package config

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Profile selects the sample rate and analysis windows for one device class
type Profile struct {
	Name              string  `yaml:"name" json:"name" validate:"required"`
	Description       string  `yaml:"description,omitempty" json:"description,omitempty"`
	SampleRate        float64 `yaml:"sample_rate" json:"sample_rate" default:"50" validate:"gt=0,lte=1000"`
	HRWindowSeconds   float64 `yaml:"hr_window_seconds" json:"hr_window_seconds" default:"3" validate:"gt=0"`
	SpO2WindowSeconds float64 `yaml:"spo2_window_seconds" json:"spo2_window_seconds" default:"5" validate:"gt=0"`
	MinBPM            float64 `yaml:"min_bpm" json:"min_bpm" default:"40" validate:"gt=0"`
	MaxBPM            float64 `yaml:"max_bpm" json:"max_bpm" default:"180" validate:"gtfield=MinBPM"`
	SpO2Curve         string  `yaml:"spo2_curve,omitempty" json:"spo2_curve,omitempty" default:"linear" validate:"oneof=linear quadratic cubic"`
}

// HRWindowSize returns the heart-rate window length in samples
func (p Profile) HRWindowSize() int {
	return windowSize(p.SampleRate, p.HRWindowSeconds)
}

// SpO2WindowSize returns the SpO2 window length in samples
func (p Profile) SpO2WindowSize() int {
	return windowSize(p.SampleRate, p.SpO2WindowSeconds)
}

func windowSize(rate, seconds float64) int {
	return int(math.Round(rate * seconds))
}

// Preset profile names
const (
	ProfileOralable = "oralable"
	ProfileANR      = "anr"
	ProfileDemo     = "demo"
)

var presets = map[string]Profile{
	ProfileOralable: {
		Name:              ProfileOralable,
		Description:       "Oralable intraoral sensor, 50 Hz",
		SampleRate:        50,
		HRWindowSeconds:   3,
		SpO2WindowSeconds: 5,
		MinBPM:            40,
		MaxBPM:            180,
		SpO2Curve:         "linear",
	},
	ProfileANR: {
		Name:              ProfileANR,
		Description:       "ANR muscle-activity device, 100 Hz",
		SampleRate:        100,
		HRWindowSeconds:   3,
		SpO2WindowSeconds: 5,
		MinBPM:            40,
		MaxBPM:            180,
		SpO2Curve:         "linear",
	},
	ProfileDemo: {
		Name:              ProfileDemo,
		Description:       "low-rate profile for fast testing",
		SampleRate:        10,
		HRWindowSeconds:   4,
		SpO2WindowSeconds: 4,
		MinBPM:            40,
		MaxBPM:            180,
		SpO2Curve:         "linear",
	},
}

// ProfileName returns the canonical form of a profile name: trimmed and lowercased
func ProfileName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Preset returns a built-in profile by name
func Preset(name string) (Profile, error) {
	p, ok := presets[ProfileName(name)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}

// DefaultProfile returns the oralable preset
func DefaultProfile() Profile {
	return presets[ProfileOralable]
}

// Presets returns every built-in profile, sorted by name
func Presets() []Profile {
	out := make([]Profile, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
