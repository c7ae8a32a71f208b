// Package config provides the analysis profiles that select sample rate,
// window lengths and heart-rate bounds, from built-in presets, YAML files or SQLite.
package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// ErrProfileNotFound is returned when no profile has the requested name
var ErrProfileNotFound = errors.New("profile not found")

// ProfileProvider defines the interface for profile sources
type ProfileProvider interface {
	// LoadProfiles returns every profile the source knows, presets included
	LoadProfiles() ([]Profile, error)
	GetProfile(name string) (Profile, error)

	IsReadOnly() bool
	Close() error
}

var validate = validator.New()

// Normalize canonicalizes the name, fills unset fields with their defaults and
// validates the result
func Normalize(p *Profile) error {
	p.Name = ProfileName(p.Name)
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("failed to apply profile defaults: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}
	return nil
}

// merge overlays profiles on the presets by name and returns them sorted
func merge(overrides []Profile) []Profile {
	byName := make(map[string]Profile, len(presets)+len(overrides))
	for name, p := range presets {
		byName[name] = p
	}
	for _, p := range overrides {
		byName[p.Name] = p
	}

	out := make([]Profile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func find(profiles []Profile, name string) (Profile, error) {
	key := ProfileName(name)
	for _, p := range profiles {
		if ProfileName(p.Name) == key {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
}
