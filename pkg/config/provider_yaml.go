package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ProfileProvider for YAML profile files.
// Profiles in the file replace presets of the same name.
type YAMLProvider struct {
	mu       sync.Mutex
	filename string
	profiles []Profile
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// NewYAMLProvider creates a new YAML profile provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadProfiles reads the file and returns the presets overlaid with its profiles
func (y *YAMLProvider) LoadProfiles() ([]Profile, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", y.filename, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(cfgFile, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", y.filename, err)
	}

	seen := make(map[string]bool, len(file.Profiles))
	for i := range file.Profiles {
		if err := Normalize(&file.Profiles[i]); err != nil {
			return nil, err
		}
		name := file.Profiles[i].Name
		if seen[name] {
			return nil, fmt.Errorf("profile %q defined more than once in %s", name, y.filename)
		}
		seen[name] = true
	}

	y.profiles = merge(file.Profiles)
	return y.profiles, nil
}

// GetProfile returns one profile by name, loading the file on first use
func (y *YAMLProvider) GetProfile(name string) (Profile, error) {
	y.mu.Lock()
	loaded := y.profiles
	y.mu.Unlock()

	if loaded == nil {
		var err error
		if loaded, err = y.LoadProfiles(); err != nil {
			return Profile{}, err
		}
	}
	return find(loaded, name)
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
