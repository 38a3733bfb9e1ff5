package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelProfile maps a short alias to a reasoning model name.
type ModelProfile struct {
	Alias       string `yaml:"alias"`
	Model       string `yaml:"model"`
	Description string `yaml:"description,omitempty"`
	Default     bool   `yaml:"default,omitempty"`
}

type profileFile struct {
	Profiles []ModelProfile `yaml:"profiles"`
}

// DefaultProfiles returns the built-in model registry used when no
// profiles.yaml exists.
func DefaultProfiles() []ModelProfile {
	return []ModelProfile{
		{Alias: "fast", Model: "gpt-4o-mini", Description: "quick parameter checks", Default: true},
		{Alias: "deep", Model: "gpt-4o", Description: "harder geometry and boundary reasoning"},
	}
}

// ProfilesPath returns the model registry path inside the config dir.
func ProfilesPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.yaml"), nil
}

// LoadProfiles reads the model registry from path. A missing file
// yields the built-in defaults.
func LoadProfiles(path string) ([]ModelProfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultProfiles(), nil
	}
	if err != nil {
		return nil, err
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Profiles) == 0 {
		return DefaultProfiles(), nil
	}
	return f.Profiles, nil
}

// ResolveModel maps an alias (or explicit model name) to the model to
// send to the reasoning service. Empty input picks the default profile.
func ResolveModel(profiles []ModelProfile, alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		for _, p := range profiles {
			if p.Default {
				return p.Model
			}
		}
		if len(profiles) > 0 {
			return profiles[0].Model
		}
		return ""
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Alias, alias) {
			return p.Model
		}
	}
	// Not an alias: assume the caller named the model directly.
	return alias
}
