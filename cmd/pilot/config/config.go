// Package config holds user preferences for the pilot CLI.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds user preferences.
type Config struct {
	ReasonerURL string `json:"reasoner_url"` // reasoning service base URL
	BridgeURL   string `json:"bridge_url"`   // job bridge base URL
	Model       string `json:"model"`        // model alias resolved server-side
	CaseName    string `json:"case_name"`    // default case label for submissions
	AttachDir   string `json:"attach_dir"`   // mesh drop directory
	Theme       string `json:"theme"`        // "light" or "dark"
	Debug       bool   `json:"debug"`        // enable file logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ReasonerURL: "http://localhost:8100",
		BridgeURL:   "http://localhost:9000",
		Theme:       "light",
	}
}

// Dir returns the directory where config and state are stored.
// Prefers a project-local .foampilot directory, falling back to the
// home directory.
func Dir() (string, error) {
	if cwd, err := os.Getwd(); err == nil {
		localDir := filepath.Join(cwd, ".foampilot")
		if stat, err := os.Stat(localDir); (err == nil && stat.IsDir()) || os.IsNotExist(err) {
			return localDir, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".foampilot"), nil
}

// File returns the full path to the config file.
func File() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the configuration from the default location.
func Load() (Config, error) {
	path, err := File()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration from an explicit path. A missing
// file yields the defaults without error.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return DefaultConfig(), err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to the default location.
func Save(cfg Config) error {
	path, err := File()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes the configuration to an explicit path.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// HistoryPath returns the run history database path.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// AttachDirPath resolves the mesh drop directory: the configured one,
// or <config dir>/meshes.
func AttachDirPath(cfg Config) (string, error) {
	if cfg.AttachDir != "" {
		return cfg.AttachDir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "meshes"), nil
}
