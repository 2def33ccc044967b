// Package config loads arena-cli settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds arena-cli settings.
type Config struct {
	BaseURL       string        `yaml:"baseURL"`
	SupervisorURL string        `yaml:"supervisorURL"`
	Timeout       time.Duration `yaml:"timeout"`
	HistoryFile   string        `yaml:"historyFile"`
	PrettyJSON    bool          `yaml:"prettyJSON"`
}

// Default returns the settings used for keys the file leaves out.
func Default() Config {
	return Config{
		BaseURL:       "http://127.0.0.1:8080",
		SupervisorURL: "http://127.0.0.1:9090",
		Timeout:       2 * time.Minute,
		HistoryFile:   ".arena_history",
		PrettyJSON:    true,
	}
}

// Load decodes path over Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}
