package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, "baseURL: http://arena:8080\ntimeout: 5s\nprettyJSON: false\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://arena:8080" || cfg.Timeout != 5*time.Second || cfg.PrettyJSON {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SupervisorURL != Default().SupervisorURL {
		t.Fatalf("expected default supervisor url, got %s", cfg.SupervisorURL)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"bad yaml":         "baseURL: [",
		"negative timeout": "timeout: -1s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
