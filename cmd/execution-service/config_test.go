package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "execution_service.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, "logger:\n  level: info\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Execution.Mode != "validation" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Execution.RequestTimeout != defaultRequestTimeout || cfg.Execution.MaxCodeBytes != defaultMaxCodeBytes {
		t.Fatalf("unexpected execution defaults: %+v", cfg.Execution)
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, `
execution:
  mode: simulation
  poolSize: 16
  requestTimeout: 30s
  simulation:
    default: 500
    max: 5000
  vm:
    callStackSize: 120
games:
  pig:
    target: 100
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	exec := cfg.Execution
	if exec.Mode != "simulation" || exec.PoolSize != 16 || exec.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected execution config: %+v", exec)
	}
	if exec.Simulation.Default != 500 || exec.VM.CallStackSize != 120 || cfg.Games.Pig.Target != 100 {
		t.Fatalf("nested values not decoded: %+v %+v", exec, cfg.Games)
	}
}

func TestLoadAppConfigRejects(t *testing.T) {
	tests := []string{
		"execution:\n  mode: tournament\n",
		"server:\n  writeTimeout: 10s\nexecution:\n  requestTimeout: 20s\n",
	}
	for _, body := range tests {
		if _, err := loadAppConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}
