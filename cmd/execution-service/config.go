package main

import (
	"fmt"
	"os"
	"time"

	"arena/internal/arena/game"
	"arena/internal/arena/service"
	"arena/internal/arena/strategy"
	commonmw "arena/internal/common/http/middleware"
	"arena/internal/hardening"
	"arena/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 90 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultRequestTimeout  = 60 * time.Second
	defaultTraceTimeout    = 5 * time.Second
	defaultTrialTimeout    = 2 * time.Second
	defaultWorkRoot        = "/tmp/arena"
	defaultMaxCodeBytes    = 64 << 10
	defaultMaxWork         = 60000
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// ExecutionConfig holds strategy execution settings.
type ExecutionConfig struct {
	// Mode names the deployment, "validation" or "simulation".
	Mode            string              `yaml:"mode"`
	WorkRoot        string              `yaml:"workRoot"`
	PoolSize        int                 `yaml:"poolSize"`
	MaxBatches      int                 `yaml:"maxBatches"`
	MaxWork         int                 `yaml:"maxWork"`
	MaxCodeBytes    int                 `yaml:"maxCodeBytes"`
	FeedbackMaxSize int                 `yaml:"feedbackMaxSize"`
	Seed            int64               `yaml:"seed"`
	TrialTimeout    time.Duration       `yaml:"trialTimeout"`
	RequestTimeout  time.Duration       `yaml:"requestTimeout"`
	TraceTimeout    time.Duration       `yaml:"traceTimeout"`
	SlotTimeout     time.Duration       `yaml:"slotTimeout"`
	AllowedImports  []string            `yaml:"allowedImports"`
	Validation      service.TrialLimits `yaml:"validation"`
	Simulation      service.TrialLimits `yaml:"simulation"`
	VM              strategy.Limits     `yaml:"vm"`
}

// GamesConfig holds per-game tuning.
type GamesConfig struct {
	Pig     game.PigConfig     `yaml:"pig"`
	Dilemma game.DilemmaConfig `yaml:"dilemma"`
}

// AppConfig holds execution-service config.
type AppConfig struct {
	Server    ServerConfig             `yaml:"server"`
	Logger    logger.Config            `yaml:"logger"`
	Execution ExecutionConfig          `yaml:"execution"`
	Games     GamesConfig              `yaml:"games"`
	Limiter   commonmw.RateLimitConfig `yaml:"limiter"`
	Hardening hardening.Config         `yaml:"hardening"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	exec := &cfg.Execution
	switch exec.Mode {
	case "":
		exec.Mode = string(service.ModeValidation)
	case string(service.ModeValidation), string(service.ModeSimulation):
	default:
		return nil, fmt.Errorf("unknown execution mode: %s", exec.Mode)
	}
	if exec.WorkRoot == "" {
		exec.WorkRoot = defaultWorkRoot
	}
	if exec.PoolSize <= 0 {
		exec.PoolSize = 4
	}
	if exec.MaxWork == 0 {
		exec.MaxWork = defaultMaxWork
	}
	if exec.MaxCodeBytes == 0 {
		exec.MaxCodeBytes = defaultMaxCodeBytes
	}
	if exec.TrialTimeout == 0 {
		exec.TrialTimeout = defaultTrialTimeout
	}
	if exec.RequestTimeout == 0 {
		exec.RequestTimeout = defaultRequestTimeout
	}
	if exec.TraceTimeout == 0 {
		exec.TraceTimeout = defaultTraceTimeout
	}
	if exec.RequestTimeout >= cfg.Server.WriteTimeout {
		return nil, fmt.Errorf("requestTimeout (%s) must be below server writeTimeout (%s)", exec.RequestTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Limiter.IdleTTL == 0 {
		cfg.Limiter.IdleTTL = 10 * time.Minute
	}
	return &cfg, nil
}
