package main

import (
	"fmt"
	"os"
	"time"

	"arena/internal/common/cache"
	"arena/internal/common/mq"
	"arena/internal/common/storage"
	"arena/internal/supervisor"
	"arena/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:9090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultProbeTimeout    = 2 * time.Second
	defaultSnapshotTTL     = 5 * time.Minute
	defaultRestartTopic    = "arena.supervisor.restarts"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// ProbeConfig holds defaults shared by every supervised service.
type ProbeConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxFailures    int           `yaml:"maxFailures"`
	Cooldown       time.Duration `yaml:"cooldown"`
	RestartTimeout time.Duration `yaml:"restartTimeout"`
	LogTail        int           `yaml:"logTail"`
}

// ServiceConfig describes one supervised execution service.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	HealthURL string `yaml:"healthURL"`
	// Kind is "docker" or "process".
	Kind        string                   `yaml:"kind"`
	Container   string                   `yaml:"container"`
	StopTimeout time.Duration            `yaml:"stopTimeout"`
	Process     supervisor.ProcessConfig `yaml:"process"`
	Probe       ProbeConfig              `yaml:"probe"`
}

// SinkConfig enables the Redis snapshot sink.
type SinkConfig struct {
	Enabled bool              `yaml:"enabled"`
	Redis   cache.RedisConfig `yaml:"redis"`
	TTL     time.Duration     `yaml:"ttl"`
	History int               `yaml:"history"`
}

// EventsConfig enables restart events on Kafka.
type EventsConfig struct {
	Enabled bool           `yaml:"enabled"`
	Kafka   mq.KafkaConfig `yaml:"kafka"`
	Topic   string         `yaml:"topic"`
}

// ArchiveConfig enables diagnostic log archiving to MinIO.
type ArchiveConfig struct {
	Enabled bool                `yaml:"enabled"`
	MinIO   storage.MinIOConfig `yaml:"minio"`
	Prefix  string              `yaml:"prefix"`
}

// AppConfig holds supervisor config.
type AppConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Logger   logger.Config   `yaml:"logger"`
	Probe    ProbeConfig     `yaml:"probe"`
	Services []ServiceConfig `yaml:"services"`
	Sink     SinkConfig      `yaml:"sink"`
	Events   EventsConfig    `yaml:"events"`
	Archive  ArchiveConfig   `yaml:"archive"`
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
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = defaultProbeTimeout
	}
	if len(cfg.Services) == 0 {
		return nil, fmt.Errorf("at least one service is required")
	}
	seen := make(map[string]struct{}, len(cfg.Services))
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if svc.Name == "" {
			return nil, fmt.Errorf("services[%d]: name is required", i)
		}
		if _, ok := seen[svc.Name]; ok {
			return nil, fmt.Errorf("services[%d]: duplicate name %s", i, svc.Name)
		}
		seen[svc.Name] = struct{}{}
		if svc.HealthURL == "" {
			return nil, fmt.Errorf("service %s: healthURL is required", svc.Name)
		}
		switch svc.Kind {
		case "docker":
			if svc.Container == "" {
				svc.Container = svc.Name
			}
		case "process":
			if len(svc.Process.Command) == 0 {
				return nil, fmt.Errorf("service %s: process.command is required", svc.Name)
			}
		default:
			return nil, fmt.Errorf("service %s: unknown kind %q", svc.Name, svc.Kind)
		}
		svc.Probe = mergeProbe(svc.Probe, cfg.Probe)
	}
	if cfg.Sink.Enabled && cfg.Sink.Redis.Addr == "" {
		return nil, fmt.Errorf("sink redis addr is required")
	}
	if cfg.Sink.TTL == 0 {
		cfg.Sink.TTL = defaultSnapshotTTL
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaultRestartTopic
	}
	if cfg.Archive.Enabled && cfg.Archive.MinIO.Bucket == "" {
		return nil, fmt.Errorf("archive minio bucket is required")
	}
	return &cfg, nil
}

// mergeProbe fills unset per-service values from the shared defaults.
func mergeProbe(p, def ProbeConfig) ProbeConfig {
	if p.Interval == 0 {
		p.Interval = def.Interval
	}
	if p.Timeout == 0 {
		p.Timeout = def.Timeout
	}
	if p.MaxFailures == 0 {
		p.MaxFailures = def.MaxFailures
	}
	if p.Cooldown == 0 {
		p.Cooldown = def.Cooldown
	}
	if p.RestartTimeout == 0 {
		p.RestartTimeout = def.RestartTimeout
	}
	if p.LogTail == 0 {
		p.LogTail = def.LogTail
	}
	return p
}

func (s ServiceConfig) supervisorConfig() supervisor.Config {
	return supervisor.Config{
		Service:        s.Name,
		Interval:       s.Probe.Interval,
		MaxFailures:    s.Probe.MaxFailures,
		Cooldown:       s.Probe.Cooldown,
		RestartTimeout: s.Probe.RestartTimeout,
		LogTail:        s.Probe.LogTail,
	}
}
