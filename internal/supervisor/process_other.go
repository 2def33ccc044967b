//go:build !unix

package supervisor

import (
	"context"
	"errors"
	"time"
)

// ProcessConfig describes a locally spawned service.
type ProcessConfig struct {
	Command     []string      `yaml:"command"`
	Dir         string        `yaml:"dir"`
	Env         []string      `yaml:"env"`
	StopTimeout time.Duration `yaml:"stopTimeout"`
	LogLines    int           `yaml:"logLines"`
}

// ProcessInstance is unavailable on this platform.
type ProcessInstance struct{}

func NewProcessInstance(cfg ProcessConfig) (*ProcessInstance, error) {
	return nil, errors.New("process instances are only supported on unix")
}

func (p *ProcessInstance) Start(ctx context.Context) error { return errors.ErrUnsupported }

func (p *ProcessInstance) Stop(ctx context.Context) error { return errors.ErrUnsupported }

func (p *ProcessInstance) Pid() int { return 0 }

func (p *ProcessInstance) Logs(ctx context.Context, tail int) ([]byte, error) {
	return nil, errors.ErrUnsupported
}
