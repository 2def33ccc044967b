//go:build unix

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
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

// ProcessInstance runs the service as a child in its own process group.
type ProcessInstance struct {
	cfg  ProcessConfig
	logs *lineRing

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewProcessInstance creates an instance; call Start to spawn it.
func NewProcessInstance(cfg ProcessConfig) (*ProcessInstance, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &ProcessInstance{cfg: cfg, logs: newLineRing(cfg.LogLines)}, nil
}

func (p *ProcessInstance) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running() {
		return nil
	}
	cmd := exec.Command(p.cfg.Command[0], p.cfg.Command[1:]...)
	cmd.Dir = p.cfg.Dir
	cmd.Env = append(cmd.Environ(), p.cfg.Env...)
	cmd.Stdout = p.logs
	cmd.Stderr = p.logs
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process failed: %w", err)
	}
	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		if err != nil {
			fmt.Fprintf(p.logs, "process exited: %v\n", err)
		}
		close(done)
	}()
	p.cmd = cmd
	p.done = done
	return nil
}

// Stop sends SIGTERM to the process group and SIGKILL after StopTimeout.
func (p *ProcessInstance) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		return nil
	}
	pgid := -p.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("terminate process failed: %w", err)
	}
	timer := time.NewTimer(p.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process failed: %w", err)
	}
	<-p.done
	return nil
}

// Pid returns the running child's pid, or 0 when nothing runs.
func (p *ProcessInstance) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *ProcessInstance) Logs(ctx context.Context, tail int) ([]byte, error) {
	return p.logs.Tail(tail), nil
}

func (p *ProcessInstance) running() bool {
	if p.cmd == nil || p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
