// Package hardening applies process-wide resource limits and a seccomp
// filter to the execution service before it accepts requests.
package hardening

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config describes the limits applied at startup.
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	MemoryMB       int64  `yaml:"memoryMB"`
	MaxProcs       int64  `yaml:"maxProcs"`
	MaxFileMB      int64  `yaml:"maxFileMB"`
	SeccompProfile string `yaml:"seccompProfile"`
}

// Profile is a seccomp profile in the docker-like JSON layout.
type Profile struct {
	DefaultAction string        `json:"defaultAction"`
	Syscalls      []SyscallRule `json:"syscalls"`
}

// SyscallRule applies one action to a set of syscall names.
type SyscallRule struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

var knownActions = map[string]struct{}{
	"SCMP_ACT_ALLOW":        {},
	"SCMP_ACT_ERRNO":        {},
	"SCMP_ACT_KILL":         {},
	"SCMP_ACT_KILL_PROCESS": {},
	"SCMP_ACT_LOG":          {},
}

// LoadProfile reads and validates a profile file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read seccomp profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile and checks its actions.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse seccomp profile: %w", err)
	}
	if err := checkAction(p.DefaultAction); err != nil {
		return Profile{}, err
	}
	for _, rule := range p.Syscalls {
		if err := checkAction(rule.Action); err != nil {
			return Profile{}, err
		}
		if len(rule.Names) == 0 {
			return Profile{}, fmt.Errorf("seccomp rule with action %s has no syscalls", rule.Action)
		}
	}
	return p, nil
}

func checkAction(action string) error {
	if _, ok := knownActions[strings.ToUpper(action)]; !ok {
		return fmt.Errorf("unsupported seccomp action: %q", action)
	}
	return nil
}
