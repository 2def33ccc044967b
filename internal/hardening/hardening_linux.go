//go:build linux

package hardening

import (
	"fmt"
	"strings"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

// Apply installs the configured limits on the current process.
func Apply(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	if err := applyRlimits(cfg); err != nil {
		return err
	}
	if cfg.SeccompProfile == "" {
		return nil
	}
	profile, err := LoadProfile(cfg.SeccompProfile)
	if err != nil {
		return err
	}
	return applySeccomp(profile)
}

const mib = 1 << 20

func applyRlimits(cfg Config) error {
	limits := []struct {
		name     string
		resource int
		n        int64
		unit     uint64
	}{
		{"address space", unix.RLIMIT_AS, cfg.MemoryMB, mib},
		{"processes", unix.RLIMIT_NPROC, cfg.MaxProcs, 1},
		{"file size", unix.RLIMIT_FSIZE, cfg.MaxFileMB, mib},
	}
	for _, l := range limits {
		if l.n <= 0 {
			continue
		}
		v := uint64(l.n) * l.unit
		if err := unix.Setrlimit(l.resource, &unix.Rlimit{Cur: v, Max: v}); err != nil {
			return fmt.Errorf("limit %s to %d: %w", l.name, v, err)
		}
	}
	return nil
}

// applySeccomp loads the filter on every thread of the process.
func applySeccomp(p Profile) error {
	defaultAction, err := parseAction(p.DefaultAction)
	if err != nil {
		return err
	}
	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()
	for _, rule := range p.Syscalls {
		action, err := parseAction(rule.Action)
		if err != nil {
			return err
		}
		for _, name := range rule.Names {
			call, err := seccomp.GetSyscallFromName(name)
			if err != nil {
				// unknown on this architecture
				continue
			}
			if err := filter.AddRule(call, action); err != nil {
				return fmt.Errorf("add seccomp rule %s: %w", name, err)
			}
		}
	}
	if err := filter.SetTsync(true); err != nil {
		return fmt.Errorf("set seccomp tsync: %w", err)
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func parseAction(action string) (seccomp.ScmpAction, error) {
	switch strings.ToUpper(action) {
	case "SCMP_ACT_ALLOW":
		return seccomp.ActAllow, nil
	case "SCMP_ACT_ERRNO":
		return seccomp.ActErrno.SetReturnCode(int16(unix.EPERM)), nil
	case "SCMP_ACT_LOG":
		return seccomp.ActLog, nil
	case "SCMP_ACT_KILL", "SCMP_ACT_KILL_PROCESS":
		return seccomp.ActKillProcess, nil
	default:
		return seccomp.ActKillProcess, fmt.Errorf("unsupported seccomp action: %s", action)
	}
}
