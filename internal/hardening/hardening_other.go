//go:build !linux

package hardening

import "errors"

// Apply is only supported on linux.
func Apply(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	return errors.New("process hardening is only supported on linux")
}
