package supervisor

import "time"

// State is the health classification of a supervised service.
type State string

const (
	StateHealthy         State = "HEALTHY"
	StateDegraded        State = "DEGRADED"
	StateRestarting      State = "RESTARTING"
	StateCooldownBlocked State = "COOLDOWN_BLOCKED"
)

var allStates = []State{StateHealthy, StateDegraded, StateRestarting, StateCooldownBlocked}

// HealthState is owned by the supervisor loop. Nothing else mutates it.
type HealthState struct {
	State               State
	ConsecutiveFailures int
	LastRestart         time.Time
	Restarts            int
	LastError           string
}

// Snapshot is the read-only view published after every transition.
type Snapshot struct {
	Service             string    `json:"service"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Restarts            int       `json:"restarts"`
	LastRestart         time.Time `json:"last_restart,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// RestartEvent describes one completed restart attempt.
type RestartEvent struct {
	Service     string    `json:"service"`
	Reason      string    `json:"reason"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ArchiveKey  string    `json:"archive_key,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}
