// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

// State is the lifecycle state of the ingestion worker as seen by the
// serving process.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	// StateZombie is transient: a heartbeat exists but its pid is gone. It is
	// resolved by deleting the heartbeat and moving to StateStopped.
	StateZombie
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Action describes what a lifecycle call did.
type Action string

const (
	ActionStarted        Action = "started"
	ActionAlreadyRunning Action = "already_running"
	ActionStopped        Action = "stopped"
	ActionNotRunning     Action = "not_running"
	ActionNone           Action = "none"
)

// Result is returned by lifecycle calls.
type Result struct {
	Action Action `json:"action"`
	PID    int    `json:"pid,omitempty"`
}

// Stop reasons recorded in metrics.
const (
	StopReasonIdle     = "idle"
	StopReasonAdmin    = "admin"
	StopReasonShutdown = "shutdown"
)
