// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Process is a spawned worker.
type Process interface {
	PID() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
}

// Spawner starts worker processes.
type Spawner interface {
	Spawn(ctx context.Context) (Process, error)
}

// ProcessTable inspects and signals host processes by pid. It is used both
// for processes this controller spawned and for a pid found only in the
// heartbeat.
type ProcessTable interface {
	// Alive reports whether pid exists and is not a zombie.
	Alive(ctx context.Context, pid int) (bool, error)
	// Terminate asks pid to exit. A missing process is not an error.
	Terminate(ctx context.Context, pid int) error
	// Kill forces pid to exit. A missing process is not an error.
	Kill(ctx context.Context, pid int) error
}

// HostProcessTable is the ProcessTable of the local host.
type HostProcessTable struct{}

// Alive implements ProcessTable.
func (HostProcessTable) Alive(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil || !exists {
		return false, err
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, fmt.Errorf("inspect pid %d: %w", pid, err)
	}

	statuses, err := p.StatusWithContext(ctx)
	if err != nil {
		// Status is not available on every platform; existence is enough.
		return true, nil
	}
	for _, s := range statuses {
		if s == process.Zombie {
			return false, nil
		}
	}
	return true, nil
}

// Terminate implements ProcessTable.
func (HostProcessTable) Terminate(ctx context.Context, pid int) error {
	p, err := lookup(ctx, pid)
	if p == nil || err != nil {
		return err
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	return nil
}

// Kill implements ProcessTable.
func (HostProcessTable) Kill(ctx context.Context, pid int) error {
	p, err := lookup(ctx, pid)
	if p == nil || err != nil {
		return err
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

// lookup returns nil, nil when pid does not exist.
func lookup(ctx context.Context, pid int) (*process.Process, error) {
	if pid <= 0 {
		return nil, nil
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup pid %d: %w", pid, err)
	}
	return p, nil
}
