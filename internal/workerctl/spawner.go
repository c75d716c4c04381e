// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ExecSpawner starts the worker as a child OS process, by default by
// re-executing the running binary with the "worker" subcommand.
type ExecSpawner struct {
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner returns a spawner for path. An empty path means the running
// executable.
func NewExecSpawner(path string, args ...string) (*ExecSpawner, error) {
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		path = self
	}
	if len(args) == 0 {
		args = []string{"worker"}
	}
	return &ExecSpawner{Path: path, Args: args, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Spawn implements Spawner. The child is not bound to ctx: it outlives the
// request that started it and is stopped only through the Controller.
func (s *ExecSpawner) Spawn(_ context.Context) (Process, error) {
	cmd := exec.Command(s.Path, s.Args...) //nolint:gosec // path is the configured worker binary
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Path, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Done() <-chan struct{} { return p.done }

// Err returns the exit error. It is valid only after Done is closed.
func (p *execProcess) Err() error { return p.err }
