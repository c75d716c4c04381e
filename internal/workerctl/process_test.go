// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

import (
	"context"
	"os"
	"runtime"
	"testing"
	"time"
)

const helperEnv = "AGVMONITOR_HELPER_PROCESS"

// TestHelperProcess is the child process for the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	time.Sleep(30 * time.Second)
	os.Exit(0)
}

func spawnHelper(t *testing.T) Process {
	t.Helper()
	s := &ExecSpawner{
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$"},
		Env:  []string{helperEnv + "=1"},
	}
	p, err := s.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	t.Cleanup(func() {
		_ = HostProcessTable{}.Kill(context.Background(), p.PID())
		<-p.Done()
	})
	return p
}

func TestHostProcessTableLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals differ on windows")
	}
	ctx := context.Background()
	table := HostProcessTable{}
	p := spawnHelper(t)

	alive, err := table.Alive(ctx, p.PID())
	if err != nil || !alive {
		t.Fatalf("Alive(%d) = %v, %v", p.PID(), alive, err)
	}

	if err := table.Terminate(ctx, p.PID()); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("helper did not exit after terminate")
	}

	alive, err = table.Alive(ctx, p.PID())
	if err != nil || alive {
		t.Errorf("Alive after exit = %v, %v", alive, err)
	}
	if err := table.Kill(ctx, p.PID()); err != nil {
		t.Errorf("Kill of a gone process should succeed, got %v", err)
	}
}

func TestHostProcessTableRejectsInvalidPID(t *testing.T) {
	table := HostProcessTable{}
	if alive, err := table.Alive(context.Background(), 0); alive || err != nil {
		t.Errorf("Alive(0) = %v, %v", alive, err)
	}
	if err := table.Terminate(context.Background(), -1); err != nil {
		t.Errorf("Terminate(-1) = %v", err)
	}
}

func TestExecSpawnerMissingBinary(t *testing.T) {
	s, err := NewExecSpawner("/nonexistent/agvmonitor")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Args) != 1 || s.Args[0] != "worker" {
		t.Errorf("default args = %v", s.Args)
	}
	if _, err := s.Spawn(context.Background()); err == nil {
		t.Error("expected error spawning a missing binary")
	}
}

func TestControllerStopsRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals differ on windows")
	}
	h := newHarness(t)
	h.ctl.procs = HostProcessTable{}
	h.ctl.spawner = &ExecSpawner{
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$"},
		Env:  []string{helperEnv + "=1"},
	}
	h.ctl.cfg.StopTimeout = 5 * time.Second
	ctx := context.Background()

	res, err := h.ctl.EnsureStarted(ctx)
	if err != nil || res.Action != ActionStarted {
		t.Fatalf("EnsureStarted = %+v, %v", res, err)
	}
	h.putHeartbeat(t, res.PID)

	stopped, err := h.ctl.EnsureStopped(ctx, StopReasonAdmin)
	if err != nil || stopped.PID != res.PID {
		t.Fatalf("EnsureStopped = %+v, %v", stopped, err)
	}
	if alive, _ := (HostProcessTable{}).Alive(ctx, res.PID); alive {
		t.Error("process still alive after EnsureStopped")
	}
	if h.mr.Exists(h.ks.ProgramInfo()) {
		t.Error("heartbeat not removed")
	}
}
