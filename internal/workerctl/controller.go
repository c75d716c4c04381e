// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package workerctl supervises the ingestion worker process from the serving
// side. Liveness comes from the program_info heartbeat in the store; the
// Reconciler is the only caller that moves the worker between states.
package workerctl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/metrics"
	"github.com/tomtom215/agvmonitor/internal/models"
	"github.com/tomtom215/agvmonitor/internal/store"
)

var (
	// ErrSpawnFailed wraps errors from the Spawner.
	ErrSpawnFailed = errors.New("workerctl: failed to spawn worker")

	// ErrNoWorker is returned by ProgramInfo when no live worker holds the
	// heartbeat.
	ErrNoWorker = errors.New("workerctl: no worker is running")
)

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Keyspace store.Keyspace

	// IdleTimeout is how long the fleet may have no clients before Reconcile
	// stops the worker.
	IdleTimeout time.Duration

	// StopTimeout bounds the wait after a graceful terminate.
	StopTimeout time.Duration

	// KillTimeout bounds the wait after a forced kill.
	KillTimeout time.Duration

	// PollInterval is how often a pid without a local handle is re-checked
	// while waiting for it to exit.
	PollInterval time.Duration
}

// Controller starts and stops the worker. Lifecycle calls are serialized.
type Controller struct {
	cfg     ControllerConfig
	store   store.Store
	spawner Spawner
	procs   ProcessTable
	log     zerolog.Logger

	mu      sync.Mutex
	current Process

	state      atomic.Int32
	currentPID atomic.Int64
}

// NewController creates a controller.
func NewController(cfg ControllerConfig, st store.Store, spawner Spawner, procs ProcessTable) *Controller {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 2 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	c := &Controller{
		cfg:     cfg,
		store:   st,
		spawner: spawner,
		procs:   procs,
		log:     logging.WithComponent("workerctl"),
	}
	c.setState(StateStopped)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// LocalPID returns the pid of the worker this process spawned, or 0.
func (c *Controller) LocalPID() int {
	return int(c.currentPID.Load())
}

// IdleTimeout returns the configured idle timeout.
func (c *Controller) IdleTimeout() time.Duration {
	return c.cfg.IdleTimeout
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	metrics.WorkerState.Set(float64(s))
}

// ProgramInfo returns the heartbeat of the live worker. An unreadable
// heartbeat, or one whose pid is gone, is deleted and reported as
// ErrNoWorker.
func (c *Controller) ProgramInfo(ctx context.Context) (*models.Heartbeat, error) {
	key := c.cfg.Keyspace.ProgramInfo()
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoWorker
	}
	if err != nil {
		return nil, fmt.Errorf("read heartbeat: %w", err)
	}

	hb, err := models.ParseHeartbeat(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("Removing unreadable heartbeat")
		c.deleteHeartbeat(ctx)
		return nil, ErrNoWorker
	}

	alive, err := c.procs.Alive(ctx, hb.PID)
	if err != nil {
		c.log.Warn().Err(err).Int("pid", hb.PID).Msg("Could not check worker pid, assuming alive")
		return hb, nil
	}
	if !alive {
		metrics.WorkerZombies.Inc()
		c.log.Warn().Int("pid", hb.PID).Msg("Heartbeat has no live process, removing it")
		c.deleteHeartbeat(ctx)
		return nil, ErrNoWorker
	}
	return hb, nil
}

// EnsureStarted spawns a worker unless one is already running, either as a
// local child or as the holder of a live heartbeat. Concurrent calls start
// at most one worker.
func (c *Controller) EnsureStarted(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.current; p != nil && !exited(p) {
		return Result{Action: ActionAlreadyRunning, PID: p.PID()}, nil
	}

	hb, err := c.ProgramInfo(ctx)
	switch {
	case err == nil:
		if c.current == nil {
			c.setState(StateRunning)
		}
		return Result{Action: ActionAlreadyRunning, PID: hb.PID}, nil
	case errors.Is(err, ErrNoWorker):
		if c.State() == StateRunning && c.current == nil {
			c.setState(StateZombie)
		}
	default:
		return Result{}, err
	}

	c.setState(StateStarting)
	proc, err := c.spawner.Spawn(ctx)
	if err != nil {
		c.setState(StateStopped)
		c.log.Error().Err(err).Msg("Failed to spawn ingestion worker")
		return Result{}, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	c.current = proc
	c.currentPID.Store(int64(proc.PID()))
	c.setState(StateRunning)
	metrics.WorkerStarts.Inc()
	c.log.Info().Int("pid", proc.PID()).Msg("Ingestion worker started")

	go c.watch(proc)
	return Result{Action: ActionStarted, PID: proc.PID()}, nil
}

// watch clears the local reference when the child exits on its own.
func (c *Controller) watch(proc Process) {
	<-proc.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != proc {
		return
	}
	c.current = nil
	c.currentPID.Store(0)
	c.setState(StateStopped)

	ev := c.log.Warn().Int("pid", proc.PID())
	if e, ok := proc.(interface{ Err() error }); ok && e.Err() != nil {
		ev = ev.Err(e.Err())
	}
	ev.Msg("Ingestion worker exited")
}

// EnsureStopped stops the worker: graceful terminate, bounded wait, forced
// kill, then heartbeat removal. Without a local child it falls back to the pid
// recorded in the heartbeat. Stopping when nothing runs is not an error.
func (c *Controller) EnsureStopped(ctx context.Context, reason string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stopped := 0
	if p := c.current; p != nil {
		c.setState(StateStopping)
		if !exited(p) {
			c.stopOwned(ctx, p)
			stopped = p.PID()
		}
		c.current = nil
		c.currentPID.Store(0)
	}

	if pid := c.heartbeatPID(ctx); pid > 0 && pid != stopped {
		c.setState(StateStopping)
		if c.stopPID(ctx, pid) && stopped == 0 {
			stopped = pid
		}
	}

	c.deleteHeartbeat(ctx)
	c.setState(StateStopped)

	if stopped == 0 {
		return Result{Action: ActionNotRunning}, nil
	}
	metrics.WorkerStops.WithLabelValues(reason).Inc()
	c.log.Info().Int("pid", stopped).Str("reason", reason).Msg("Ingestion worker stopped")
	return Result{Action: ActionStopped, PID: stopped}, nil
}

// Reconcile applies the idle policy: clients present means the worker must
// run; no clients for at least the idle timeout means it must not.
func (c *Controller) Reconcile(ctx context.Context, hasActiveClients bool, idleElapsed time.Duration) (Result, error) {
	if hasActiveClients {
		return c.EnsureStarted(ctx)
	}
	if idleElapsed < c.cfg.IdleTimeout || !c.active(ctx) {
		return Result{Action: ActionNone}, nil
	}
	return c.EnsureStopped(ctx, StopReasonIdle)
}

// active reports whether a worker may be running. Store errors count as
// active so that the stop path gets a chance to clean up.
func (c *Controller) active(ctx context.Context) bool {
	c.mu.Lock()
	p := c.current
	c.mu.Unlock()
	if p != nil && !exited(p) {
		return true
	}
	ok, err := c.store.Exists(ctx, c.cfg.Keyspace.ProgramInfo())
	return ok || err != nil
}

func (c *Controller) stopOwned(ctx context.Context, p Process) {
	pid := p.PID()
	if err := c.procs.Terminate(ctx, pid); err != nil {
		c.log.Warn().Err(err).Int("pid", pid).Msg("Terminate failed")
	}
	if waitDone(p.Done(), c.cfg.StopTimeout) {
		return
	}

	c.log.Warn().Int("pid", pid).Dur("waited", c.cfg.StopTimeout).Msg("Worker did not exit, killing")
	if err := c.procs.Kill(ctx, pid); err != nil {
		c.log.Error().Err(err).Int("pid", pid).Msg("Kill failed")
	}
	if !waitDone(p.Done(), c.cfg.KillTimeout) {
		c.log.Error().Int("pid", pid).Msg("Worker still running after kill")
	}
}

// stopPID stops a process known only by pid and reports whether it was alive.
func (c *Controller) stopPID(ctx context.Context, pid int) bool {
	alive, err := c.procs.Alive(ctx, pid)
	if err != nil || !alive {
		return false
	}

	if err := c.procs.Terminate(ctx, pid); err != nil {
		c.log.Warn().Err(err).Int("pid", pid).Msg("Terminate failed")
	}
	if c.waitGone(ctx, pid, c.cfg.StopTimeout) {
		return true
	}

	c.log.Warn().Int("pid", pid).Dur("waited", c.cfg.StopTimeout).Msg("Worker did not exit, killing")
	if err := c.procs.Kill(ctx, pid); err != nil {
		c.log.Error().Err(err).Int("pid", pid).Msg("Kill failed")
	}
	if !c.waitGone(ctx, pid, c.cfg.KillTimeout) {
		c.log.Error().Int("pid", pid).Msg("Worker still running after kill")
	}
	return true
}

func (c *Controller) waitGone(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		alive, err := c.procs.Alive(ctx, pid)
		if err == nil && !alive {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(c.cfg.PollInterval)
	}
}

func (c *Controller) heartbeatPID(ctx context.Context) int {
	raw, err := c.store.Get(ctx, c.cfg.Keyspace.ProgramInfo())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warn().Err(err).Msg("Could not read heartbeat")
		}
		return 0
	}
	hb, err := models.ParseHeartbeat(raw)
	if err != nil {
		return 0
	}
	return hb.PID
}

func (c *Controller) deleteHeartbeat(ctx context.Context) {
	if _, err := c.store.Delete(ctx, c.cfg.Keyspace.ProgramInfo()); err != nil {
		c.log.Warn().Err(err).Msg("Failed to delete heartbeat")
	}
}

func exited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
