// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agvmonitor/internal/logging"
)

// Activity reports dashboard client activity.
type Activity interface {
	ClientCount() int
	LastActivity() time.Time
}

type command struct {
	start bool
	reply chan commandResult
}

type commandResult struct {
	res Result
	err error
}

// Reconciler runs the control loop. Every lifecycle transition, including
// administrative start and stop, happens on its goroutine.
type Reconciler struct {
	ctl      *Controller
	activity Activity
	interval time.Duration
	kick     chan struct{}
	cmds     chan command
	now      func() time.Time
	log      zerolog.Logger

	// owned by the Serve goroutine
	idleStopped bool
	lastCommand time.Time
}

// NewReconciler creates a reconciler that checks every interval (10s when
// zero) and whenever Kick is called.
func NewReconciler(ctl *Controller, activity Activity, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		ctl:      ctl,
		activity: activity,
		interval: interval,
		kick:     make(chan struct{}, 1),
		cmds:     make(chan command),
		now:      time.Now,
		log:      logging.WithComponent("reconciler"),
	}
}

// Kick requests an immediate reconcile. It never blocks.
func (r *Reconciler) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Start asks the loop to start the worker. It resets the idle timer.
func (r *Reconciler) Start(ctx context.Context) (Result, error) {
	return r.do(ctx, true)
}

// Stop asks the loop to stop the worker.
func (r *Reconciler) Stop(ctx context.Context) (Result, error) {
	return r.do(ctx, false)
}

func (r *Reconciler) do(ctx context.Context, start bool) (Result, error) {
	cmd := command{start: start, reply: make(chan commandResult, 1)}
	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.res, res.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Serve implements suture.Service. On shutdown it stops the worker.
func (r *Reconciler) Serve(ctx context.Context) error {
	r.log.Info().
		Dur("interval", r.interval).
		Dur("idle_timeout", r.ctl.IdleTimeout()).
		Msg("Worker reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()
		case <-ticker.C:
			r.reconcile(ctx)
		case <-r.kick:
			r.reconcile(ctx)
		case cmd := <-r.cmds:
			cmd.reply <- r.handle(ctx, cmd)
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (r *Reconciler) String() string {
	return "worker-reconciler"
}

func (r *Reconciler) handle(ctx context.Context, cmd command) commandResult {
	r.lastCommand = r.now()
	if cmd.start {
		res, err := r.ctl.EnsureStarted(ctx)
		return commandResult{res: res, err: err}
	}
	res, err := r.ctl.EnsureStopped(ctx, StopReasonAdmin)
	return commandResult{res: res, err: err}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	clients := r.activity.ClientCount()
	last := r.activity.LastActivity()
	if r.lastCommand.After(last) {
		last = r.lastCommand
	}
	idle := r.now().Sub(last)

	if _, err := r.ctl.Reconcile(ctx, clients > 0, idle); err != nil {
		r.log.Error().Err(err).Int("clients", clients).Msg("Reconcile failed")
		return
	}

	idleNow := clients == 0 && idle >= r.ctl.IdleTimeout()
	switch {
	case idleNow && !r.idleStopped:
		r.idleStopped = true
		r.log.Info().
			Float64("idle_minutes", idle.Minutes()).
			Msg("No dashboard clients for the idle timeout, worker stopped")
	case !idleNow && r.idleStopped:
		r.idleStopped = false
		r.log.Info().Int("clients", clients).Msg("Dashboard activity resumed")
	}
}

func (r *Reconciler) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), r.ctl.cfg.StopTimeout+r.ctl.cfg.KillTimeout+time.Second)
	defer cancel()
	if _, err := r.ctl.EnsureStopped(ctx, StopReasonShutdown); err != nil {
		r.log.Error().Err(err).Msg("Failed to stop worker on shutdown")
	}
}
