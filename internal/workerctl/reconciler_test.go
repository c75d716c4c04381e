// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeActivity struct {
	mu      sync.Mutex
	clients int
	last    time.Time
}

func (a *fakeActivity) ClientCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clients
}

func (a *fakeActivity) LastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *fakeActivity) set(clients int, last time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clients = clients
	a.last = last
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestReconciler(h *harness, act Activity, clock *fakeClock) *Reconciler {
	r := NewReconciler(h.ctl, act, time.Hour)
	r.now = clock.Now
	return r
}

func TestReconcilerIdleTimeoutStopsOnce(t *testing.T) {
	h := newHarness(t)
	h.workerWritesHeartbeat(t)
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: t0}
	act := &fakeActivity{}
	r := newTestReconciler(h, act, clock)
	ctx := context.Background()

	act.set(1, t0)
	r.reconcile(ctx)
	if h.spawner.count() != 1 || !h.mr.Exists(h.ks.ProgramInfo()) {
		t.Fatal("worker not started for connected client")
	}

	// The only client disconnects.
	act.set(0, t0)

	clock.Set(t0.Add(30 * time.Second))
	r.reconcile(ctx)
	if terms, _ := h.table.counts(); len(terms) != 0 {
		t.Fatalf("stopped before idle timeout: %v", terms)
	}

	clock.Set(t0.Add(61 * time.Second))
	r.reconcile(ctx)
	if h.mr.Exists(h.ks.ProgramInfo()) {
		t.Error("heartbeat still present after idle timeout")
	}
	if !r.idleStopped {
		t.Error("expected idle-stopped flag")
	}

	clock.Set(t0.Add(5 * time.Minute))
	r.reconcile(ctx)
	r.reconcile(ctx)
	if terms, _ := h.table.counts(); len(terms) != 1 {
		t.Errorf("worker stopped %d times, want exactly 1", len(terms))
	}
	if h.spawner.count() != 1 {
		t.Errorf("idle reconciles spawned workers: %d", h.spawner.count())
	}
}

func TestReconcilerConnectResetsIdleTimer(t *testing.T) {
	h := newHarness(t)
	h.workerWritesHeartbeat(t)
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: t0}
	act := &fakeActivity{}
	r := newTestReconciler(h, act, clock)
	ctx := context.Background()

	act.set(1, t0)
	r.reconcile(ctx)

	// Disconnect, then reconnect 50s into the idle window.
	act.set(0, t0)
	clock.Set(t0.Add(50 * time.Second))
	act.set(1, t0.Add(50*time.Second))
	r.reconcile(ctx)

	// Disconnect again; 40s later the window has not elapsed.
	act.set(0, t0.Add(60*time.Second))
	clock.Set(t0.Add(100 * time.Second))
	r.reconcile(ctx)

	if terms, _ := h.table.counts(); len(terms) != 0 {
		t.Errorf("worker stopped although activity reset the idle timer: %v", terms)
	}
	if h.spawner.count() != 1 {
		t.Errorf("spawned %d workers, want 1", h.spawner.count())
	}

	clock.Set(t0.Add(121 * time.Second))
	r.reconcile(ctx)
	if terms, _ := h.table.counts(); len(terms) != 1 {
		t.Errorf("expected one stop after the reset window elapsed, got %v", terms)
	}
}

func TestReconcilerServe(t *testing.T) {
	h := newHarness(t)
	h.workerWritesHeartbeat(t)
	act := &fakeActivity{}
	act.set(0, time.Now())
	r := NewReconciler(h.ctl, act, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()

	res, err := r.Start(reqCtx)
	if err != nil || res.Action != ActionStarted {
		t.Fatalf("Start = %+v, %v", res, err)
	}
	res, err = r.Stop(reqCtx)
	if err != nil || res.Action != ActionStopped {
		t.Fatalf("Stop = %+v, %v", res, err)
	}

	// A connected client plus a kick starts the worker without waiting for a tick.
	act.set(1, time.Now())
	r.Kick()
	deadline := time.Now().Add(2 * time.Second)
	for h.spawner.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("kick did not reconcile")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	if terms, _ := h.table.counts(); len(terms) != 2 {
		t.Errorf("expected admin stop and shutdown stop, got %v", terms)
	}
	if h.mr.Exists(h.ks.ProgramInfo()) {
		t.Error("heartbeat left after shutdown")
	}
}

func TestReconcilerCommandRespectsContext(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.ctl, &fakeActivity{}, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Serve is not running, so the command cannot be delivered.
	if _, err := r.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestKickNeverBlocks(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.ctl, &fakeActivity{}, time.Hour)
	for i := 0; i < 10; i++ {
		r.Kick()
	}
}
