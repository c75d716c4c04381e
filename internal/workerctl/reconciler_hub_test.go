// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package workerctl

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/agvmonitor/internal/websocket"
)

// startHub runs a dashboard hub on clock until the test ends.
func startHub(t *testing.T, clock *fakeClock) *websocket.Hub {
	t.Helper()
	hub := websocket.NewHub(websocket.ClientConfig{})
	hub.SetClock(clock.Now)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func waitForClients(t *testing.T, hub *websocket.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.ClientCount(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestReconcilerIdleWindowStartsAtLastDisconnect(t *testing.T) {
	h := newHarness(t)
	h.workerWritesHeartbeat(t)
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: t0}
	hub := startHub(t, clock)
	r := newTestReconciler(h, hub, clock)
	ctx := context.Background()

	client := websocket.NewClient(hub, nil)
	hub.Register <- client
	waitForClients(t, hub, 1)
	r.reconcile(ctx)
	if h.spawner.count() != 1 {
		t.Fatal("worker not started for connected client")
	}

	// The client stays silent for longer than the idle timeout.
	clock.Set(t0.Add(2 * time.Minute))
	r.reconcile(ctx)
	if terms, _ := h.table.counts(); len(terms) != 0 {
		t.Fatalf("stopped while a client was connected: %v", terms)
	}

	hub.Unregister <- client
	waitForClients(t, hub, 0)

	clock.Set(t0.Add(2*time.Minute + time.Second))
	r.reconcile(ctx)
	if terms, _ := h.table.counts(); len(terms) != 0 {
		t.Fatalf("stopped right after the last disconnect: %v", terms)
	}
	if !h.mr.Exists(h.ks.ProgramInfo()) {
		t.Fatal("heartbeat removed before the idle timeout elapsed")
	}

	clock.Set(t0.Add(3*time.Minute + time.Second))
	r.reconcile(ctx)
	if terms, _ := h.table.counts(); len(terms) != 1 {
		t.Errorf("expected one stop once the idle timeout elapsed, got %v", terms)
	}
	if h.mr.Exists(h.ks.ProgramInfo()) {
		t.Error("heartbeat still present after idle timeout")
	}
}
