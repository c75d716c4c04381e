// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package websocket

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/agvmonitor/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub starts a hub that stops when the test ends.
func setupHub(t *testing.T, cfg ClientConfig) *Hub {
	t.Helper()
	hub := NewHub(cfg)
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

// createTestClient creates a client without a connection.
func createTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		connID: "test",
		hub:    hub,
		send:   make(chan []byte, buffer),
	}
}

func waitUntil(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := setupHub(t, ClientConfig{})

	var connects atomic.Int32
	hub.onConnect = func() { connects.Add(1) }

	c1 := createTestClient(hub, 4)
	c2 := createTestClient(hub, 4)
	hub.Register <- c1
	hub.Register <- c2
	waitUntil(t, "two clients", func() bool { return hub.ClientCount() == 2 })

	hub.Unregister <- c1
	waitUntil(t, "one client", func() bool { return hub.ClientCount() == 1 })

	if _, ok := <-c1.send; ok {
		t.Error("expected send channel of unregistered client to be closed")
	}
	if connects.Load() != 2 {
		t.Errorf("onConnect ran %d times, want 2", connects.Load())
	}

	// A second unregister of the same client is harmless.
	hub.Unregister <- c1
	waitUntil(t, "still one client", func() bool { return hub.ClientCount() == 1 })
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	hub := setupHub(t, ClientConfig{})
	clients := []*Client{createTestClient(hub, 4), createTestClient(hub, 4), createTestClient(hub, 4)}
	for _, c := range clients {
		hub.Register <- c
	}
	waitUntil(t, "clients registered", func() bool { return hub.ClientCount() == len(clients) })

	hub.Broadcast([]byte(`{"x":1}`))

	for i, c := range clients {
		select {
		case got := <-c.send:
			if string(got) != `{"x":1}` {
				t.Errorf("client %d got %s", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %d received nothing", i)
		}
	}
}

func TestHubRemovesSlowClientOnly(t *testing.T) {
	hub := setupHub(t, ClientConfig{})
	slow := createTestClient(hub, 1)
	fast := createTestClient(hub, 8)
	hub.Register <- slow
	hub.Register <- fast
	waitUntil(t, "clients registered", func() bool { return hub.ClientCount() == 2 })

	hub.Broadcast([]byte("1"))
	hub.Broadcast([]byte("2"))
	waitUntil(t, "slow client removed", func() bool { return hub.ClientCount() == 1 })

	hub.mu.RLock()
	_, fastKept := hub.clients[fast]
	hub.mu.RUnlock()
	if !fastKept {
		t.Fatal("fast client was removed")
	}
	if got := len(fast.send); got != 2 {
		t.Errorf("fast client has %d frames, want 2", got)
	}
}

func TestHubLastActivity(t *testing.T) {
	hub := setupHub(t, ClientConfig{})
	start := hub.LastActivity()

	time.Sleep(5 * time.Millisecond)
	c1 := createTestClient(hub, 1)
	c2 := createTestClient(hub, 1)
	hub.Register <- c1
	hub.Register <- c2
	waitUntil(t, "registered", func() bool { return hub.ClientCount() == 2 })
	afterConnect := hub.LastActivity()
	if !afterConnect.After(start) {
		t.Error("connect did not update last activity")
	}

	time.Sleep(5 * time.Millisecond)
	hub.Unregister <- c1
	waitUntil(t, "one left", func() bool { return hub.ClientCount() == 1 })
	afterFirst := hub.LastActivity()
	if !afterFirst.After(afterConnect) {
		t.Error("disconnect with clients remaining should update last activity")
	}

	time.Sleep(5 * time.Millisecond)
	hub.Unregister <- c2
	waitUntil(t, "none left", func() bool { return hub.ClientCount() == 0 })
	if !hub.LastActivity().After(afterFirst) {
		t.Error("last disconnect should start a new idle window")
	}
}

// steppingClock returns a strictly later time on each call.
type steppingClock struct {
	n atomic.Int64
}

func (c *steppingClock) Now() time.Time {
	return time.Unix(1_700_000_000, 0).Add(time.Duration(c.n.Add(1)) * time.Second)
}

func TestHubSlowClientRemovalUpdatesActivity(t *testing.T) {
	hub := NewHub(ClientConfig{})
	hub.SetClock((&steppingClock{}).Now)
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

	slow := createTestClient(hub, 0)
	hub.Register <- slow
	waitUntil(t, "registered", func() bool { return hub.ClientCount() == 1 })
	before := hub.LastActivity()

	hub.Broadcast([]byte("1"))
	waitUntil(t, "slow client removed", func() bool { return hub.ClientCount() == 0 })
	if !hub.LastActivity().After(before) {
		t.Error("removing the last slow client should start a new idle window")
	}
}

func TestHubUnknownClientUnregisterKeepsActivity(t *testing.T) {
	hub := setupHub(t, ClientConfig{})
	before := hub.LastActivity()

	time.Sleep(5 * time.Millisecond)
	hub.Unregister <- createTestClient(hub, 1)
	// A second send only completes once the first has been handled.
	hub.Unregister <- createTestClient(hub, 1)
	if !hub.LastActivity().Equal(before) {
		t.Error("unregistering an unknown client changed last activity")
	}
}

func TestHubEnqueueAfterStopReturns(t *testing.T) {
	hub := NewHub(ClientConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	cancel()
	<-done

	tests := []struct {
		name string
		ch   chan *Client
	}{
		{"register", hub.Register},
		{"unregister", hub.Unregister},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := make(chan bool, 1)
			go func() { result <- hub.enqueue(tt.ch, createTestClient(hub, 1)) }()
			select {
			case ok := <-result:
				if ok {
					t.Error("enqueue reported success on a stopped hub")
				}
			case <-time.After(time.Second):
				t.Fatal("enqueue blocked on a stopped hub")
			}
		})
	}
}

func TestHubRestartAcceptsClients(t *testing.T) {
	hub := NewHub(ClientConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	cancel()
	<-done

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go func() { done <- hub.RunWithContext(ctx2) }()
	waitUntil(t, "hub restarted", func() bool {
		select {
		case <-hub.stopped():
			return false
		default:
			return true
		}
	})

	if !hub.enqueue(hub.Register, createTestClient(hub, 1)) {
		t.Fatal("restarted hub rejected a client")
	}
	waitUntil(t, "registered", func() bool { return hub.ClientCount() == 1 })
	cancel2()
	<-done
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(ClientConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	c := createTestClient(hub, 1)
	hub.Register <- c
	waitUntil(t, "registered", func() bool { return hub.ClientCount() == 1 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("RunWithContext returned %v", err)
	}
	if _, ok := <-c.send; ok {
		t.Error("client send channel not closed on shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Error("clients remain after shutdown")
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled: %v", got)
	}

	expired, cancel2 := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel2()
	<-expired.Done()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline: %v", got)
	}
}
