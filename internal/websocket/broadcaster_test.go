// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/agvmonitor/internal/models"
	"github.com/tomtom215/agvmonitor/internal/store"
)

const statusKey = "10.0.0.5-8182:ROBOT_STATUS"

type fixture struct {
	mr     *miniredis.Miniredis
	hub    *Hub
	bc     *Broadcaster
	server *httptest.Server
}

func newFixture(t *testing.T, cfg ClientConfig) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	st := store.NewRedis(store.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = st.Close() })

	hub := setupHub(t, cfg)
	bc := NewBroadcaster(hub, st, statusKey, 20*time.Millisecond)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Connect(r.Context(), conn, bc.Snapshot, bc.EmptySnapshot())
	}))
	t.Cleanup(server.Close)

	return &fixture{mr: mr, hub: hub, bc: bc, server: server}
}

// runBroadcaster runs the broadcast loop until the test ends.
func (f *fixture) runBroadcaster(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.bc.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) []byte {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

type snapshotFrame struct {
	Timestamp float64                    `json:"timestamp"`
	Data      map[string]json.RawMessage `json:"data"`
	Type      string                     `json:"type"`
}

func decodeFrame(t *testing.T, data []byte) snapshotFrame {
	t.Helper()
	var f snapshotFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return f
}

func (f *fixture) putRobot(t *testing.T, id string, battery int) {
	t.Helper()
	rs := models.RobotStatus{Type: models.TypeRobotStatus, RobotID: id, Battery: battery}
	b, err := rs.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	f.mr.HSet(statusKey, id, string(b))
}

func TestSnapshotOnConnect(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	f.putRobot(t, "1001", 80)
	f.mr.HSet(statusKey, "bad", "{not json")

	conn := f.dial(t)
	frame := decodeFrame(t, readFrame(t, conn, 2*time.Second))

	if frame.Timestamp <= 0 {
		t.Errorf("timestamp = %v", frame.Timestamp)
	}
	if _, ok := frame.Data["1001"]; !ok || len(frame.Data) != 1 {
		t.Errorf("data = %v, want only robot 1001", frame.Data)
	}
	waitUntil(t, "client registered", func() bool { return f.hub.ClientCount() == 1 })
}

func TestSnapshotOnConnectWithEmptyStore(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	conn := f.dial(t)

	frame := decodeFrame(t, readFrame(t, conn, 2*time.Second))
	if frame.Data == nil || len(frame.Data) != 0 {
		t.Errorf("data = %v, want empty object", frame.Data)
	}
}

func TestTwoClientsReceiveIdenticalEnvelopes(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	f.putRobot(t, "1", 50)
	f.putRobot(t, "2", 60)

	a := f.dial(t)
	b := f.dial(t)
	readFrame(t, a, 2*time.Second)
	readFrame(t, b, 2*time.Second)
	waitUntil(t, "both registered", func() bool { return f.hub.ClientCount() == 2 })

	f.bc.tick(context.Background())

	fa := readFrame(t, a, 2*time.Second)
	fb := readFrame(t, b, 2*time.Second)
	if string(fa) != string(fb) {
		t.Errorf("clients received different envelopes:\n%s\n%s", fa, fb)
	}
	if got := decodeFrame(t, fa); len(got.Data) != 2 {
		t.Errorf("data has %d robots, want 2", len(got.Data))
	}
}

func TestBroadcastLoopStreamsUpdates(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	f.putRobot(t, "7", 10)
	conn := f.dial(t)
	readFrame(t, conn, 2*time.Second)
	waitUntil(t, "registered", func() bool { return f.hub.ClientCount() == 1 })

	f.runBroadcaster(t)
	f.putRobot(t, "7", 99)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := decodeFrame(t, readFrame(t, conn, 2*time.Second))
		var rs models.RobotStatus
		if err := json.Unmarshal(frame.Data["7"], &rs); err != nil {
			t.Fatal(err)
		}
		if rs.Battery == 99 {
			return
		}
	}
	t.Fatal("update never reached the client")
}

func TestTickSkipsEmptyData(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	conn := f.dial(t)
	readFrame(t, conn, 2*time.Second)
	waitUntil(t, "registered", func() bool { return f.hub.ClientCount() == 1 })

	f.bc.tick(context.Background())

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Errorf("expected no frame for empty data, got %s", data)
	}
}

func TestHeartbeatFrameOnSilence(t *testing.T) {
	f := newFixture(t, ClientConfig{HeartbeatTimeout: 50 * time.Millisecond})
	conn := f.dial(t)
	readFrame(t, conn, 2*time.Second)

	frame := decodeFrame(t, readFrame(t, conn, 2*time.Second))
	if frame.Type != "heartbeat" {
		t.Errorf("expected heartbeat frame, got %+v", frame)
	}

	// The connection stays open after a heartbeat.
	frame = decodeFrame(t, readFrame(t, conn, 2*time.Second))
	if frame.Type != "heartbeat" {
		t.Errorf("expected second heartbeat frame, got %+v", frame)
	}
	if f.hub.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", f.hub.ClientCount())
	}
}

func TestPingIsAnsweredAndCountsAsActivity(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	conn := f.dial(t)
	readFrame(t, conn, 2*time.Second)
	waitUntil(t, "registered", func() bool { return f.hub.ClientCount() == 1 })
	before := f.hub.LastActivity()

	time.Sleep(5 * time.Millisecond)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	frame := decodeFrame(t, readFrame(t, conn, 2*time.Second))
	if frame.Type != "pong" {
		t.Errorf("expected pong, got %+v", frame)
	}
	if !f.hub.LastActivity().After(before) {
		t.Error("inbound frame did not update last activity")
	}
}

func TestDisconnectRemovesClient(t *testing.T) {
	f := newFixture(t, ClientConfig{})
	conn := f.dial(t)
	readFrame(t, conn, 2*time.Second)
	waitUntil(t, "registered", func() bool { return f.hub.ClientCount() == 1 })

	_ = conn.Close()
	waitUntil(t, "client removed", func() bool { return f.hub.ClientCount() == 0 })
}

type failingReader struct{ calls int }

func (r *failingReader) GetAllHash(context.Context, string) (map[string]string, error) {
	r.calls++
	return nil, errors.New("connection refused")
}

func TestBreakerStopsReadsWhileStoreIsDown(t *testing.T) {
	hub := setupHub(t, ClientConfig{})
	c := createTestClient(hub, 4)
	hub.Register <- c
	waitUntil(t, "registered", func() bool { return hub.ClientCount() == 1 })

	reader := &failingReader{}
	bc := NewBroadcaster(hub, reader, statusKey, 10*time.Millisecond)
	for i := 0; i < 20; i++ {
		bc.tick(context.Background())
	}

	if reader.calls != 5 {
		t.Errorf("store read %d times, want 5 before the breaker opens", reader.calls)
	}
	if len(c.send) != 0 {
		t.Error("client received a frame although the store is down")
	}
}

func TestNoReadsWithoutClients(t *testing.T) {
	hub := setupHub(t, ClientConfig{})
	reader := &failingReader{}
	bc := NewBroadcaster(hub, reader, statusKey, 10*time.Millisecond)
	bc.tick(context.Background())
	if reader.calls != 0 {
		t.Errorf("store read %d times with no clients", reader.calls)
	}
}
