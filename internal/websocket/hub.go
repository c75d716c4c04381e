// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub owns the set of connected dashboard clients and the global
// last-activity time. Only the RunWithContext goroutine mutates the set.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// done is closed when RunWithContext returns and replaced when it runs
	// again. Guarded by mu.
	done chan struct{}

	cfg          ClientConfig
	now          func() time.Time
	lastActivity atomic.Int64
	onConnect    func()
	log          zerolog.Logger
}

// NewHub creates a hub. Clients created for it use cfg.
func NewHub(cfg ClientConfig) *Hub {
	h := &Hub{
		broadcast:  make(chan []byte, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		log:        logging.WithComponent("websocket-hub"),
	}
	h.Touch()
	return h
}

// OnConnect sets a callback run after each client registers. It must not
// block; the reconciler's Kick is the intended use. Call before RunWithContext.
func (h *Hub) OnConnect(fn func()) {
	h.onConnect = fn
}

// SetClock replaces the clock used for activity timestamps. Call before
// RunWithContext.
func (h *Hub) SetClock(now func() time.Time) {
	h.now = now
	h.Touch()
}

// Touch records client activity now.
func (h *Hub) Touch() {
	h.lastActivity.Store(h.now().UnixNano())
}

// LastActivity returns the time of the last connect, disconnect or inbound
// client message.
func (h *Hub) LastActivity() time.Time {
	return time.Unix(0, h.lastActivity.Load())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// RunWithContext runs the hub until ctx is done, then closes every client.
//
// Lifecycle events are handled before broadcasts so that a client that just
// registered receives the next tick and a removed client receives nothing.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	select {
	case <-h.done:
		h.done = make(chan struct{})
	default:
	}
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case data := <-h.broadcast:
			h.broadcastToClients(data)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.Touch()
	metrics.WSConnections.Set(float64(total))
	h.log.Info().Str("client_id", client.connID).Int("total_clients", total).Msg("websocket client connected")

	if h.onConnect != nil {
		h.onConnect()
	}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, removed := h.clients[client]
	if removed {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !removed {
		return
	}
	// The idle window starts at the last disconnect.
	h.Touch()
	metrics.WSConnections.Set(float64(total))
	h.log.Info().Str("client_id", client.connID).Int("total_clients", total).Msg("websocket client disconnected")
}

// stopped returns a channel closed once the current run has exited.
func (h *Hub) stopped() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// enqueue hands client to the run loop on ch. It reports false if the hub
// has stopped.
func (h *Hub) enqueue(ch chan<- *Client, client *Client) bool {
	select {
	case ch <- client:
		return true
	case <-h.stopped():
		return false
	}
}

// SnapshotFunc builds the frame a client receives right after connecting.
type SnapshotFunc func(ctx context.Context) ([]byte, error)

// Connect wraps an upgraded connection in a client, queues the current
// snapshot as its first frame, registers it and starts its pumps. If the
// snapshot fails the client gets fallback instead. If the hub has stopped
// the connection is closed and Connect returns nil.
func (h *Hub) Connect(ctx context.Context, conn *websocket.Conn, snapshot SnapshotFunc, fallback []byte) *Client {
	client := NewClient(h, conn)

	first, err := snapshot(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("client_id", client.connID).Msg("initial snapshot unavailable")
		first = fallback
	}
	if first != nil {
		client.Queue(first)
	}

	if !h.enqueue(h.Register, client) {
		_ = conn.Close()
		return nil
	}
	client.Start()
	return client
}

// Broadcast queues data for every connected client. It drops the frame if
// the hub is behind, since the next tick supersedes it.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_dropped").Inc()
		h.log.Warn().Msg("broadcast channel full, dropping frame")
	}
}

// broadcastToClients sends data to all clients in id order. A client whose
// send buffer is full is removed; the others are unaffected.
func (h *Hub) broadcastToClients(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		h.log.Warn().Str("client_id", client.connID).Msg("removed websocket client with full send buffer")
	}
	if len(toRemove) > 0 {
		h.Touch()
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// closeAllClients closes every client's send channel, which makes its write
// pump send a close frame and exit.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	h.mu.Lock()
	close(h.done)
	h.mu.Unlock()

	h.log.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
