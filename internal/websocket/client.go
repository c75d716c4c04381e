// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package websocket

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/agvmonitor/internal/metrics"
	"github.com/tomtom215/agvmonitor/internal/models"
)

// ClientConfig holds per-connection timings.
type ClientConfig struct {
	// WriteWait bounds each write to the peer.
	WriteWait time.Duration
	// PongWait is how long the peer may go without answering pings.
	PongWait time.Duration
	// HeartbeatTimeout is how long the peer may stay silent before the
	// server sends a heartbeat frame.
	HeartbeatTimeout time.Duration
	// SendBuffer is the number of queued frames before the client is dropped.
	SendBuffer int
	// MaxMessageSize limits inbound frames.
	MaxMessageSize int64
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 30 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	return c
}

func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

var (
	heartbeatFrame, _ = json.Marshal(models.HeartbeatFrame)
	pongFrame, _      = json.Marshal(models.ControlFrame{Type: "pong"})
	pingType          = []byte(`"ping"`)
)

// clientIDCounter orders clients for broadcast.
var clientIDCounter atomic.Uint64

// Client is one dashboard connection. The hub writes frames to send; the
// client's own pumps own the connection.
type Client struct {
	id     uint64
	connID string
	hub    *Hub
	conn   *websocket.Conn
	cfg    ClientConfig

	send     chan []byte
	control  chan []byte
	activity chan struct{}
}

// NewClient creates a client for conn using the hub's settings.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		connID:   uuid.NewString(),
		hub:      hub,
		conn:     conn,
		cfg:      hub.cfg,
		send:     make(chan []byte, hub.cfg.SendBuffer),
		control:  make(chan []byte, 1),
		activity: make(chan struct{}, 1),
	}
}

// ID returns the broadcast ordering id.
func (c *Client) ID() uint64 {
	return c.id
}

// ConnID returns the connection id used in logs.
func (c *Client) ConnID() string {
	return c.connID
}

// Queue enqueues a frame before the client is registered, such as the
// initial snapshot. It reports false if the buffer is full.
func (c *Client) Queue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump reads until the connection fails. Any inbound frame counts as
// activity; a {"type":"ping"} frame is answered with a pong.
func (c *Client) readPump() {
	defer func() {
		c.hub.enqueue(c.hub.Unregister, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.hub.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				c.hub.log.Debug().Err(err).Str("client_id", c.connID).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()
		c.hub.Touch()
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		select {
		case c.activity <- struct{}{}:
		default:
		}

		if isPing(data) {
			select {
			case c.control <- pongFrame:
			default:
			}
		}
	}
}

func isPing(data []byte) bool {
	var msg struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	return bytes.Equal(msg.Type, pingType)
}

// writePump writes hub frames, answers pings, and sends a heartbeat frame
// whenever the peer has been silent for HeartbeatTimeout.
func (c *Client) writePump() {
	ping := time.NewTicker(c.cfg.pingPeriod())
	idle := time.NewTimer(c.cfg.HeartbeatTimeout)
	defer func() {
		ping.Stop()
		idle.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.writeText(data) {
				return
			}
			metrics.WSMessagesSent.Inc()

		case data := <-c.control:
			if !c.writeText(data) {
				return
			}

		case <-c.activity:
			resetTimer(idle, c.cfg.HeartbeatTimeout)

		case <-idle.C:
			if !c.writeText(heartbeatFrame) {
				return
			}
			metrics.WSHeartbeatsSent.Inc()
			idle.Reset(c.cfg.HeartbeatTimeout)

		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WSErrors.WithLabelValues("ping").Inc()
				return
			}
		}
	}
}

func (c *Client) writeText(data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		metrics.WSErrors.WithLabelValues("write").Inc()
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.WSErrors.WithLabelValues("write").Inc()
		c.hub.log.Debug().Err(err).Str("client_id", c.connID).Msg("websocket write failed")
		return false
	}
	return true
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// Start runs the client's pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
