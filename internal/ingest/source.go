// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
)

// FrameSource yields raw broadcast frames.
type FrameSource interface {
	// Recv blocks until a frame arrives or the source fails or is closed.
	Recv() ([]byte, error)
	// Close releases the subscription. It unblocks a pending Recv.
	Close() error
}

// ZMQSource is a ZeroMQ SUB socket connected to the controller broadcast.
type ZMQSource struct {
	sock     zmq4.Socket
	endpoint string
}

// DialZMQ connects a SUB socket to endpoint (tcp://host:port) and subscribes
// to topic; the empty topic receives everything. ctx bounds the socket's
// lifetime, not just the dial.
func DialZMQ(ctx context.Context, endpoint, topic string, retry time.Duration) (*ZMQSource, error) {
	sock := zmq4.NewSub(ctx, zmq4.WithDialerRetry(retry))
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("subscribe %s: %w", endpoint, err)
	}
	return &ZMQSource{sock: sock, endpoint: endpoint}, nil
}

// Recv returns the first frame of the next message.
func (z *ZMQSource) Recv() ([]byte, error) {
	msg, err := z.sock.Recv()
	if err != nil {
		return nil, fmt.Errorf("recv %s: %w", z.endpoint, err)
	}
	return msg.Bytes(), nil
}

// Close closes the socket.
func (z *ZMQSource) Close() error {
	return z.sock.Close()
}

// Endpoint returns the connected endpoint.
func (z *ZMQSource) Endpoint() string {
	return z.endpoint
}
