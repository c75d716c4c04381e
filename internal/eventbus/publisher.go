// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package eventbus mirrors every message the ingestion worker stores onto a
// message bus, one subject per message type. Consumers that need a push feed
// of raw controller traffic subscribe there instead of polling the store.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/agvmonitor/internal/breaker"
)

// ErrClosed is returned by PublishMessage after Close.
var ErrClosed = errors.New("eventbus: publisher is closed")

// Metadata keys set on every mirrored message.
const (
	MetaType    = "type"
	MetaRobotID = "robot_id"
	MetaCluster = "cluster"
)

// Publisher publishes stored messages through a watermill publisher guarded
// by a circuit breaker.
type Publisher struct {
	pub     message.Publisher
	cb      *gobreaker.CircuitBreaker[struct{}]
	prefix  string
	cluster string
	msgID   bool

	mu     sync.RWMutex
	closed bool
}

// New wraps pub. cluster is attached to every message as metadata.
func New(pub message.Publisher, prefix, cluster string) *Publisher {
	if prefix == "" {
		prefix = "agv"
	}
	return &Publisher{
		pub:     pub,
		cb:      breaker.New[struct{}](breaker.DefaultConfig("eventbus")),
		prefix:  prefix,
		cluster: cluster,
	}
}

// Topic returns the subject for msgType.
func (p *Publisher) Topic(msgType string) string {
	return p.prefix + "." + strings.ToLower(msgType)
}

// PublishMessage publishes one stored value. key is the robot id for
// per-robot types and empty for singletons.
func (p *Publisher) PublishMessage(ctx context.Context, msgType, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), value)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetaType, msgType)
	msg.Metadata.Set(MetaCluster, p.cluster)
	if key != "" {
		msg.Metadata.Set(MetaRobotID, key)
	}
	if p.msgID {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	topic := p.Topic(msgType)
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.pub.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the underlying publisher. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}
