// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package websocket

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/agvmonitor/internal/breaker"
	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/metrics"
	"github.com/tomtom215/agvmonitor/internal/models"
)

// HashReader reads a whole hash from the store.
type HashReader interface {
	GetAllHash(ctx context.Context, ns string) (map[string]string, error)
}

// Broadcaster periodically pushes the robot-status hash to every client.
type Broadcaster struct {
	hub      *Hub
	source   HashReader
	key      string
	interval time.Duration
	cb       *gobreaker.CircuitBreaker[map[string]string]
	now      func() time.Time
	log      zerolog.Logger
}

// NewBroadcaster creates a broadcaster reading the hash at key every
// interval (1s when zero).
func NewBroadcaster(hub *Hub, source HashReader, key string, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = time.Second
	}
	return &Broadcaster{
		hub:      hub,
		source:   source,
		key:      key,
		interval: interval,
		cb:       breaker.New[map[string]string](breaker.DefaultConfig("store-read")),
		now:      time.Now,
		log:      logging.WithComponent("broadcaster"),
	}
}

// Snapshot reads the store and encodes a snapshot envelope.
func (b *Broadcaster) Snapshot(ctx context.Context) ([]byte, error) {
	raw, err := b.read(ctx)
	if err != nil {
		return nil, err
	}
	return b.encode(raw)
}

// EmptySnapshot encodes a snapshot with no robots, sent on connect when the
// store cannot be read.
func (b *Broadcaster) EmptySnapshot() []byte {
	data, _ := b.encode(nil)
	return data
}

func (b *Broadcaster) read(ctx context.Context) (map[string]string, error) {
	return b.cb.Execute(func() (map[string]string, error) {
		return b.source.GetAllHash(ctx, b.key)
	})
}

func (b *Broadcaster) encode(raw map[string]string) ([]byte, error) {
	data, err := json.Marshal(models.NewSnapshot(b.now(), raw))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Serve implements suture.Service.
func (b *Broadcaster) Serve(ctx context.Context) error {
	b.log.Info().Dur("interval", b.interval).Str("key", b.key).Msg("Broadcaster started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (b *Broadcaster) String() string {
	return "broadcaster"
}

// tick pushes one snapshot. Ticks without clients or without robots send
// nothing; a failed read leaves clients on their last snapshot.
func (b *Broadcaster) tick(ctx context.Context) {
	if b.hub.ClientCount() == 0 {
		metrics.BroadcastTicks.WithLabelValues("no_clients").Inc()
		return
	}

	start := time.Now()
	readCtx, cancel := context.WithTimeout(ctx, b.interval)
	raw, err := b.read(readCtx)
	cancel()
	if err != nil {
		if breaker.IsOpen(err) {
			metrics.BroadcastTicks.WithLabelValues("rejected").Inc()
			return
		}
		metrics.BroadcastTicks.WithLabelValues("error").Inc()
		b.log.Warn().Err(err).Msg("Failed to read robot status")
		return
	}

	snap := models.NewSnapshot(b.now(), raw)
	if len(snap.Data) == 0 {
		metrics.BroadcastTicks.WithLabelValues("empty").Inc()
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		metrics.BroadcastTicks.WithLabelValues("error").Inc()
		b.log.Error().Err(err).Msg("Failed to encode snapshot")
		return
	}

	b.hub.Broadcast(data)
	metrics.BroadcastTicks.WithLabelValues("sent").Inc()
	metrics.BroadcastRobots.Set(float64(len(snap.Data)))
	metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
}
