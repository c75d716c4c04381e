// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package ingest is the ingestion worker: it subscribes to the controller
// broadcast, decodes frames, writes the latest values to the store and keeps
// the program_info heartbeat alive.
//
// The worker runs in its own OS process (agvmonitor worker) and talks to the
// serving process only through the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/metrics"
	"github.com/tomtom215/agvmonitor/internal/models"
	"github.com/tomtom215/agvmonitor/internal/store"
	"github.com/tomtom215/agvmonitor/internal/telemetry"
)

// ErrAlreadyRunning is returned when a heartbeat for the cluster already exists.
var ErrAlreadyRunning = errors.New("ingest: a worker is already running for this cluster")

// Mirror receives every stored message in addition to the store.
type Mirror interface {
	PublishMessage(ctx context.Context, msgType, key string, value []byte) error
}

// DialFunc opens a new frame source.
type DialFunc func(ctx context.Context) (FrameSource, error)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Keyspace          store.Keyspace
	HeartbeatInterval time.Duration
	HeartbeatTTL      time.Duration
	RedialBackoff     time.Duration
	Subscriber        SubscriberConfig
}

// Worker owns one subscription and its heartbeat.
type Worker struct {
	cfg      WorkerConfig
	store    store.Store
	decoder  *telemetry.Decoder
	dial     DialFunc
	mirror   Mirror
	tally    *Tally
	log      zerolog.Logger
	writeLog *logging.Throttled

	pid     int
	started time.Time
	now     func() time.Time
}

// NewWorker creates a worker. mirror may be nil.
func NewWorker(cfg WorkerConfig, st store.Store, decoder *telemetry.Decoder, dial DialFunc, mirror Mirror) *Worker {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 2 * time.Second
	}
	if cfg.HeartbeatTTL <= 0 {
		cfg.HeartbeatTTL = 3 * time.Second
	}
	if cfg.RedialBackoff <= 0 {
		cfg.RedialBackoff = time.Second
	}
	log := logging.WithComponent("ingest")
	return &Worker{
		cfg:      cfg,
		store:    st,
		decoder:  decoder,
		dial:     dial,
		mirror:   mirror,
		tally:    NewTally(),
		log:      log,
		writeLog: logging.NewThrottled(log, 5*time.Second),
		pid:      os.Getpid(),
		now:      time.Now,
	}
}

// Tally returns the per-type message counts.
func (w *Worker) Tally() *Tally {
	return w.tally
}

// Run claims the heartbeat, then subscribes until ctx is done. It returns
// ErrAlreadyRunning without subscribing if another worker holds the
// heartbeat. On return the worker removes its own heartbeat.
func (w *Worker) Run(ctx context.Context) error {
	w.started = w.now()
	claimed, err := w.claimHeartbeat(ctx)
	if err != nil {
		return err
	}
	if !claimed {
		existing := w.existingPID(ctx)
		w.log.Warn().Int("existing_pid", existing).Msg("Another worker holds the heartbeat, exiting")
		return ErrAlreadyRunning
	}

	w.log.Info().
		Int("pid", w.pid).
		Str("cluster", w.cfg.Keyspace.Tag()).
		Msg("Ingestion worker started")

	var wg sync.WaitGroup
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatLoop(hbCtx)
	}()

	runErr := w.subscribeLoop(ctx)

	stopHeartbeat()
	wg.Wait()
	w.releaseHeartbeat()

	w.log.Info().Int64("messages", w.tally.Total()).Msg("Ingestion worker stopped")
	return runErr
}

// subscribeLoop dials, runs a subscriber, and redials after source failures.
func (w *Worker) subscribeLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		src, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Dur("backoff", w.cfg.RedialBackoff).Msg("Failed to connect to controller broadcast")
			if !sleepCtx(ctx, w.cfg.RedialBackoff) {
				return nil
			}
			continue
		}

		sub := NewSubscriber(src, w.decoder, w.cfg.Subscriber)
		err = sub.Run(ctx, w.Dispatch)
		_ = src.Close()
		if err != nil {
			w.log.Warn().Err(err).Msg("Subscription failed, reconnecting")
			if !sleepCtx(ctx, w.cfg.RedialBackoff) {
				return nil
			}
		}
	}
	return nil
}

// Dispatch stores one decoded message according to its type.
func (w *Worker) Dispatch(ctx context.Context, msg telemetry.Message) {
	msgType := msg.MessageType()
	w.tally.Inc(msgType)
	metrics.MessagesByType.WithLabelValues(msgType).Inc()

	placement := store.PlacementFor(msgType)
	if placement == store.PlacementNone {
		return
	}

	value, err := msg.Value()
	if err != nil {
		w.log.Error().Err(err).Str("type", msgType).Msg("Failed to encode message")
		return
	}

	key := w.cfg.Keyspace.Key(msgType)
	switch placement {
	case store.PlacementHash:
		err = w.store.SetHash(ctx, key, msg.Key(), value)
		if err != nil {
			metrics.StoreWriteErrors.WithLabelValues("hash").Inc()
		}
	case store.PlacementSingleton:
		err = w.store.Set(ctx, key, value, 0)
		if err != nil {
			metrics.StoreWriteErrors.WithLabelValues("singleton").Inc()
		}
	}
	if err != nil {
		w.writeLog.Do(func(l *zerolog.Logger, suppressed int64) {
			l.Error().Err(err).Str("type", msgType).Int64("suppressed", suppressed).Msg("Store write failed")
		})
		return
	}

	if w.mirror != nil {
		perr := w.mirror.PublishMessage(ctx, msgType, msg.Key(), value)
		metrics.MirrorPublishes.WithLabelValues(metrics.Result(perr)).Inc()
	}
}

func (w *Worker) heartbeat() ([]byte, error) {
	hb := models.Heartbeat{
		PID:           w.pid,
		StartTime:     models.LocalTime{Time: w.started},
		LastUpdate:    models.LocalTime{Time: w.now()},
		MessageCounts: w.tally.Snapshot(),
	}
	b, err := json.Marshal(hb)
	if err != nil {
		return nil, fmt.Errorf("encode heartbeat: %w", err)
	}
	return b, nil
}

func (w *Worker) claimHeartbeat(ctx context.Context) (bool, error) {
	b, err := w.heartbeat()
	if err != nil {
		return false, err
	}
	ok, err := w.store.SetIfAbsent(ctx, w.cfg.Keyspace.ProgramInfo(), b, w.cfg.HeartbeatTTL)
	if err != nil {
		return false, fmt.Errorf("claim heartbeat: %w", err)
	}
	metrics.HeartbeatWrites.WithLabelValues("success").Inc()
	return ok, nil
}

func (w *Worker) existingPID(ctx context.Context) int {
	raw, err := w.store.Get(ctx, w.cfg.Keyspace.ProgramInfo())
	if err != nil {
		return 0
	}
	hb, err := models.ParseHeartbeat(raw)
	if err != nil {
		return 0
	}
	return hb.PID
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.refreshHeartbeat(ctx)
			metrics.HeartbeatWrites.WithLabelValues(metrics.Result(err)).Inc()
			if err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Failed to refresh heartbeat")
			}
		}
	}
}

func (w *Worker) refreshHeartbeat(ctx context.Context) error {
	b, err := w.heartbeat()
	if err != nil {
		return err
	}
	return w.store.Set(ctx, w.cfg.Keyspace.ProgramInfo(), b, w.cfg.HeartbeatTTL)
}

// releaseHeartbeat deletes the heartbeat if it is still ours.
func (w *Worker) releaseHeartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if pid := w.existingPID(ctx); pid != 0 && pid != w.pid {
		return
	}
	if _, err := w.store.Delete(ctx, w.cfg.Keyspace.ProgramInfo()); err != nil {
		w.log.Warn().Err(err).Msg("Failed to remove heartbeat on exit")
	}
}
