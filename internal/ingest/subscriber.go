// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/metrics"
	"github.com/tomtom215/agvmonitor/internal/telemetry"
)

// Dispatcher handles one decoded message.
type Dispatcher func(ctx context.Context, msg telemetry.Message)

// SubscriberConfig tunes the receive loop.
type SubscriberConfig struct {
	// RecvTimeout bounds each wait for a frame. A timeout is an empty poll.
	RecvTimeout time.Duration
	// PollInterval is the pause after each dispatched frame. Zero disables it.
	PollInterval time.Duration
}

// Subscriber reads frames from a FrameSource, keeps only the newest
// undispatched frame, decodes it and hands it to a Dispatcher.
type Subscriber struct {
	source  FrameSource
	decoder *telemetry.Decoder
	cfg     SubscriberConfig
	log     zerolog.Logger
	decLog  *logging.Throttled
}

// NewSubscriber creates a subscriber over source.
func NewSubscriber(source FrameSource, decoder *telemetry.Decoder, cfg SubscriberConfig) *Subscriber {
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = 200 * time.Millisecond
	}
	log := logging.WithComponent("subscriber")
	return &Subscriber{
		source:  source,
		decoder: decoder,
		cfg:     cfg,
		log:     log,
		decLog:  logging.NewThrottled(log, 5*time.Second),
	}
}

// Run loops until ctx is done or the source fails. It returns nil on
// cancellation and the source error otherwise. The source is not closed.
func (s *Subscriber) Run(ctx context.Context, dispatch Dispatcher) error {
	mailbox := make(chan []byte, 1)
	recvErr := make(chan error, 1)
	go s.pump(mailbox, recvErr)

	timer := time.NewTimer(s.cfg.RecvTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-recvErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case frame := <-mailbox:
			s.handle(ctx, frame, dispatch)
			if s.cfg.PollInterval > 0 && !sleepCtx(ctx, s.cfg.PollInterval) {
				return nil
			}
		case <-timer.C:
			metrics.EmptyPolls.Inc()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.cfg.RecvTimeout)
	}
}

// pump receives frames and conflates them into a one-slot mailbox: a frame
// that has not been picked up yet is replaced by the newer one.
func (s *Subscriber) pump(mailbox chan []byte, recvErr chan<- error) {
	for {
		frame, err := s.source.Recv()
		if err != nil {
			recvErr <- err
			return
		}
		metrics.FramesReceived.Inc()

		select {
		case mailbox <- frame:
			continue
		default:
		}
		select {
		case <-mailbox:
			metrics.FramesConflated.Inc()
		default:
		}
		select {
		case mailbox <- frame:
		default:
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, frame []byte, dispatch Dispatcher) {
	msg, err := s.decoder.Decode(frame)
	if err != nil {
		reason := "other"
		var de *telemetry.DecodeError
		if errors.As(err, &de) {
			reason = de.Reason()
		}
		metrics.DecodeFailures.WithLabelValues(reason).Inc()
		s.decLog.Do(func(l *zerolog.Logger, suppressed int64) {
			l.Warn().Err(err).Str("reason", reason).Int64("suppressed", suppressed).Msg("Dropped undecodable frame")
		})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchPanics.Inc()
			s.log.Error().
				Str("type", msg.MessageType()).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered panic in message dispatch")
		}
	}()
	dispatch(ctx, msg)
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
