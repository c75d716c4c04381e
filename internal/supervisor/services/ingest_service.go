// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package services

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/agvmonitor/internal/ingest"
	"github.com/tomtom215/agvmonitor/internal/logging"
)

// Runner is satisfied by *ingest.Worker.
type Runner interface {
	Run(ctx context.Context) error
}

// IngestService runs the ingestion worker under a supervisor.
type IngestService struct {
	worker         Runner
	alreadyRunning atomic.Bool
	log            zerolog.Logger
}

// NewIngestService creates the service.
func NewIngestService(worker Runner) *IngestService {
	return &IngestService{
		worker: worker,
		log:    logging.WithComponent("ingest"),
	}
}

// AlreadyRunning reports whether the tree was terminated because another
// worker holds the heartbeat.
func (s *IngestService) AlreadyRunning() bool {
	return s.alreadyRunning.Load()
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	err := s.worker.Run(ctx)
	switch {
	case errors.Is(err, ingest.ErrAlreadyRunning):
		s.alreadyRunning.Store(true)
		return suture.ErrTerminateSupervisorTree
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil:
		// Run only returns nil when its context ends.
		return suture.ErrTerminateSupervisorTree
	default:
		s.log.Error().Err(err).Msg("Ingestion worker failed")
		return err
	}
}

// String implements fmt.Stringer for suture logs.
func (s *IngestService) String() string {
	return "ingest-worker"
}
