// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package main

import (
	"context"
	"errors"

	"github.com/spf13/pflag"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/agvmonitor/internal/codes"
	"github.com/tomtom215/agvmonitor/internal/config"
	"github.com/tomtom215/agvmonitor/internal/eventbus"
	"github.com/tomtom215/agvmonitor/internal/ingest"
	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/store"
	"github.com/tomtom215/agvmonitor/internal/supervisor"
	"github.com/tomtom215/agvmonitor/internal/supervisor/services"
	"github.com/tomtom215/agvmonitor/internal/telemetry"
)

func runWorker(args []string) error {
	var flags commonFlags
	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	flags.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := flags.load("worker")
	if err != nil {
		return err
	}

	tables, err := codes.Load(cfg.Codes.StatusPath, cfg.Codes.AlarmPath)
	if err != nil {
		return err
	}
	decoder := telemetry.NewDecoder(tables)

	st := newStore(cfg)
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	keys := store.NewKeyspace(store.ClusterTag(cfg.Controller.Host))

	var mirror ingest.Mirror
	if cfg.Events.Enabled {
		pub, err := eventbus.NewNATS(eventbusConfig(cfg), keys.Tag())
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing message mirror")
			}
		}()
		mirror = pub
	}

	endpoint := cfg.Controller.SubscribeEndpoint()
	dial := func(ctx context.Context) (ingest.FrameSource, error) {
		src, err := ingest.DialZMQ(ctx, endpoint, cfg.Controller.Topic, cfg.Worker.RedialBackoff)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	worker := ingest.NewWorker(ingest.WorkerConfig{
		Keyspace:          keys,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		HeartbeatTTL:      cfg.Worker.HeartbeatTTL,
		RedialBackoff:     cfg.Worker.RedialBackoff,
		Subscriber: ingest.SubscriberConfig{
			RecvTimeout:  cfg.Worker.RecvTimeout,
			PollInterval: cfg.Worker.PollInterval,
		},
	}, st, decoder, dial, mirror)
	svc := services.NewIngestService(worker)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddMessagingService(svc)

	logging.Info().
		Str("cluster", keys.Tag()).
		Str("endpoint", endpoint).
		Int("control_port", cfg.Controller.ControlPort).
		Str("topic", cfg.Controller.Topic).
		Bool("mirror", mirror != nil).
		Msg("Starting ingestion worker")

	ctx, cancel := signalContext()
	defer cancel()

	err = serveTree(ctx, tree)
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		if svc.AlreadyRunning() {
			logging.Info().Msg("Another worker is already running for this cluster")
		}
		return nil
	}
	return err
}

func eventbusConfig(cfg *config.Config) eventbus.Config {
	ec := eventbus.DefaultConfig()
	ec.URL = cfg.Events.URL
	ec.SubjectPrefix = cfg.Events.SubjectPrefix
	ec.JetStream = cfg.Events.JetStream
	ec.TrackMsgID = cfg.Events.JetStream
	ec.MaxReconnects = cfg.Events.MaxReconnects
	if cfg.Events.ReconnectWait > 0 {
		ec.ReconnectWait = cfg.Events.ReconnectWait
	}
	return ec
}
