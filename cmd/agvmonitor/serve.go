// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"github.com/tomtom215/agvmonitor/internal/api"
	"github.com/tomtom215/agvmonitor/internal/config"
	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/store"
	"github.com/tomtom215/agvmonitor/internal/supervisor"
	"github.com/tomtom215/agvmonitor/internal/supervisor/services"
	ws "github.com/tomtom215/agvmonitor/internal/websocket"
	"github.com/tomtom215/agvmonitor/internal/workerctl"
)

func runServe(args []string) error {
	var flags commonFlags
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := flags.load("server")
	if err != nil {
		return err
	}
	logging.Info().Str("version", version).Str("config", cfg.String()).Msg("Starting agvmonitor server")

	st := newStore(cfg)
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	pingStore(st)

	keys := store.NewKeyspace(store.ClusterTag(cfg.Controller.Host))

	hub := ws.NewHub(ws.ClientConfig{
		WriteWait:        cfg.Broadcast.WriteWait,
		HeartbeatTimeout: cfg.Broadcast.HeartbeatTimeout,
		SendBuffer:       cfg.Broadcast.SendBuffer,
	})
	broadcaster := ws.NewBroadcaster(hub, st, keys.RobotStatus(), cfg.Broadcast.Interval)

	spawner, err := workerctl.NewExecSpawner(cfg.Worker.Executable)
	if err != nil {
		return err
	}
	controller := workerctl.NewController(workerctl.ControllerConfig{
		Keyspace:    keys,
		IdleTimeout: cfg.Worker.IdleTimeout,
		StopTimeout: cfg.Worker.StopTimeout,
		KillTimeout: cfg.Worker.KillTimeout,
	}, st, spawner, workerctl.HostProcessTable{})
	reconciler := workerctl.NewReconciler(controller, hub, cfg.Worker.ReconcileInterval)
	hub.OnConnect(reconciler.Kick)

	handler := api.NewHandler(api.HandlerDeps{
		Hub:         hub,
		Snapshots:   broadcaster,
		Commands:    reconciler,
		Workers:     controller,
		Store:       st,
		Keyspace:    keys,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	router := api.NewRouter(handler, middlewareConfig(cfg))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig(cfg))
	if err != nil {
		return err
	}
	tree.AddControlService(reconciler)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(broadcaster)
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("cluster", keys.Tag()).
		Str("addr", server.Addr).
		Dur("idle_timeout", cfg.Worker.IdleTimeout).
		Msg("Services registered")

	ctx, cancel := signalContext()
	defer cancel()
	return serveTree(ctx, tree)
}

// serveTree runs tree until ctx is done or a service terminates it, then
// reports services that did not stop in time. Cancellation is not an error.
func serveTree(ctx context.Context, tree *supervisor.SupervisorTree) error {
	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	treeErr := <-errCh
	if errors.Is(treeErr, context.Canceled) {
		treeErr = nil
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if treeErr != nil {
		return treeErr
	}
	logging.Info().Msg("Application stopped gracefully")
	return nil
}

// pingStore logs whether the store is reachable. The server starts either
// way and reports the store through /api/health/ready.
func pingStore(st store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Store unreachable at startup")
		return
	}
	logging.Info().Msg("Store connected")
}

func middlewareConfig(cfg *config.Config) *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.RateLimitRequests = cfg.Server.RateLimitReqs
	mw.RateLimitWindow = cfg.Server.RateLimitWindow
	mw.RateLimitDisabled = cfg.Server.RateLimitDisabled
	if mw.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	return mw
}

// treeConfig sizes the shutdown timeout so the reconciler can finish
// stopping the worker.
func treeConfig(cfg *config.Config) supervisor.TreeConfig {
	tc := supervisor.DefaultTreeConfig()
	workerStop := cfg.Worker.StopTimeout + cfg.Worker.KillTimeout + 2*time.Second
	tc.ShutdownTimeout = max(cfg.Server.ShutdownTimeout, workerStop)
	return tc
}
