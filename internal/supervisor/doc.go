// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package supervisor runs the long-lived services of a process under suture v4.

The serving process uses three layers:

	RootSupervisor ("agvmonitor")
	├── ControlSupervisor ("control-layer")
	│   └── workerctl.Reconciler
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket.Hub
	│   └── websocket.Broadcaster
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

The worker process adds a single services.IngestService to the control
layer.

A crash in one layer restarts only that layer's services. The reconciler
sits in its own layer so that a restarting hub or HTTP server never stops the
ingestion worker, and its shutdown path (stopping the worker) runs when the
tree is canceled.

Supervisor events are logged through sutureslog with an slog logger backed
by the zerolog sink (logging.NewComponentSlogLogger("supervisor")).

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewComponentSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddControlService(reconciler)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(broadcaster)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
