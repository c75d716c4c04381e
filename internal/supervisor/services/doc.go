// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package services adapts components whose lifecycle is not already
Serve(ctx) to suture.Service.

HTTPServerService:
  - Wraps *http.Server: ListenAndServe in a goroutine, Shutdown with a
    timeout when the context ends
  - http.ErrServerClosed is not an error

IngestService:
  - Wraps the ingestion worker of the worker process
  - A worker that finds another live heartbeat terminates the whole tree
    (suture.ErrTerminateSupervisorTree) instead of being restarted
  - Other failures, such as the store being unreachable when the heartbeat
    is claimed, are returned and restarted with suture's backoff

The hub, broadcaster and reconciler implement suture.Service themselves and
need no wrapper.
*/
package services
