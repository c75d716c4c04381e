// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package api serves the dashboard WebSocket and the administrative HTTP
endpoints of the serving process.

Routes:

	GET    /ws/robot-status                       dashboard stream
	POST   /api/rcms/start_zeromq_map_update      start the ingestion worker
	POST   /api/rcms/stop_zeromq_map_update       stop the ingestion worker
	GET    /api/rcms/zeromq_program_info          worker heartbeat
	GET    /api/robots/status                     every stored robot status
	GET    /api/robots/{id}/status                one robot status
	DELETE /api/robots/{id}/status                remove one robot status
	GET    /api/health/live                       liveness probe
	GET    /api/health/ready                      readiness probe (store ping)
	GET    /metrics                               Prometheus metrics

Start and stop requests are handed to the worker reconciler, so they are
serialized with the idle-timeout control loop. Every JSON response uses the
models.APIResponse wrapper.
*/
package api
