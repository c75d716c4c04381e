// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package metrics provides Prometheus metrics for the serving process and the
ingestion worker.

Collectors are registered with the default registry through promauto. The
serving process exposes them at /metrics on the API router; the worker exposes
its own at worker.metrics_addr when that is set.

# Available Metrics

Ingestion (worker process):
  - agv_frames_received_total, agv_frames_conflated_total, agv_empty_polls_total
  - agv_decode_failures_total{reason}
  - agv_messages_total{type}
  - agv_store_write_errors_total{placement}
  - agv_dispatch_panics_total
  - agv_heartbeat_writes_total{result}
  - agv_mirror_publishes_total{result}

Supervision (serving process):
  - agv_worker_state (0=stopped, 1=starting, 2=running, 3=stopping)
  - agv_worker_starts_total, agv_worker_stops_total{reason}
  - agv_worker_zombies_total

Dashboard fan-out:
  - websocket_connections, websocket_messages_sent_total,
    websocket_messages_received_total, websocket_errors_total{error_type},
    websocket_heartbeats_sent_total
  - agv_broadcast_ticks_total{result}, agv_broadcast_robots,
    agv_broadcast_duration_seconds

HTTP and resilience:
  - http_requests_total{method,endpoint,status},
    http_request_duration_seconds{method,endpoint}
  - circuit_breaker_state{name}, circuit_breaker_state_transitions_total{name,from_state,to_state}
*/
package metrics
