// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_frames_received_total",
			Help: "Total number of frames received from the controller broadcast",
		},
	)

	FramesConflated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_frames_conflated_total",
			Help: "Frames replaced by a newer frame before they were dispatched",
		},
	)

	EmptyPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_empty_polls_total",
			Help: "Receive timeouts with no frame available",
		},
	)

	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_decode_failures_total",
			Help: "Frames dropped because they could not be decoded",
		},
		[]string{"reason"},
	)

	MessagesByType = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_messages_total",
			Help: "Decoded messages by controller message type",
		},
		[]string{"type"},
	)

	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_store_write_errors_total",
			Help: "Failed store writes by placement",
		},
		[]string{"placement"}, // "hash", "singleton"
	)

	DispatchPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_dispatch_panics_total",
			Help: "Panics recovered in the message dispatch path",
		},
	)

	HeartbeatWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_heartbeat_writes_total",
			Help: "Worker heartbeat refreshes",
		},
		[]string{"result"},
	)

	MirrorPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_mirror_publishes_total",
			Help: "Decoded messages mirrored to the event bus",
		},
		[]string{"result"},
	)

	// Supervision Metrics
	WorkerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agv_worker_state",
			Help: "Ingestion worker state (0=stopped, 1=starting, 2=running, 3=stopping, 4=zombie)",
		},
	)

	WorkerStarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_worker_starts_total",
			Help: "Ingestion worker processes spawned",
		},
	)

	WorkerStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_worker_stops_total",
			Help: "Ingestion worker stops by reason",
		},
		[]string{"reason"}, // "idle", "admin", "shutdown"
	)

	WorkerZombies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_worker_zombies_total",
			Help: "Heartbeats found without a live process and cleaned up",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSHeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_heartbeats_sent_total",
			Help: "Heartbeat frames sent to idle clients",
		},
	)

	// Broadcast Metrics
	BroadcastTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_broadcast_ticks_total",
			Help: "Broadcast ticks by outcome",
		},
		[]string{"result"}, // "sent", "empty", "no_clients", "error", "rejected"
	)

	BroadcastRobots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agv_broadcast_robots",
			Help: "Robots included in the last broadcast snapshot",
		},
	)

	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agv_broadcast_duration_seconds",
			Help:    "Time to read the store and build one snapshot",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version", "role"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a breaker state change. state is
// the numeric value of the new state.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// SetAppInfo publishes build information for the given process role.
func SetAppInfo(version, role string) {
	AppInfo.WithLabelValues(version, runtime.Version(), role).Set(1)
}

// Result returns "success" or "error" for a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
