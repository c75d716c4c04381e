// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/models"
	"github.com/tomtom215/agvmonitor/internal/store"
	ws "github.com/tomtom215/agvmonitor/internal/websocket"
	"github.com/tomtom215/agvmonitor/internal/workerctl"
)

// WorkerCommander runs administrative worker commands. Satisfied by
// *workerctl.Reconciler.
type WorkerCommander interface {
	Start(ctx context.Context) (workerctl.Result, error)
	Stop(ctx context.Context) (workerctl.Result, error)
}

// WorkerInspector reads worker status. Satisfied by *workerctl.Controller.
type WorkerInspector interface {
	ProgramInfo(ctx context.Context) (*models.Heartbeat, error)
	State() workerctl.State
}

// Snapshotter builds dashboard frames. Satisfied by *websocket.Broadcaster.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
	EmptySnapshot() []byte
}

// HandlerDeps are the collaborators of a Handler.
type HandlerDeps struct {
	Hub         *ws.Hub
	Snapshots   Snapshotter
	Commands    WorkerCommander
	Workers     WorkerInspector
	Store       store.Store
	Keyspace    store.Keyspace
	CORSOrigins []string
}

// Handler serves every route of the router.
type Handler struct {
	hub         *ws.Hub
	snapshots   Snapshotter
	commands    WorkerCommander
	workers     WorkerInspector
	store       store.Store
	keys        store.Keyspace
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates a handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		hub:         deps.Hub,
		snapshots:   deps.Snapshots,
		commands:    deps.Commands,
		workers:     deps.Workers,
		store:       deps.Store,
		keys:        deps.Keyspace,
		corsOrigins: deps.CORSOrigins,
		startTime:   time.Now(),
	}
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
}

// checkWebSocketOrigin accepts configured origins. A request without an
// Origin header is accepted only when "*" is configured.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	for _, allowed := range h.corsOrigins {
		if allowed == "*" {
			return true
		}
		if origin != "" && allowed == origin {
			return true
		}
	}

	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
	} else {
		logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	}
	return false
}
