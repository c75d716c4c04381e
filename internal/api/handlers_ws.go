// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package api

import (
	"net/http"

	"github.com/tomtom215/agvmonitor/internal/logging"
)

// RobotStatusStream upgrades the request and attaches the connection to the
// hub. The client receives the current snapshot first.
func (h *Handler) RobotStatusStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || h.snapshots == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	// r.Context bounds only the initial snapshot read.
	h.hub.Connect(r.Context(), conn, h.snapshots.Snapshot, h.snapshots.EmptySnapshot())
}
