// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/agvmonitor/internal/models"
)

// HealthLive reports that the process is serving HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 only when the store answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeConnected := h.store != nil && h.store.Ping(ctx) == nil

	data := map[string]interface{}{
		"store_connected": storeConnected,
		"uptime":          time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		data["clients"] = h.hub.ClientCount()
	}
	if h.workers != nil {
		data["worker_state"] = h.workers.State().String()
	}

	statusCode := http.StatusOK
	status := "ready"
	if !storeConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status:   status,
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
