// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/models"
	"github.com/tomtom215/agvmonitor/internal/store"
)

// RobotStatuses handles GET /api/robots/status and returns the same
// envelope the dashboard stream carries.
func (h *Handler) RobotStatuses(w http.ResponseWriter, r *http.Request) {
	raw, err := h.store.GetAllHash(r.Context(), h.keys.RobotStatus())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read robot status", err)
		return
	}
	respondSuccess(w, models.NewSnapshot(time.Now(), raw))
}

// RobotStatus handles GET /api/robots/{id}/status.
func (h *Handler) RobotStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if apiErr := validateRobotID(id); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	value, err := h.store.GetHashField(r.Context(), h.keys.RobotStatus(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Robot has no stored status", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read robot status", err)
		return
	}
	if !json.Valid(value) {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Stored robot status is not valid JSON", nil)
		return
	}
	respondSuccess(w, json.RawMessage(value))
}

// DeleteRobotStatus handles DELETE /api/robots/{id}/status. Deleting an
// absent robot succeeds with removed = 0.
func (h *Handler) DeleteRobotStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if apiErr := validateRobotID(id); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	removed, err := h.store.DeleteField(r.Context(), h.keys.RobotStatus(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to remove robot status", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("robot_id", id).Int64("removed", removed).Msg("Robot status removed")
	respondSuccess(w, models.RobotRemoval{RobotID: id, Removed: removed})
}
