// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/workerctl"
)

// workerCommandResponse is the payload of start and stop.
type workerCommandResponse struct {
	workerctl.Result
	Message string `json:"message"`
}

var actionMessages = map[workerctl.Action]string{
	workerctl.ActionStarted:        "ingestion worker started",
	workerctl.ActionAlreadyRunning: "ingestion worker already running",
	workerctl.ActionStopped:        "ingestion worker stopped",
	workerctl.ActionNotRunning:     "no ingestion worker was running",
	workerctl.ActionNone:           "nothing to do",
}

// StartWorker handles POST /api/rcms/start_zeromq_map_update.
func (h *Handler) StartWorker(w http.ResponseWriter, r *http.Request) {
	h.runWorkerCommand(w, r, "start", h.commands.Start)
}

// StopWorker handles POST /api/rcms/stop_zeromq_map_update.
func (h *Handler) StopWorker(w http.ResponseWriter, r *http.Request) {
	h.runWorkerCommand(w, r, "stop", h.commands.Stop)
}

func (h *Handler) runWorkerCommand(w http.ResponseWriter, r *http.Request, name string,
	cmd func(ctx context.Context) (workerctl.Result, error)) {
	if h.commands == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Worker control unavailable", nil)
		return
	}

	res, err := cmd(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Worker "+name+" did not complete", err)
		return
	default:
		respondError(w, http.StatusInternalServerError, "WORKER_ERROR", "Failed to "+name+" the ingestion worker", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("command", name).
		Str("action", string(res.Action)).
		Int("pid", res.PID).
		Msg("Worker command handled")

	respondSuccess(w, workerCommandResponse{Result: res, Message: actionMessages[res.Action]})
}

// ProgramInfo handles GET /api/rcms/zeromq_program_info. A stale heartbeat is
// removed and reported as 404.
func (h *Handler) ProgramInfo(w http.ResponseWriter, r *http.Request) {
	if h.workers == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Worker control unavailable", nil)
		return
	}

	hb, err := h.workers.ProgramInfo(r.Context())
	if errors.Is(err, workerctl.ErrNoWorker) {
		respondError(w, http.StatusNotFound, "NO_WORKER", "No ingestion worker is running", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read worker heartbeat", err)
		return
	}
	respondSuccess(w, hb)
}
