// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package models

import (
	"time"
)

// APIResponse is the wrapper returned by every administrative HTTP endpoint.
//
// Status is "success" or "error"; Error is set only for errors.
//
//	{
//	  "status": "success",
//	  "data": {"action": "started", "pid": 4242},
//	  "metadata": {"timestamp": "2026-01-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries the server time of the response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable code with a human-readable message.
//
// Codes used: VALIDATION_ERROR, NOT_FOUND, NO_WORKER, WORKER_ERROR,
// STORE_ERROR, RATE_LIMIT_EXCEEDED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RobotRemoval reports how many status records a delete removed.
type RobotRemoval struct {
	RobotID string `json:"robot_id"`
	Removed int64  `json:"removed"`
}
