// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package models defines the records shared between the ingestion worker,
// the store, the broadcaster and the HTTP API.
//
// JSON keys follow the contract the dashboard already consumes (RobotId,
// battery, status, roller_status, time ...), so field names on the wire do
// not always match the Go field names.
package models
