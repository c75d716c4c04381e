// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is the frame pushed to dashboard clients on connect and on every
// broadcast tick. Data maps robot id to the stored status record.
type Snapshot struct {
	Timestamp UnixTime                   `json:"timestamp"`
	Data      map[string]json.RawMessage `json:"data"`
}

// NewSnapshot builds a snapshot from raw store values. Values that are not
// valid JSON are skipped.
func NewSnapshot(now time.Time, raw map[string]string) Snapshot {
	data := make(map[string]json.RawMessage, len(raw))
	for id, v := range raw {
		b := []byte(v)
		if !json.Valid(b) {
			continue
		}
		data[id] = json.RawMessage(b)
	}
	return Snapshot{Timestamp: Unix(now), Data: data}
}

// ControlFrame is a small server-to-client frame such as the idle heartbeat.
type ControlFrame struct {
	Type string `json:"type"`
}

// HeartbeatFrame is sent to a client that has been silent for the idle period.
var HeartbeatFrame = ControlFrame{Type: "heartbeat"}
