// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// HeartbeatTimeLayout is the wall-clock format of heartbeat timestamps.
const HeartbeatTimeLayout = "2006-01-02 15:04:05"

// Heartbeat is the program_info record a live worker refreshes on a short TTL.
// Its absence means no worker is alive for the cluster.
type Heartbeat struct {
	PID           int              `json:"pid"`
	StartTime     LocalTime        `json:"start_time"`
	LastUpdate    LocalTime        `json:"last_update"`
	MessageCounts map[string]int64 `json:"msg_dict"`
}

// ParseHeartbeat decodes a stored heartbeat value.
func ParseHeartbeat(data []byte) (*Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil, fmt.Errorf("parse heartbeat: %w", err)
	}
	if hb.PID <= 0 {
		return nil, fmt.Errorf("parse heartbeat: invalid pid %d", hb.PID)
	}
	return &hb, nil
}

// Uptime returns how long the worker has been running as of LastUpdate.
func (hb *Heartbeat) Uptime() time.Duration {
	return hb.LastUpdate.Sub(hb.StartTime.Time)
}

// LocalTime is encoded with HeartbeatTimeLayout in the local zone.
type LocalTime struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Local().Format(HeartbeatTimeLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("local time: %w", err)
	}
	parsed, err := time.ParseInLocation(HeartbeatTimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("local time: %w", err)
	}
	t.Time = parsed
	return nil
}
