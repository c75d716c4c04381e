// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package eventbus

import "time"

// Config holds NATS mirror settings.
type Config struct {
	// URL of the NATS server, e.g. nats://127.0.0.1:4222.
	URL string

	// SubjectPrefix is prepended to the lower-cased message type.
	SubjectPrefix string

	// JetStream publishes through a pre-created JetStream stream instead of
	// core NATS. The stream must cover "<prefix>.>".
	JetStream bool

	// TrackMsgID sets Nats-Msg-Id so JetStream can deduplicate retries.
	TrackMsgID bool

	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultConfig returns settings for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:             "nats://127.0.0.1:4222",
		SubjectPrefix:   "agv",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
	}
}
