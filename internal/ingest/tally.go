// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package ingest

import (
	"sync"

	"github.com/tomtom215/agvmonitor/internal/models"
)

// Tally counts messages per type. The dispatch path increments it while the
// heartbeat loop snapshots it.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int64
	total  int64
}

// NewTally returns a tally with every known type present at zero.
func NewTally() *Tally {
	counts := make(map[string]int64, len(models.KnownTypes))
	for _, t := range models.KnownTypes {
		counts[t] = 0
	}
	return &Tally{counts: counts}
}

// Inc counts one message of msgType.
func (t *Tally) Inc(msgType string) {
	t.mu.Lock()
	t.counts[msgType]++
	t.total++
	t.mu.Unlock()
}

// Snapshot returns a copy of the per-type counts.
func (t *Tally) Snapshot() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of messages counted.
func (t *Tally) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
