// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package logging

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Throttled emits at most one event per interval. Suppressed events are
// counted and reported on the next emitted event as "suppressed".
type Throttled struct {
	logger     zerolog.Logger
	sometimes  rate.Sometimes
	suppressed atomic.Int64
}

// NewThrottled wraps logger so that Do runs at most once per interval.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewThrottled(logger zerolog.Logger, interval time.Duration) *Throttled {
	return &Throttled{
		logger:    logger,
		sometimes: rate.Sometimes{First: 1, Interval: interval},
	}
}

// Do calls fn with the logger and the number of events suppressed since the
// previous call, or records a suppression if the interval has not elapsed.
func (t *Throttled) Do(fn func(l *zerolog.Logger, suppressed int64)) {
	ran := false
	t.sometimes.Do(func() {
		ran = true
		fn(&t.logger, t.suppressed.Swap(0))
	})
	if !ran {
		t.suppressed.Add(1)
	}
}
