// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package breaker

import (
	"errors"
	"io"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/agvmonitor/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	cb := New[int](Config{Name: "test-trip", Timeout: time.Minute, FailureThreshold: 3})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !IsOpen(err) {
		t.Errorf("expected open-state rejection, got %v", err)
	}
}

func TestBreakerPassesResults(t *testing.T) {
	cb := New[string](DefaultConfig("test-pass"))
	got, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Errorf("Execute = %q, %v", got, err)
	}
	if IsOpen(err) {
		t.Error("nil error reported as open")
	}
}
