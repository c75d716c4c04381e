// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/agvmonitor/internal/telemetry"
)

func TestSubscriberConflatesToNewestFrame(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	sub := NewSubscriber(src, telemetry.NewDecoder(nil), SubscriberConfig{RecvTimeout: 10 * time.Millisecond})

	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	dispatch := func(_ context.Context, msg telemetry.Message) {
		mu.Lock()
		seen = append(seen, msg.Key())
		first := len(seen) == 1
		mu.Unlock()
		if first {
			<-release
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, dispatch) }()

	src.frames <- statusFrame("1", 1)
	waitFor(t, "first dispatch", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})

	// While dispatch is blocked, three frames arrive; only the newest survives.
	src.frames <- statusFrame("2", 2)
	src.frames <- statusFrame("3", 3)
	src.frames <- statusFrame("4", 4)
	waitFor(t, "pump to finish conflating", func() bool { return src.calls.Load() >= 5 })
	close(release)

	waitFor(t, "second dispatch", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	})
	time.Sleep(50 * time.Millisecond)

	cancel()
	_ = src.Close()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "1" || seen[1] != "4" {
		t.Errorf("dispatched %v, want [1 4]", seen)
	}
}

func TestSubscriberRecoversDispatchPanic(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	sub := NewSubscriber(src, telemetry.NewDecoder(nil), SubscriberConfig{RecvTimeout: 10 * time.Millisecond})

	var mu sync.Mutex
	var seen []string
	dispatch := func(_ context.Context, msg telemetry.Message) {
		mu.Lock()
		seen = append(seen, msg.Key())
		mu.Unlock()
		if msg.Key() == "boom" {
			panic("dispatch exploded")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, dispatch) }()

	src.frames <- statusFrame("boom", 1)
	src.frames <- statusFrame("after", 1)
	waitFor(t, "dispatch after panic", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	})

	cancel()
	_ = src.Close()
	<-done
}

func TestSubscriberReturnsSourceError(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	sub := NewSubscriber(src, telemetry.NewDecoder(nil), SubscriberConfig{RecvTimeout: 10 * time.Millisecond})
	_ = src.Close()

	err := sub.Run(context.Background(), func(context.Context, telemetry.Message) {})
	if !errors.Is(err, errSourceClosed) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestSubscriberTimeoutIsNotAnError(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	sub := NewSubscriber(src, telemetry.NewDecoder(nil), SubscriberConfig{RecvTimeout: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := sub.Run(ctx, func(context.Context, telemetry.Message) {}); err != nil {
		t.Errorf("expected nil after idle polls, got %v", err)
	}
	_ = src.Close()
}

func TestTallyConcurrent(t *testing.T) {
	t.Parallel()

	tally := NewTally()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tally.Inc("ROBOT_STATUS")
			}
		}()
	}
	wg.Wait()

	if got := tally.Snapshot()["ROBOT_STATUS"]; got != 800 {
		t.Errorf("count = %d, want 800", got)
	}
	if tally.Total() != 800 {
		t.Errorf("total = %d, want 800", tally.Total())
	}
}
