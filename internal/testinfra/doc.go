// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package testinfra starts real Redis and NATS servers for integration tests.
//
// Everything in this package is behind the integration build tag:
//
//	go test -tags integration ./internal/store/... ./internal/eventbus/...
//
// # Redis
//
//	func TestAgainstRedis(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    rc, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, rc)
//
//	    st := store.NewRedis(store.RedisConfig{Addr: rc.Addr})
//	    // ...
//	}
//
// # NATS
//
// NewNATSContainer starts nats-server with JetStream enabled so the event
// mirror can be exercised in both core and JetStream modes.
//
// Unit tests use miniredis and an in-process watermill publisher instead and
// never need Docker.
package testinfra
