// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package store is the shared latest-value store between the ingestion
// worker and the serving process.
//
// The worker writes one hash field per robot and a handful of singleton keys;
// the server reads them to build dashboard snapshots and to decide whether a
// worker is alive (the program_info heartbeat key). Writes are last-write-wins
// per field and there is no cross-robot snapshot consistency.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the key/value surface used by the worker, supervisor and API.
type Store interface {
	// SetHash stores value under field of the hash ns.
	SetHash(ctx context.Context, ns, field string, value []byte) error
	// GetAllHash returns every field of the hash ns. A missing hash is empty.
	GetAllHash(ctx context.Context, ns string) (map[string]string, error)
	// GetHashField returns one field of the hash ns or ErrNotFound.
	GetHashField(ctx context.Context, ns, field string) ([]byte, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent stores value under key only if key does not exist and
	// reports whether it did so.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Get returns the value of key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key and returns the number of keys removed.
	Delete(ctx context.Context, key string) (int64, error)
	// DeleteField removes field from the hash ns and returns the number removed.
	DeleteField(ctx context.Context, ns, field string) (int64, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the connection pool.
	Close() error
}
