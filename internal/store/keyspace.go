// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package store

import (
	"strings"

	"github.com/tomtom215/agvmonitor/internal/models"
)

// ProgramInfoKey is the suffix of the worker heartbeat key.
const ProgramInfoKey = "program_info"

// ClusterTag derives the key prefix from the controller endpoint: the scheme
// is dropped and ':' becomes '-', so "http://10.1.2.3:8182" yields
// "10.1.2.3-8182".
func ClusterTag(controllerHost string) string {
	host := strings.TrimSpace(controllerHost)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimRight(host, "/")
	return strings.ReplaceAll(host, ":", "-")
}

// Keyspace builds the keys of one controller cluster.
type Keyspace struct {
	tag string
}

// NewKeyspace returns the keyspace for tag.
func NewKeyspace(tag string) Keyspace {
	return Keyspace{tag: tag}
}

// Tag returns the cluster tag.
func (k Keyspace) Tag() string {
	return k.tag
}

// Key returns "{tag}:{suffix}".
func (k Keyspace) Key(suffix string) string {
	return k.tag + ":" + suffix
}

// RobotStatus is the hash of decoded status records keyed by robot id.
func (k Keyspace) RobotStatus() string {
	return k.Key(models.TypeRobotStatus)
}

// ProgramInfo is the worker heartbeat key.
func (k Keyspace) ProgramInfo() string {
	return k.Key(ProgramInfoKey)
}

// Placement says where a message type is stored.
type Placement int

const (
	// PlacementNone means the type is counted but not stored.
	PlacementNone Placement = iota
	// PlacementHash stores one field per robot id.
	PlacementHash
	// PlacementSingleton overwrites a single key.
	PlacementSingleton
)

// PlacementFor returns the storage placement of a message type.
func PlacementFor(msgType string) Placement {
	switch msgType {
	case models.TypeRobotStatus, models.TypeRobotPath, models.TypeTRPBlockCell:
		return PlacementHash
	case models.TypeBlockCell, models.TypeChargeInfo, models.TypeValidRobotNum:
		return PlacementSingleton
	default:
		return PlacementNone
	}
}
