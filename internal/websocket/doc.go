// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package websocket streams the latest robot status to dashboard clients.

Key Components:

  - Hub: owns the connected clients and the global last-activity time
  - Client: one connection with a read pump and a write pump
  - Broadcaster: reads the ROBOT_STATUS hash once per tick and hands the
    encoded snapshot to the hub

Frames:

Server to client, on connect and on every tick that has data:

	{"timestamp": 1767225600.123456, "data": {"1001": {...}, "1002": {...}}}

Server to client, when the client has sent nothing for the heartbeat timeout:

	{"type": "heartbeat"}

Client frames only reset the idle timers. A {"type": "ping"} frame is
answered with {"type": "pong"}.

Slow clients:

A client whose send buffer is full when a tick arrives is removed. Other
clients are unaffected and the removed client's pumps close its connection.

Usage:

	hub := websocket.NewHub(websocket.ClientConfig{})
	bc := websocket.NewBroadcaster(hub, st, keys.RobotStatus(), time.Second)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(bc)
*/
package websocket
