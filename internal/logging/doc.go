// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package logging provides centralized zerolog-based structured logging for AGV Monitor.
//
// Both the serving process and the ingestion worker initialize the same global
// logger, so worker output and server output share one format and can be
// interleaved in a single log stream.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("robot_id", id).Msg("Robot status stored")
//	logging.Error().Err(err).Msg("Store unavailable")
//
// # Components
//
// Long-lived components take a child logger with a component field:
//
//	log := logging.WithComponent("ingest")
//	log.Info().Int("pid", os.Getpid()).Msg("Worker started")
//
// # slog Bridge
//
// Libraries that only accept *slog.Logger (suture via sutureslog, watermill
// via watermill.NewSlogLogger) are wired through NewSlogLogger so that their
// events reach the zerolog sink.
//
// # Throttling
//
// Hot paths that can fail on every frame (decoding a malformed upstream
// stream) log through a Throttled logger, which emits at most one event per
// interval and counts the suppressed ones.
package logging
