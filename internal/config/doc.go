// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package config loads the configuration shared by every subcommand.

# Configuration Sources

Layers are applied in order, later layers overriding earlier ones:

 1. Struct defaults (defaultConfig)
 2. A YAML file: $CONFIG_PATH, config.yaml, config.yml,
    /etc/agvmonitor/config.yaml or /etc/agvmonitor/config.yml, first found
 3. Environment variables listed in envMappings

Unlisted environment variables are ignored. Comma-separated values are split
for list fields such as server.cors_origins.

# Sections

  - controller: upstream controller endpoint, from which the cluster tag and
    the subscription endpoint are derived
  - redis: shared store connection
  - server: HTTP listen address, CORS and rate limits
  - worker: ingestion worker timing and the idle-stop policy
  - broadcast: dashboard tick and per-client timeouts
  - codes: status and alarm code table files
  - events: optional NATS mirror of decoded messages
  - logging: zerolog level and format

# Example

	controller:
	  host: http://10.0.0.5:8182
	  broadcast_ip: 10.0.0.5
	  message_port: 5556
	redis:
	  addr: 127.0.0.1:6379
	worker:
	  idle_timeout: 5m
	events:
	  enabled: true
	  url: nats://127.0.0.1:4222

Equivalent environment:

	CONTROLLER_HOST=http://10.0.0.5:8182
	ZMQ_BROADCAST_IP=10.0.0.5
	ZMQ_MESSAGE_PORT=5556
	REDIS_ADDR=127.0.0.1:6379
	ZMQ_IDLE_TIMEOUT=5m
	EVENTS_ENABLED=true
	NATS_URL=nats://127.0.0.1:4222
*/
package config
