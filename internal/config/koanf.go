// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/agvmonitor/config.yaml",
	"/etc/agvmonitor/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the values applied before the file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Host:        "http://127.0.0.1:8182",
			BroadcastIP: "127.0.0.1",
			MessagePort: 5556,
			ControlPort: 5555,
			Topic:       "",
		},
		Redis: RedisConfig{
			Addr:         "127.0.0.1:6379",
			DB:           0,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ShutdownTimeout:   10 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Worker: WorkerConfig{
			IdleTimeout:       5 * time.Minute,
			ReconcileInterval: 10 * time.Second,
			HeartbeatInterval: 2 * time.Second,
			HeartbeatTTL:      3 * time.Second,
			StopTimeout:       5 * time.Second,
			KillTimeout:       2 * time.Second,
			RecvTimeout:       5 * time.Second,
			PollInterval:      10 * time.Millisecond,
			RedialBackoff:     time.Second,
		},
		Broadcast: BroadcastConfig{
			Interval:         time.Second,
			HeartbeatTimeout: 30 * time.Second,
			WriteWait:        10 * time.Second,
			SendBuffer:       16,
		},
		Codes: CodesConfig{
			StatusPath: "",
			AlarmPath:  "",
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "agv",
			JetStream:     false,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf builds the layered koanf instance and unmarshals it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated string values into slices.
// Values that are already slices (from YAML) are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to config paths.
var envMappings = map[string]string{
	// Controller
	"controller_host":  "controller.host",
	"zmq_broadcast_ip": "controller.broadcast_ip",
	"zmq_message_port": "controller.message_port",
	"zmq_control_port": "controller.control_port",
	"zmq_topic":        "controller.topic",

	// Redis
	"redis_addr":          "redis.addr",
	"redis_password":      "redis.password",
	"redis_db":            "redis.db",
	"redis_dial_timeout":  "redis.dial_timeout",
	"redis_read_timeout":  "redis.read_timeout",
	"redis_write_timeout": "redis.write_timeout",
	"redis_pool_size":     "redis.pool_size",

	// HTTP server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Worker
	"zmq_idle_timeout":       "worker.idle_timeout",
	"zmq_reconcile_interval": "worker.reconcile_interval",
	"zmq_heartbeat_interval": "worker.heartbeat_interval",
	"zmq_heartbeat_ttl":      "worker.heartbeat_ttl",
	"zmq_stop_timeout":       "worker.stop_timeout",
	"zmq_kill_timeout":       "worker.kill_timeout",
	"zmq_recv_timeout":       "worker.recv_timeout",
	"zmq_poll_interval":      "worker.poll_interval",
	"zmq_redial_backoff":     "worker.redial_backoff",
	"zmq_worker_executable":  "worker.executable",

	// Dashboard stream
	"broadcast_interval":   "broadcast.interval",
	"ws_heartbeat_timeout": "broadcast.heartbeat_timeout",
	"ws_write_wait":        "broadcast.write_wait",
	"ws_send_buffer":       "broadcast.send_buffer",

	// Code tables
	"status_codes_path": "codes.status_path",
	"alarm_codes_path":  "codes.alarm_path",

	// Event mirror
	"events_enabled":      "events.enabled",
	"nats_url":            "events.url",
	"nats_subject_prefix": "events.subject_prefix",
	"nats_jetstream":      "events.jetstream",
	"nats_max_reconnects": "events.max_reconnects",
	"nats_reconnect_wait": "events.reconnect_wait",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to config paths.
// Variables without a mapping are skipped.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
