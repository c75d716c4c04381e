// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/agvmonitor/internal/validation"
)

// isolate points CONFIG_PATH at a file that does not exist so only
// defaults and explicitly set variables apply.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Worker.IdleTimeout != 5*time.Minute {
		t.Errorf("idle timeout = %v", cfg.Worker.IdleTimeout)
	}
	if cfg.Worker.HeartbeatInterval != 2*time.Second || cfg.Worker.HeartbeatTTL != 3*time.Second {
		t.Errorf("heartbeat = %v/%v", cfg.Worker.HeartbeatInterval, cfg.Worker.HeartbeatTTL)
	}
	if cfg.Broadcast.Interval != time.Second {
		t.Errorf("broadcast interval = %v", cfg.Broadcast.Interval)
	}
	if got := cfg.Controller.SubscribeEndpoint(); got != "tcp://127.0.0.1:5556" {
		t.Errorf("endpoint = %q", got)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8000" {
		t.Errorf("addr = %q", got)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"*"}) {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Events.Enabled {
		t.Error("events enabled by default")
	}
}

func TestConfigStringReportsControlPort(t *testing.T) {
	isolate(t)
	t.Setenv("ZMQ_CONTROL_PORT", "6655")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller.ControlPort != 6655 {
		t.Fatalf("control port = %d", cfg.Controller.ControlPort)
	}
	summary := cfg.String()
	for _, want := range []string{"control_port=6655", "subscribe=tcp://127.0.0.1:5556"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary %q missing %q", summary, want)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agv.yaml")
	yaml := `
controller:
  host: http://10.0.0.5:8182
  broadcast_ip: 10.0.0.5
  message_port: 6000
redis:
  addr: 10.0.0.9:6380
  db: 2
worker:
  idle_timeout: 90s
server:
  cors_origins:
    - http://dashboard.local
    - https://ops.example.com
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller.Host != "http://10.0.0.5:8182" {
		t.Errorf("host = %q", cfg.Controller.Host)
	}
	if got := cfg.Controller.SubscribeEndpoint(); got != "tcp://10.0.0.5:6000" {
		t.Errorf("endpoint = %q", got)
	}
	if cfg.Redis.Addr != "10.0.0.9:6380" || cfg.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Worker.IdleTimeout != 90*time.Second {
		t.Errorf("idle timeout = %v", cfg.Worker.IdleTimeout)
	}
	want := []string{"http://dashboard.local", "https://ops.example.com"}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, want) {
		t.Errorf("cors = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	// Unset keys keep their defaults.
	if cfg.Worker.ReconcileInterval != 10*time.Second {
		t.Errorf("reconcile interval = %v", cfg.Worker.ReconcileInterval)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agv.yaml")
	if err := os.WriteFile(path, []byte("redis:\n  addr: 10.0.0.9:6380\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("ZMQ_IDLE_TIMEOUT", "2m")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Worker.IdleTimeout != 2*time.Minute {
		t.Errorf("idle timeout = %v", cfg.Worker.IdleTimeout)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"http://a.local", "http://b.local"}) {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Events.Enabled || cfg.Events.URL != "nats://broker:4222" {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestUnmappedEnvironmentIsIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_IDLE_TIMEOUT", "not-a-duration")
	t.Setenv("HOME_DIR_FOR_TESTS", "x")

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantField string
	}{
		{
			name:      "heartbeat ttl not above interval",
			env:       map[string]string{"ZMQ_HEARTBEAT_TTL": "2s"},
			wantField: "HeartbeatTTL",
		},
		{
			name:      "zero idle timeout",
			env:       map[string]string{"ZMQ_IDLE_TIMEOUT": "0s"},
			wantField: "IdleTimeout",
		},
		{
			name:      "bad log level",
			env:       map[string]string{"LOG_LEVEL": "verbose"},
			wantField: "Level",
		},
		{
			name:      "port out of range",
			env:       map[string]string{"HTTP_PORT": "70000"},
			wantField: "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var se *validation.StructError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a StructError", err)
			}
			if !slices.Contains(se.Fields(), tt.wantField) {
				t.Errorf("fields = %v, want %s", se.Fields(), tt.wantField)
			}
		})
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative controller host", func(c *Config) { c.Controller.Host = "10.0.0.5:8182" }},
		{"bare cors origin", func(c *Config) { c.Server.CORSOrigins = []string{"dashboard.local"} }},
		{"events with http url", func(c *Config) {
			c.Events.Enabled = true
			c.Events.URL = "http://broker:4222"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}

	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestProcessSliceFields(t *testing.T) {
	k := koanf.New(".")
	if err := k.Set("server.cors_origins", " http://a.local ,,http://b.local "); err != nil {
		t.Fatal(err)
	}
	if err := processSliceFields(k); err != nil {
		t.Fatal(err)
	}
	got := k.Strings("server.cors_origins")
	if !reflect.DeepEqual(got, []string{"http://a.local", "http://b.local"}) {
		t.Errorf("got %v", got)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"REDIS_ADDR":       "redis.addr",
		"CONTROLLER_HOST":  "controller.host",
		"ZMQ_IDLE_TIMEOUT": "worker.idle_timeout",
		"log_format":       "logging.format",
		"PATH":             "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
