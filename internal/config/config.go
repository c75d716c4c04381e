// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config is the complete configuration.
type Config struct {
	Controller ControllerConfig `koanf:"controller"`
	Redis      RedisConfig      `koanf:"redis"`
	Server     ServerConfig     `koanf:"server"`
	Worker     WorkerConfig     `koanf:"worker"`
	Broadcast  BroadcastConfig  `koanf:"broadcast"`
	Codes      CodesConfig      `koanf:"codes"`
	Events     EventsConfig     `koanf:"events"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ControllerConfig locates the upstream fleet controller.
type ControllerConfig struct {
	// Host is the controller base URL. Its host:port, with ':' replaced by
	// '-', is the cluster tag that prefixes every store key.
	Host string `koanf:"host" validate:"required"`

	// BroadcastIP and MessagePort form the subscription endpoint
	// tcp://BroadcastIP:MessagePort.
	BroadcastIP string `koanf:"broadcast_ip" validate:"required"`
	MessagePort int    `koanf:"message_port" validate:"gte=1,lte=65535"`

	// ControlPort is the controller's request port. It is logged at worker
	// start and in the config summary; nothing dials it.
	ControlPort int `koanf:"control_port" validate:"gte=0,lte=65535"`

	// Topic is the subscription prefix. Empty subscribes to everything.
	Topic string `koanf:"topic"`
}

// SubscribeEndpoint returns the ZeroMQ endpoint of the telemetry broadcast.
func (c ControllerConfig) SubscribeEndpoint() string {
	return "tcp://" + net.JoinHostPort(c.BroadcastIP, strconv.Itoa(c.MessagePort))
}

// RedisConfig holds the shared store connection.
type RedisConfig struct {
	Addr         string        `koanf:"addr" validate:"required,hostname_port"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db" validate:"gte=0"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PoolSize     int           `koanf:"pool_size" validate:"gte=0"`
}

// ServerConfig holds the HTTP listener.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WorkerConfig holds ingestion worker timing and the reconcile policy.
type WorkerConfig struct {
	// IdleTimeout is how long the fleet may have no dashboard clients
	// before the worker is stopped.
	IdleTimeout time.Duration `koanf:"idle_timeout" validate:"gt=0"`

	// ReconcileInterval is the period of the control loop.
	ReconcileInterval time.Duration `koanf:"reconcile_interval" validate:"gt=0"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`
	HeartbeatTTL      time.Duration `koanf:"heartbeat_ttl" validate:"gtfield=HeartbeatInterval"`

	// StopTimeout and KillTimeout bound the cooperative and the forced stop.
	StopTimeout time.Duration `koanf:"stop_timeout" validate:"gt=0"`
	KillTimeout time.Duration `koanf:"kill_timeout" validate:"gt=0"`

	// RecvTimeout bounds each wait for an upstream frame.
	RecvTimeout time.Duration `koanf:"recv_timeout" validate:"gt=0"`

	// PollInterval is the pause between dispatched frames.
	PollInterval time.Duration `koanf:"poll_interval" validate:"gte=0"`

	// RedialBackoff is the wait before reconnecting a failed subscription.
	RedialBackoff time.Duration `koanf:"redial_backoff" validate:"gt=0"`

	// Executable overrides the binary spawned for the worker. Empty means
	// the running executable.
	Executable string `koanf:"executable"`
}

// BroadcastConfig holds the dashboard stream timing.
type BroadcastConfig struct {
	Interval         time.Duration `koanf:"interval" validate:"gt=0"`
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout" validate:"gt=0"`
	WriteWait        time.Duration `koanf:"write_wait" validate:"gt=0"`
	SendBuffer       int           `koanf:"send_buffer" validate:"gte=1"`
}

// CodesConfig locates the code tables. Empty paths mean empty tables.
type CodesConfig struct {
	StatusPath string `koanf:"status_path"`
	AlarmPath  string `koanf:"alarm_path"`
}

// EventsConfig controls the optional NATS mirror.
type EventsConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url" validate:"required_if=Enabled true"`
	SubjectPrefix string        `koanf:"subject_prefix" validate:"required_if=Enabled true"`
	JetStream     bool          `koanf:"jetstream"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes file and line.
	Caller bool `koanf:"caller"`
}

// String summarizes the connection settings for the startup log. Secrets
// are omitted.
func (c *Config) String() string {
	return fmt.Sprintf("controller=%s subscribe=%s control_port=%d redis=%s/%d http=%s events=%t",
		c.Controller.Host, c.Controller.SubscribeEndpoint(), c.Controller.ControlPort,
		c.Redis.Addr, c.Redis.DB, c.Server.Addr(), c.Events.Enabled)
}
