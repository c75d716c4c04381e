// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package main is the agvmonitor binary.
//
// agvmonitor subscribes to the telemetry broadcast of an AGV fleet
// controller, keeps the latest state of every robot in Redis and streams it
// to browser dashboards over WebSocket. The subscription runs in a separate
// worker process that the server starts when a dashboard connects and stops
// after the fleet has been idle for the configured timeout.
//
// # Subcommands
//
//	agvmonitor serve    HTTP API, WebSocket stream and worker supervision
//	agvmonitor worker   the ingestion worker (normally started by serve)
//	agvmonitor show     terminal table of current robot statuses
//
// # Configuration
//
// Configuration is loaded via koanf with layered sources (highest priority wins):
//   - Environment variables (REDIS_ADDR, CONTROLLER_HOST, ZMQ_IDLE_TIMEOUT, ...)
//   - Config file (config.yaml, or --config / CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// Every subcommand shuts down gracefully on SIGINT and SIGTERM. serve stops
// a worker it started before exiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tomtom215/agvmonitor/internal/config"
	"github.com/tomtom215/agvmonitor/internal/logging"
	"github.com/tomtom215/agvmonitor/internal/metrics"
	"github.com/tomtom215/agvmonitor/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errUsage marks a command-line error; main prints usage and exits 2.
var errUsage = errors.New("usage error")

const usage = `Usage: agvmonitor <command> [flags]

Commands:
  serve    run the HTTP API, WebSocket stream and worker supervisor
  worker   run the ingestion worker in the foreground
  show     print a refreshing table of robot statuses

Run "agvmonitor <command> --help" for command flags.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logging.Error().Err(err).Msg("agvmonitor failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(rest)
	case "worker":
		return runWorker(rest)
	case "show":
		return runShow(rest)
	case "version", "--version":
		fmt.Println(version)
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		return errUsage
	}
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "path to config file (overrides "+config.ConfigPathEnvVar+")")
	fs.StringVar(&c.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
}

// load reads the configuration and initializes logging for role. The
// config path is exported so a spawned worker reads the same file.
func (c *commonFlags) load(role string) (*config.Config, error) {
	if c.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, c.configPath); err != nil {
			return nil, fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Role:      role,
	})
	metrics.SetAppInfo(version, role)
	return cfg, nil
}

// newStore connects the shared store from cfg.
func newStore(cfg *config.Config) *store.Redis {
	return store.NewRedis(store.RedisConfig{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
	})
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// parseFlags parses args into fs. --help exits 0 after pflag prints the
// flag usage.
func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}
