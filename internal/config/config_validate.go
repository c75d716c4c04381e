// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/agvmonitor/internal/validation"
)

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := validateControllerHost(c.Controller.Host); err != nil {
		return err
	}

	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("server.cors_origins: %q must be \"*\" or an http(s) origin", origin)
		}
	}

	if c.Events.Enabled && !strings.HasPrefix(c.Events.URL, "nats://") && !strings.HasPrefix(c.Events.URL, "tls://") {
		return fmt.Errorf("events.url: %q must use nats:// or tls://", c.Events.URL)
	}

	return nil
}

// validateControllerHost requires an absolute URL with a host, since the
// host:port pair names the cluster.
func validateControllerHost(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("controller.host: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("controller.host: %q must be an absolute URL such as http://10.0.0.5:8182", raw)
	}
	return nil
}
