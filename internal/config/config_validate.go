// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if c.Form.ID == "" {
		return &ConfigError{Field: "form.id", Message: "is required"}
	}
	if c.Storage.Path == "" {
		return &ConfigError{Field: "storage.path", Message: "is required"}
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return &ConfigError{Field: "connectivity.probe_interval", Message: "must be positive"}
	}
	if c.API.RateLimit < 0 {
		return &ConfigError{Field: "api.rate_limit", Message: "must not be negative"}
	}
	if c.API.RateLimit > 0 && c.API.RateLimitWindow <= 0 {
		return &ConfigError{Field: "api.rate_limit_window", Message: "must be positive when api.rate_limit is set"}
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.URL == "" && c.Server.Host == "" {
		return &ConfigError{Field: "server.host", Message: "server.host or server.url is required"}
	}
	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Field: "server.url", Message: "must be an absolute http(s) URL"}
		}
	}
	if strings.Contains(c.Server.Host, "://") {
		return &ConfigError{Field: "server.host", Message: "must not include a scheme, use server.url instead"}
	}
	if c.Server.Timeout <= 0 {
		return &ConfigError{Field: "server.timeout", Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Limit < 1 {
		return &ConfigError{Field: "sync.limit", Message: "must be at least 1"}
	}
	if c.Sync.Debounce < 0 {
		return &ConfigError{Field: "sync.debounce", Message: "must not be negative"}
	}
	if c.Sync.RateLimit < 0 {
		return &ConfigError{Field: "sync.rate_limit", Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return &ConfigError{Field: "logging.level", Message: "unknown level " + c.Logging.Level}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
		return nil
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or console"}
	}
}
