// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package config loads FieldSync configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete daemon configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Auth         AuthConfig         `koanf:"auth"`
	Form         FormConfig         `koanf:"form"`
	Storage      StorageConfig      `koanf:"storage"`
	Sync         SyncConfig         `koanf:"sync"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	API          APIConfig          `koanf:"api"`
	Logging      LoggingConfig      `koanf:"logging"`
	Supervisor   SupervisorConfig   `koanf:"supervisor"`
}

// ServerConfig describes the remote canvassing service.
type ServerConfig struct {
	// Host is "hostname[:port]". Hosts on port 8080 are spoken to over
	// plain http, everything else over https.
	Host string `koanf:"host"`

	// URL overrides Host and the scheme rule when set, e.g. in tests.
	URL string `koanf:"url"`

	// OrgID selects the organization namespace, if the service has one.
	OrgID string `koanf:"org_id"`

	APIPrefix string        `koanf:"api_prefix"`
	Timeout   time.Duration `koanf:"timeout"`
}

// BaseURL returns the root that endpoint paths are appended to.
func (s ServerConfig) BaseURL() string {
	if s.URL != "" {
		return strings.TrimRight(s.URL, "/")
	}
	scheme := "https"
	if strings.Contains(s.Host, ":8080") {
		scheme = "http"
	}
	base := scheme + "://" + strings.TrimRight(s.Host, "/")
	if s.OrgID != "" {
		base += "/" + s.OrgID
	}
	if p := strings.Trim(s.APIPrefix, "/"); p != "" {
		base += "/" + p
	}
	return base
}

// AuthConfig holds the bearer credential.
type AuthConfig struct {
	Token string `koanf:"token"`
}

// FormConfig identifies the canvassing form and its turf.
type FormConfig struct {
	ID string `koanf:"id"`

	// AddNew allows volunteers to create addresses that were not fetched.
	AddNew bool `koanf:"add_new"`

	// TurfFile is a GeoJSON file with the turf boundaries. Empty means
	// no geographic restriction.
	TurfFile string `koanf:"turf_file"`

	// DefaultFilters are attribute filters applied when pin filtering is
	// switched on without explicit filters.
	DefaultFilters []string `koanf:"default_filters"`
}

// StorageConfig configures the local BadgerDB store.
type StorageConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// SyncConfig controls fetching.
type SyncConfig struct {
	Limit    int           `koanf:"limit"`
	Debounce time.Duration `koanf:"debounce"`

	// ChillMode stops region changes from triggering fetches.
	ChillMode bool `koanf:"chill_mode"`

	// RateLimit caps outbound requests per second; 0 disables the limiter.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// ConnectivityConfig controls the reachability probe.
type ConnectivityConfig struct {
	ProbeURL      string        `koanf:"probe_url"`
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`
}

// APIConfig configures the local control API.
type APIConfig struct {
	Listen      string   `koanf:"listen"`
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is requests per client per RateLimitWindow; 0 disables.
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// ConfigError reports a single invalid field.
//
//nolint:revive // ConfigError reads better than Error at call sites
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}
