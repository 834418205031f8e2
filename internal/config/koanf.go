// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

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

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"fieldsync.yaml",
	"fieldsync.yml",
	"/etc/fieldsync/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			APIPrefix: "api/v1",
			Timeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Path:       "./data/fieldsync",
			SyncWrites: true,
		},
		Sync: SyncConfig{
			Limit:     100,
			Debounce:  500 * time.Millisecond,
			RateLimit: 5,
			RateBurst: 10,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  5 * time.Second,
		},
		API: APIConfig{
			Listen:          "127.0.0.1:7411",
			CORSOrigins:     []string{"http://localhost:*"},
			RateLimit:       600,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load layers defaults, the optional config file and the environment, then
// validates the result.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path; "" skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
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
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"fieldsync_server":          "server.host",
	"fieldsync_server_url":      "server.url",
	"fieldsync_org_id":          "server.org_id",
	"fieldsync_api_prefix":      "server.api_prefix",
	"fieldsync_server_timeout":  "server.timeout",
	"fieldsync_token":           "auth.token",
	"fieldsync_form_id":         "form.id",
	"fieldsync_form_add_new":    "form.add_new",
	"fieldsync_turf_file":       "form.turf_file",
	"fieldsync_default_filters": "form.default_filters",
	"fieldsync_data_path":       "storage.path",
	"fieldsync_sync_writes":     "storage.sync_writes",
	"fieldsync_fetch_limit":     "sync.limit",
	"fieldsync_debounce":        "sync.debounce",
	"fieldsync_chill_mode":      "sync.chill_mode",
	"fieldsync_rate_limit":      "sync.rate_limit",
	"fieldsync_rate_burst":      "sync.rate_burst",
	"fieldsync_probe_url":       "connectivity.probe_url",
	"fieldsync_probe_interval":  "connectivity.probe_interval",
	"fieldsync_probe_timeout":   "connectivity.probe_timeout",
	"fieldsync_listen":          "api.listen",
	"fieldsync_cors_origins":    "api.cors_origins",
	"fieldsync_api_rate_limit":  "api.rate_limit",
	"fieldsync_api_rate_window": "api.rate_limit_window",
	"log_level":                 "logging.level",
	"log_format":                "logging.format",
	"log_caller":                "logging.caller",
}

func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

var sliceConfigPaths = []string{
	"form.default_filters",
	"api.cors_origins",
}

// processSliceFields splits comma-separated env values into slices. Values
// that came from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Flatten returns the configuration as dotted keys, e.g. "api.listen".
// The auth token is masked.
func (c *Config) Flatten() (map[string]interface{}, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to flatten configuration: %w", err)
	}
	out := k.All()
	if tok, _ := out["auth.token"].(string); tok != "" {
		out["auth.token"] = "********"
	}
	return out, nil
}
