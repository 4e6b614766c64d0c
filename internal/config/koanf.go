// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
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
	"/etc/slotsync/config.yaml",
	"/etc/slotsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is preloaded into the process environment when present.
const DotEnvFile = ".env"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8740,
			Timeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			WSURL:            "ws://127.0.0.1:8000/ws",
			HTTPURL:          "",
			HandshakeTimeout: 10 * time.Second,
			ReconnectMin:     1 * time.Second,
			ReconnectMax:     32 * time.Second,
			PingInterval:     30 * time.Second,
		},
		Channel: ChannelConfig{
			DrainInterval: 500 * time.Millisecond,
			QueueTTL:      10 * time.Second,
			MaxQueue:      1024,
		},
		Confirm: ConfirmConfig{
			Timeout:          10 * time.Second,
			Ceiling:          30 * time.Second,
			OpenPollInterval: 100 * time.Millisecond,
		},
		Echo: EchoConfig{
			ModifyTTL:     4500 * time.Millisecond,
			CancelTTL:     2 * time.Second,
			SweepInterval: 1 * time.Second,
		},
		Slots: SlotsConfig{
			Duration:       2 * time.Hour,
			WindowStart:    "09:00",
			DenseThreshold: 6,
			DenseWidth:     15 * time.Minute,
			SparseWidth:    20 * time.Minute,
			Gap:            1 * time.Minute,
			Timezone:       "UTC",
		},
		Blackout: BlackoutConfig{
			Dates:    []string{},
			Weekdays: []string{},
			ICSFiles: []string{},
		},
		Fallback: FallbackConfig{
			Enabled:            true,
			Timeout:            10 * time.Second,
			RatePerSecond:      5,
			Burst:              5,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     60,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// sliceConfigPaths are koanf paths that accept comma-separated env values.
var sliceConfigPaths = []string{
	"blackout.dates",
	"blackout.weekdays",
	"blackout.ics_files",
	"security.cors_origins",
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",

	"backend_ws_url":            "backend.ws_url",
	"backend_http_url":          "backend.http_url",
	"backend_token":             "backend.token",
	"backend_handshake_timeout": "backend.handshake_timeout",
	"backend_reconnect_min":     "backend.reconnect_min",
	"backend_reconnect_max":     "backend.reconnect_max",
	"backend_ping_interval":     "backend.ping_interval",

	"channel_drain_interval": "channel.drain_interval",
	"channel_queue_ttl":      "channel.queue_ttl",
	"channel_max_queue":      "channel.max_queue",

	"confirm_timeout":            "confirm.timeout",
	"confirm_ceiling":            "confirm.ceiling",
	"confirm_open_poll_interval": "confirm.open_poll_interval",

	"echo_modify_ttl":     "echo.modify_ttl",
	"echo_cancel_ttl":     "echo.cancel_ttl",
	"echo_sweep_interval": "echo.sweep_interval",

	"slot_duration":        "slots.duration",
	"slot_window_start":    "slots.window_start",
	"slot_dense_threshold": "slots.dense_threshold",
	"slot_dense_width":     "slots.dense_width",
	"slot_sparse_width":    "slots.sparse_width",
	"slot_gap":             "slots.gap",
	"slot_timezone":        "slots.timezone",

	"blackout_dates":     "blackout.dates",
	"blackout_weekdays":  "blackout.weekdays",
	"blackout_ics_files": "blackout.ics_files",

	"fallback_enabled":              "fallback.enabled",
	"fallback_timeout":              "fallback.timeout",
	"fallback_rate_per_second":      "fallback.rate_per_second",
	"fallback_burst":                "fallback.burst",
	"fallback_breaker_max_failures": "fallback.breaker_max_failures",
	"fallback_breaker_timeout":      "fallback.breaker_timeout",

	"cors_origins":       "security.cors_origins",
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"disable_rate_limit": "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// Load builds the configuration from defaults, the first config file found,
// and the environment, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(configPath string) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment (highest priority)
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

// findConfigFile returns the first existing config file, honoring CONFIG_PATH.
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

// processSliceFields splits comma-separated env values into string slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
