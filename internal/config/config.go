// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete Slotsync configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Backend  BackendConfig  `koanf:"backend"`
	Channel  ChannelConfig  `koanf:"channel"`
	Confirm  ConfirmConfig  `koanf:"confirm"`
	Echo     EchoConfig     `koanf:"echo"`
	Slots    SlotsConfig    `koanf:"slots"`
	Blackout BlackoutConfig `koanf:"blackout"`
	Fallback FallbackConfig `koanf:"fallback"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the local control API listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// BackendConfig describes the authoritative reservation backend.
type BackendConfig struct {
	// WSURL is the WebSocket endpoint carrying mutations and broadcasts.
	WSURL string `koanf:"ws_url"`

	// HTTPURL is the base URL for the synchronous fallback API.
	// Empty disables the HTTP fallback and initial snapshot load.
	HTTPURL string `koanf:"http_url"`

	// Token is sent as a bearer token on the WebSocket handshake and HTTP calls.
	Token string `koanf:"token"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	ReconnectMin     time.Duration `koanf:"reconnect_min"`
	ReconnectMax     time.Duration `koanf:"reconnect_max"`
	PingInterval     time.Duration `koanf:"ping_interval"`
}

// ChannelConfig tunes the outbound queue.
type ChannelConfig struct {
	DrainInterval time.Duration `koanf:"drain_interval"`
	QueueTTL      time.Duration `koanf:"queue_ttl"`
	MaxQueue      int           `koanf:"max_queue"`
}

// ConfirmConfig tunes confirmation waits.
type ConfirmConfig struct {
	// Timeout is the confirmation window, counted from the moment the
	// transport is open.
	Timeout time.Duration `koanf:"timeout"`

	// Ceiling bounds the whole wait, including time spent waiting for the
	// transport to open.
	Ceiling time.Duration `koanf:"ceiling"`

	OpenPollInterval time.Duration `koanf:"open_poll_interval"`
}

// EchoConfig tunes echo fingerprint lifetimes.
type EchoConfig struct {
	ModifyTTL     time.Duration `koanf:"modify_ttl"`
	CancelTTL     time.Duration `koanf:"cancel_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// SlotsConfig describes the coarse slot grid and packing widths.
type SlotsConfig struct {
	Duration       time.Duration `koanf:"duration"`
	WindowStart    string        `koanf:"window_start"`
	DenseThreshold int           `koanf:"dense_threshold"`
	DenseWidth     time.Duration `koanf:"dense_width"`
	SparseWidth    time.Duration `koanf:"sparse_width"`
	Gap            time.Duration `koanf:"gap"`
	Timezone       string        `koanf:"timezone"`
}

// BlackoutConfig lists administratively blocked days.
type BlackoutConfig struct {
	// Dates are explicit YYYY-MM-DD days.
	Dates []string `koanf:"dates"`

	// Weekdays are lower-case English weekday names, e.g. "friday".
	Weekdays []string `koanf:"weekdays"`

	// ICSFiles are iCalendar files whose events block every day they cover.
	ICSFiles []string `koanf:"ics_files"`
}

// FallbackConfig tunes the HTTP fallback client.
type FallbackConfig struct {
	Enabled            bool          `koanf:"enabled"`
	Timeout            time.Duration `koanf:"timeout"`
	RatePerSecond      float64       `koanf:"rate_per_second"`
	Burst              int           `koanf:"burst"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds CORS and rate limits for the local control API.
type SecurityConfig struct {
	// CORSOrigins lists origins allowed to call the API and open /ws.
	// "*" allows any origin. Empty allows none.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings passed to logging.Init.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Addr returns the host:port the control API listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
