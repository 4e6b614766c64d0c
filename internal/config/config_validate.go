// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

var validWeekdays = map[string]bool{
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateChannel(); err != nil {
		return err
	}
	if err := c.validateConfirm(); err != nil {
		return err
	}
	if err := c.validateEcho(); err != nil {
		return err
	}
	if err := c.validateSlots(); err != nil {
		return err
	}
	if err := c.validateBlackout(); err != nil {
		return err
	}
	if err := c.validateFallback(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateBackend() error {
	u, err := url.Parse(c.Backend.WSURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("BACKEND_WS_URL must be a ws:// or wss:// URL, got %q", c.Backend.WSURL)
	}
	if c.Backend.HTTPURL != "" {
		u, err := url.Parse(c.Backend.HTTPURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("BACKEND_HTTP_URL must be an http:// or https:// URL, got %q", c.Backend.HTTPURL)
		}
	}
	if c.Backend.ReconnectMin <= 0 || c.Backend.ReconnectMax < c.Backend.ReconnectMin {
		return fmt.Errorf("backend reconnect backoff must satisfy 0 < min <= max, got %s..%s",
			c.Backend.ReconnectMin, c.Backend.ReconnectMax)
	}
	return nil
}

func (c *Config) validateChannel() error {
	if c.Channel.DrainInterval <= 0 {
		return fmt.Errorf("CHANNEL_DRAIN_INTERVAL must be positive")
	}
	if c.Channel.QueueTTL <= 0 {
		return fmt.Errorf("CHANNEL_QUEUE_TTL must be positive")
	}
	if c.Channel.MaxQueue < 1 {
		return fmt.Errorf("CHANNEL_MAX_QUEUE must be at least 1, got %d", c.Channel.MaxQueue)
	}
	return nil
}

func (c *Config) validateConfirm() error {
	if c.Confirm.Timeout <= 0 || c.Confirm.OpenPollInterval <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT and CONFIRM_OPEN_POLL_INTERVAL must be positive")
	}
	if c.Confirm.Ceiling < c.Confirm.Timeout {
		return fmt.Errorf("CONFIRM_CEILING (%s) must not be shorter than CONFIRM_TIMEOUT (%s)",
			c.Confirm.Ceiling, c.Confirm.Timeout)
	}
	return nil
}

func (c *Config) validateEcho() error {
	if c.Echo.ModifyTTL <= 0 || c.Echo.CancelTTL <= 0 || c.Echo.SweepInterval <= 0 {
		return fmt.Errorf("echo TTLs and sweep interval must be positive")
	}
	return nil
}

func (c *Config) validateSlots() error {
	s := c.Slots
	if s.Duration < time.Minute || s.Duration%time.Minute != 0 {
		return fmt.Errorf("SLOT_DURATION must be a whole number of minutes, got %s", s.Duration)
	}
	if _, err := time.Parse("15:04", s.WindowStart); err != nil {
		return fmt.Errorf("SLOT_WINDOW_START must be HH:MM, got %q", s.WindowStart)
	}
	if s.DenseThreshold < 1 {
		return fmt.Errorf("SLOT_DENSE_THRESHOLD must be at least 1, got %d", s.DenseThreshold)
	}
	if s.DenseWidth <= 0 || s.SparseWidth <= 0 || s.Gap < 0 {
		return fmt.Errorf("slot widths must be positive and gap non-negative")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("SLOT_TIMEZONE %q: %w", s.Timezone, err)
	}
	return nil
}

func (c *Config) validateBlackout() error {
	for _, d := range c.Blackout.Dates {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return fmt.Errorf("BLACKOUT_DATES entry %q is not YYYY-MM-DD", d)
		}
	}
	for _, w := range c.Blackout.Weekdays {
		if !validWeekdays[strings.ToLower(w)] {
			return fmt.Errorf("BLACKOUT_WEEKDAYS entry %q is not a weekday name", w)
		}
	}
	return nil
}

func (c *Config) validateFallback() error {
	if !c.Fallback.Enabled || c.Backend.HTTPURL == "" {
		return nil
	}
	if c.Fallback.RatePerSecond <= 0 || c.Fallback.Burst < 1 {
		return fmt.Errorf("FALLBACK_RATE_PER_SECOND must be positive and FALLBACK_BURST at least 1")
	}
	if c.Fallback.BreakerMaxFailures < 1 {
		return fmt.Errorf("FALLBACK_BREAKER_MAX_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
