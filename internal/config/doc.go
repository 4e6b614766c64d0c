// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package config loads and validates Slotsync configuration.
//
// Configuration is layered with koanf, later layers overriding earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (CONFIG_PATH, ./config.yaml, /etc/slotsync/config.yaml)
//  3. Environment variables, after an optional .env file has been preloaded
//
// Environment variables are mapped explicitly (see envMappings). Unknown
// variables are ignored so unrelated process environment never leaks into
// the configuration.
//
// Example config.yaml:
//
//	backend:
//	  ws_url: wss://reservations.example.com/ws
//	  http_url: https://reservations.example.com
//	slots:
//	  duration: 2h
//	  window_start: "09:00"
//	blackout:
//	  dates: ["2026-12-25"]
//	  weekdays: ["sunday"]
package config
