// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package logging provides centralized zerolog-based structured logging for Slotsync.
//
// Every component logs through the package-level helpers so that level,
// format and output are configured once at startup:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("subject_id", id).Msg("Modify confirmed")
//	logging.Warn().Err(err).Msg("Transport write failed")
//
// # Correlation
//
// Mutations carry a correlation id from the moment the coordinator accepts
// them until the backend acknowledges or rejects them. Attach it to a context
// and every log line written through Ctx carries it:
//
//	ctx = logging.ContextWithCorrelationID(ctx, correlationID)
//	logging.Ctx(ctx).Info().Msg("Awaiting confirmation")
//
// # Supervision
//
// The suture supervisor logs through slog. NewSlogLogger returns an
// slog.Logger that writes into the same zerolog pipeline.
//
// # Configuration
//
// Environment Variables (mapped through internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
package logging
