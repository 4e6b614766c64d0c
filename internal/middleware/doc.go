// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package middleware provides HTTP middleware for the local control API.

  - RequestID: propagates or assigns X-Request-ID and seeds the logging
    context with request and correlation ids
  - PrometheusMetrics: counts requests and observes latency per chi route
    pattern, so path parameters never inflate label cardinality
  - SecurityHeaders: conservative response headers for JSON endpoints

All middleware has the chi signature func(http.Handler) http.Handler.

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SecurityHeaders)
*/
package middleware
