// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package api serves the local control API that UI collaborators use to read the
event store and issue coordinated mutations.

Endpoints:

	GET  /api/v1/health                 engine and transport status
	GET  /api/v1/events                 reservations, optionally filtered by date or subject
	POST /api/v1/reservations/modify    move or edit a reservation
	POST /api/v1/reservations/cancel    cancel a subject's reservation on a date
	GET  /ws                            live UI updates (see package uihub)
	GET  /metrics                       Prometheus metrics

Every JSON response uses the same envelope:

	{"success": true,  "data": {...}, "meta": {...}}
	{"success": false, "error": {"code": "REJECTED", "message": "...", "details": {...}}, "meta": {...}}

Mutation endpoints block until the coordinator resolves the request, so their
latency is bounded by the confirmation ceiling. A failed mutation carries the
coordinator Result in error.details; its revert flag tells the UI whether to
animate the entry back.

Middleware (applied in order): request id with logging context, real IP,
panic recovery, CORS, security headers, Prometheus metrics, and httprate
limits (a permissive limit for health, the configured limit for everything
else).
*/
package api
