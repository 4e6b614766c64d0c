// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package services adapts Slotsync components to suture.Service.

Two lifecycle patterns are covered:

Run pattern (RunnerService): the component already has a context-aware
Run(ctx) error loop. The wrapper only names it for supervisor logs.

  - NewTransportService: backend WebSocket dial/read/reconnect loop
  - NewChannelService: outbound queue drain and expiry
  - NewEchoJanitorService: expired echo fingerprint sweep
  - NewUIHubService: UI client fan-out

ListenAndServe pattern (HTTPServerService): translates http.Server's
blocking ListenAndServe into Serve and drains connections with Shutdown when
the context ends.

Return values determine supervisor behavior:

	ctx.Err()   -> shutdown requested, normal termination
	error       -> crashed, the supervisor restarts it with backoff
	nil         -> stopped early, the supervisor restarts it
*/
package services
