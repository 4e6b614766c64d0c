// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Command slotsync runs the reservation synchronization engine.

Subcommands:

	slotsync run                 start the engine and the local control API
	slotsync pack [-i file]      print the packed layout of a reservation list
	slotsync blackout check D... report whether dates are blocked
	slotsync blackout list       print the explicitly blocked dates

Every subcommand reads the same configuration: an optional YAML file given
with --config (or found as ./config.yaml), then environment variables such
as BACKEND_WS_URL and SLOT_DURATION. A .env file in the working directory is
loaded first.

The run command assembles the engine under a suture supervisor tree:

	slotsync
	├── transport-layer
	│   ├── backend-transport   (WebSocket to the backend)
	│   └── outbound-channel    (queue drain)
	├── engine-layer
	│   └── echo-janitor
	└── api-layer
	    ├── ui-hub
	    └── http-server

SIGINT and SIGTERM cancel the root context. Services that overrun the
shutdown timeout are reported by name.
*/
package main
