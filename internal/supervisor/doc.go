// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package supervisor provides process supervision for Slotsync using suture v4.

Every long-running loop in the engine runs as a supervised service, so a
crashed loop is restarted with backoff instead of taking the process down.

# Overview

The tree has three layers for failure isolation:

	RootSupervisor ("slotsync")
	├── TransportSupervisor ("transport-layer")
	│   ├── backend-transport   WebSocket dial/read/reconnect loop
	│   └── outbound-channel    queue drain and expiry
	├── EngineSupervisor ("engine-layer")
	│   └── echo-janitor        expired fingerprint sweep
	└── APISupervisor ("api-layer")
	    ├── ui-hub              UI client fan-out
	    └── http-server         control API

A reconnect storm in the transport layer never restarts the HTTP server, and
an HTTP listener failure never drops the backend connection.

# Logging

Supervisor events go through sutureslog into an slog.Logger. Pass
logging.NewSlogLogger so they land in the same zerolog output as everything
else:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddTransportService(services.NewTransportService(transport))
	tree.AddTransportService(services.NewChannelService(ch))
	tree.AddEngineService(services.NewEchoJanitorService(echoes))
	tree.AddAPIService(services.NewUIHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	errCh := tree.ServeBackground(ctx)

# Shutdown

Cancelling the context stops every layer. Services that do not return
within ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
