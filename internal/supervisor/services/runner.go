// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package services

import (
	"context"
	"fmt"
)

// Runner is a component with a blocking, context-aware main loop.
//
// Satisfied by *channel.WebSocketTransport, *channel.Channel, *echo.Registry
// and *uihub.Hub.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService wraps a Runner as a supervised service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps runner under the given service name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// NewTransportService supervises the backend transport loop.
func NewTransportService(transport Runner) *RunnerService {
	return NewRunnerService("backend-transport", transport)
}

// NewChannelService supervises the outbound channel drain loop.
func NewChannelService(ch Runner) *RunnerService {
	return NewRunnerService("outbound-channel", ch)
}

// NewEchoJanitorService supervises the echo registry sweep.
func NewEchoJanitorService(echoes Runner) *RunnerService {
	return NewRunnerService("echo-janitor", echoes)
}

// NewUIHubService supervises the UI hub loop.
func NewUIHubService(hub Runner) *RunnerService {
	return NewRunnerService("ui-hub", hub)
}

// Serve implements suture.Service. A panic inside the runner is returned as
// an error so the supervisor restarts it.
func (s *RunnerService) Serve(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.name, r)
		}
	}()
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer. Suture uses it to name the service in logs.
func (s *RunnerService) String() string {
	return s.name
}
