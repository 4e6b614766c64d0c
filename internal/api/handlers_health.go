// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/slotsync/internal/channel"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	// Status is "healthy" while the backend transport is open and "degraded"
	// otherwise. Mutations still queue while degraded.
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	Transport        string  `json:"transport"`
	QueueDepth       int     `json:"queue_depth"`
	PendingMutations int     `json:"pending_mutations"`
	Events           int     `json:"events"`
	UIClients        int     `json:"ui_clients"`
	Uptime           float64 `json:"uptime_seconds"`
}

// Health reports engine and transport status. It always answers 200 so
// monitors can tell a degraded engine from a dead one.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Transport: channel.StateClosed.String(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	if h.channel != nil {
		state := h.channel.State()
		status.Transport = state.String()
		status.QueueDepth = h.channel.QueueDepth()
		if state != channel.StateOpen {
			status.Status = "degraded"
		}
	} else {
		status.Status = "degraded"
	}
	if h.mutator != nil {
		status.PendingMutations = h.mutator.Pending()
	}
	if h.events != nil {
		status.Events = h.events.Len()
	}
	if h.hub != nil {
		status.UIClients = h.hub.ClientCount()
	}

	NewResponseWriter(w, r).Success(status)
}
