// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package echo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/slotsync/internal/models"
)

func TestRegistry_MarkAndExpire(t *testing.T) {
	t.Parallel()

	r := NewRegistry(time.Second)
	key := ModifyKey("s1", "2026-03-14", "11:00", false)

	r.Mark(key, 80*time.Millisecond)
	if !r.IsMarked(key) {
		t.Fatal("key should be marked immediately after Mark")
	}

	time.Sleep(120 * time.Millisecond)
	if r.IsMarked(key) {
		t.Error("key should have expired")
	}
	if r.Len() != 0 {
		t.Errorf("expired entry should be removed on lookup, len=%d", r.Len())
	}
}

func TestRegistry_Unmark(t *testing.T) {
	t.Parallel()

	r := NewRegistry(time.Second)
	key := CancelKey("s1", "2026-03-14")
	r.Mark(key, time.Minute)
	r.Unmark(key)
	if r.IsMarked(key) {
		t.Error("key should be gone after Unmark")
	}
}

func TestRegistry_JanitorSweeps(t *testing.T) {
	t.Parallel()

	r := NewRegistry(20 * time.Millisecond)
	for i := 0; i < 50; i++ {
		r.Mark(ModifyKey("s", "2026-03-14", time.Duration(i).String(), false), 10*time.Millisecond)
	}
	r.Mark("keep", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for r.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if r.Len() != 1 {
		t.Errorf("janitor left %d entries, want 1", r.Len())
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() returned %v, want context.Canceled", err)
	}
}

func TestBroadcastKeys(t *testing.T) {
	t.Parallel()

	r := NewRegistry(time.Second)
	r.Mark(ModifyKey("s1", "2026-03-14", "11:00", false), time.Minute)
	r.Mark(ModifyKey("s2", "2026-03-15", "", true), time.Minute)
	r.Mark(CancelKey("s3", "2026-03-16"), time.Minute)

	tests := []struct {
		name string
		typ  models.MessageType
		subj string
		date string
		slot string
		want bool
	}{
		{"exact modify echo", models.TypeReservationUpdated, "s1", "2026-03-14", "11:00", true},
		{"same subject other slot", models.TypeReservationUpdated, "s1", "2026-03-14", "13:00", false},
		{"other subject same slot", models.TypeReservationUpdated, "s9", "2026-03-14", "11:00", false},
		{"approximate matches any slot", models.TypeReservationReinstated, "s2", "2026-03-15", "15:00", true},
		{"approximate other date", models.TypeReservationUpdated, "s2", "2026-03-16", "15:00", false},
		{"cancel echo", models.TypeReservationCancelled, "s3", "2026-03-16", "09:00", true},
		{"modify mark does not hide cancel", models.TypeReservationCancelled, "s1", "2026-03-14", "11:00", false},
	}
	for _, tt := range tests {
		got := r.IsMarkedAny(BroadcastKeys(tt.typ, tt.subj, tt.date, tt.slot)...)
		if got != tt.want {
			t.Errorf("%s: marked = %v, want %v", tt.name, got, tt.want)
		}
	}
}
