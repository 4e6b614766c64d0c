// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestAckData_ReasonPrefersError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ack  AckData
		want string
	}{
		{"error only", AckData{Error: "slot full"}, "slot full"},
		{"message only", AckData{Message: "ok"}, "ok"},
		{"both", AckData{Error: "slot full", Message: "ignored"}, "slot full"},
		{"neither", AckData{}, ""},
	}
	for _, tt := range tests {
		if got := tt.ack.Reason(); got != tt.want {
			t.Errorf("%s: Reason() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecodeReservation_NumericID(t *testing.T) {
	t.Parallel()

	env := &Envelope{}
	raw := `{"type":"reservation_updated","data":{"id":42,"subject_id":"s1","date":"2026-03-14","time_slot":"11:00","kind":1}}`
	if err := json.Unmarshal([]byte(raw), env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeReservationUpdated || !env.Type.IsBroadcast() {
		t.Fatalf("type = %s", env.Type)
	}

	data, err := DecodeReservation(env)
	if err != nil {
		t.Fatalf("DecodeReservation() error = %v", err)
	}
	if data.ID != "42" {
		t.Errorf("id = %q, want 42", data.ID)
	}
	if data.Kind == nil || *data.Kind != KindFollowUp {
		t.Errorf("kind = %v, want follow-up", data.Kind)
	}
	if data.DisplayName != nil {
		t.Errorf("display name should be absent, got %q", *data.DisplayName)
	}
}

func TestOutbound_ModifyShape(t *testing.T) {
	t.Parallel()

	msg := Outbound{
		Type: TypeModifyReservation,
		Data: ModifyReservationData{SubjectID: "s1", Date: "2026-03-14", TimeSlot: "11:00", CorrelationID: "c1"},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{`"type":"modify_reservation"`, `"approximate":false`, `"correlation_id":"c1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	for _, absent := range []string{"display_name", `"kind"`} {
		if strings.Contains(out, absent) {
			t.Errorf("optional field %s should be omitted: %s", absent, out)
		}
	}
}

func TestMessageType_Classification(t *testing.T) {
	t.Parallel()

	if !TypeCancelAck.IsAck() || TypeCancelAck.IsNack() {
		t.Error("cancel ack misclassified")
	}
	if !TypeModifyNack.IsNack() || TypeModifyNack.IsAck() {
		t.Error("modify nack misclassified")
	}
	if TypeModifyReservation.IsBroadcast() {
		t.Error("outbound type is not a broadcast")
	}
}

func TestFailed_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind       FailureKind
		wantMsg    string
		wantRevert bool
	}{
		{FailureRejected, ReasonSlotUnavailable, true},
		{FailureTimedOut, ReasonTimedOut, true},
		{FailureBlocked, ReasonBlockedDate, true},
		{FailureStale, ReasonStale, false},
		{FailureSuperseded, ReasonSuperseded, false},
	}
	for _, tt := range tests {
		r := Failed(tt.kind, "")
		if r.Success || r.Message != tt.wantMsg || r.Revert != tt.wantRevert {
			t.Errorf("Failed(%s) = %+v", tt.kind, r)
		}
	}

	if r := Failed(FailureRejected, "closed for lunch"); r.Message != "closed for lunch" {
		t.Errorf("explicit reason lost: %+v", r)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	if KindNonMovable.Movable() || !KindFollowUp.Movable() {
		t.Error("movability wrong")
	}
	r := Reservation{Kind: KindRegular, Cancelled: true}
	if r.Packable() {
		t.Error("cancelled reservation must not be packable")
	}
}

func TestReservationData_MergeKeepsMissingFields(t *testing.T) {
	t.Parallel()

	prev := Reservation{
		ID:          "tmp-1",
		SubjectID:   "s1",
		Date:        "2026-03-02",
		Time:        "09:30",
		SlotTime:    "09:00",
		Kind:        KindFollowUp,
		DisplayName: "Ada",
		Cancelled:   true,
	}
	env := &Envelope{Type: TypeReservationUpdated, Data: []byte(`{"id":17,"subject_id":"s1","date":"2026-03-03","time_slot":"13:15"}`)}
	data, err := DecodeReservation(env)
	if err != nil {
		t.Fatalf("DecodeReservation() error = %v", err)
	}

	got := data.Merge(prev)
	if got.ID != "17" || got.Date != "2026-03-03" || got.Time != "13:15" {
		t.Errorf("Merge() identity/position = %s %s %s", got.ID, got.Date, got.Time)
	}
	if got.DisplayName != "Ada" || got.Kind != KindFollowUp {
		t.Errorf("Merge() dropped optional fields: name=%q kind=%v", got.DisplayName, got.Kind)
	}
	if got.Cancelled {
		t.Error("Merge() kept the cancelled flag")
	}
	if !got.RawStart.IsZero() {
		t.Error("Merge() kept the old render position")
	}
}
