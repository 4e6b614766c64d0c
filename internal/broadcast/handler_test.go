// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package broadcast

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/slots"
	"github.com/tomtom215/slotsync/internal/store"
)

const day = "2026-03-02"

type notifications struct {
	mu    sync.Mutex
	items []Notification
}

func (n *notifications) Notify(_ string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, payload.(Notification))
}

func (n *notifications) list() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

type fixture struct {
	store   *store.Store
	echoes  *echo.Registry
	stream  *channel.Stream
	notices *notifications
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := slots.New(slots.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		store:   store.New(engine),
		echoes:  echo.NewRegistry(time.Second),
		stream:  channel.NewStream(),
		notices: &notifications{},
	}
	New(f.store, f.echoes, f.notices).Attach(f.stream)
	return f
}

func (f *fixture) publish(t *testing.T, typ models.MessageType, data map[string]any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	f.stream.Publish(models.Envelope{Type: typ, Data: raw})
}

func TestHandle_EchoSuppressionWindow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, _, err := f.store.Put(models.Reservation{ID: "a", SubjectID: "s1", Date: day, Time: "09:30"}, store.OriginRemote); err != nil {
		t.Fatal(err)
	}

	// A local modify of s1 to 11:30 has just succeeded.
	f.echoes.Mark(echo.ModifyKey("s1", day, "11:00", false), 4500*time.Millisecond)

	f.publish(t, models.TypeReservationUpdated, map[string]any{"id": "a", "subject_id": "s1", "date": day, "time_slot": "11:30"})
	f.publish(t, models.TypeReservationUpdated, map[string]any{"id": "b", "subject_id": "s2", "date": day, "time_slot": "11:40"})

	// The echo still reconciles the store.
	a, _, ok := f.store.Get("a")
	if !ok || a.SlotTime != "11:00" || a.Time != "11:30" {
		t.Errorf("echo not applied to store: %+v", a)
	}

	got := f.notices.list()
	if len(got) != 1 {
		t.Fatalf("notifications = %+v, want exactly the other subject's change", got)
	}
	if got[0].Reservation.SubjectID != "s2" || got[0].Type != models.TypeReservationUpdated {
		t.Errorf("notification = %+v", got[0])
	}
}

func TestHandle_ApproximateEchoMatchesAnySlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.echoes.Mark(echo.ModifyKey("s1", day, "", true), time.Second)

	f.publish(t, models.TypeReservationUpdated, map[string]any{"id": "a", "subject_id": "s1", "date": day, "time_slot": "15:20"})
	if n := len(f.notices.list()); n != 0 {
		t.Errorf("approximate echo produced %d notifications", n)
	}
}

func TestHandle_CreatedUpdatedCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.publish(t, models.TypeReservationCreated, map[string]any{"id": 7, "subject_id": "s1", "date": day, "time_slot": "09:40", "display_name": "Ada", "kind": 1})
	r, _, ok := f.store.Get("7")
	if !ok || r.DisplayName != "Ada" || r.Kind != models.KindFollowUp || r.SlotTime != "09:00" {
		t.Fatalf("created entry = %+v", r)
	}
	if got := r.RawStart.UTC().Format("15:04"); got != "09:00" {
		t.Errorf("created entry packed at %s, want 09:00", got)
	}

	f.publish(t, models.TypeReservationUpdated, map[string]any{"id": "7", "subject_id": "s1", "date": "2026-03-03", "time_slot": "13:05"})
	r, _, _ = f.store.Get("7")
	if r.Date != "2026-03-03" || r.SlotTime != "13:00" || r.DisplayName != "Ada" {
		t.Errorf("updated entry = %+v", r)
	}

	f.publish(t, models.TypeReservationCancelled, map[string]any{"id": "7", "subject_id": "s1", "date": "2026-03-03"})
	if _, _, ok := f.store.Get("7"); ok {
		t.Error("cancelled entry still in store")
	}

	got := f.notices.list()
	if len(got) != 3 {
		t.Fatalf("notifications = %d, want 3", len(got))
	}
	if !got[2].Reservation.Cancelled {
		t.Error("cancel notification does not carry the cancelled flag")
	}
}

func TestHandle_TemporaryIDRekeyed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.publish(t, models.TypeReservationCreated, map[string]any{"subject_id": "s1", "date": day, "time_slot": "09:30"})
	all := f.store.All()
	if len(all) != 1 || !strings.HasPrefix(all[0].ID, tempIDPrefix) {
		t.Fatalf("store = %+v, want one temporary entry", all)
	}

	f.publish(t, models.TypeReservationUpdated, map[string]any{"id": 99, "subject_id": "s1", "date": day, "time_slot": "09:30"})
	all = f.store.All()
	if len(all) != 1 || all[0].ID != "99" {
		t.Errorf("store = %+v, want the entry rekeyed to 99", all)
	}
}

func TestHandle_IgnoresMalformedAndNonBroadcast(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.stream.Publish(models.Envelope{Type: models.TypeReservationCreated, Data: []byte(`{"id":`)})
	f.publish(t, models.TypeReservationCreated, map[string]any{"id": "x", "date": day})
	f.publish(t, models.TypeModifyAck, map[string]any{"correlation_id": "c1"})
	f.publish(t, models.TypeReservationCreated, map[string]any{"id": "x", "subject_id": "s1", "date": day, "time_slot": "bogus"})

	if f.store.Len() != 0 {
		t.Errorf("store has %d entries, want 0", f.store.Len())
	}
	if n := len(f.notices.list()); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

func TestHandle_CancelEchoForAlreadyRemovedEntry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.echoes.Mark(echo.CancelKey("s1", day), 2*time.Second)

	f.publish(t, models.TypeReservationCancelled, map[string]any{"id": "a", "subject_id": "s1", "date": day})
	if n := len(f.notices.list()); n != 0 {
		t.Errorf("cancel echo produced %d notifications", n)
	}
}
