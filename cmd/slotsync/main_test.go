// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/tomtom215/slotsync/internal/config"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/store"
)

// testConfig loads the defaults from an empty working directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	return cfg
}

func sampleReservations() []models.Reservation {
	return []models.Reservation{
		{ID: "a", SubjectID: "s1", Date: "2026-03-02", Time: "09:30", DisplayName: "Bravo"},
		{ID: "b", SubjectID: "s2", Date: "2026-03-02", Time: "10:15", DisplayName: "Alpha"},
		{ID: "c", SubjectID: "s3", Date: "2026-03-02", Time: "09:00", DisplayName: "Aaron", Kind: models.KindFollowUp},
		{ID: "d", SubjectID: "s4", Date: "2026-03-02", Time: "09:45", DisplayName: "Fixed", Kind: models.KindNonMovable},
		{ID: "e", SubjectID: "s5", Date: "2026-03-02", Time: "11:00", DisplayName: "Echo"},
	}
}

func TestPackReservations(t *testing.T) {
	cfg := testConfig(t)
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatalf("newEngine() error = %v", err)
	}

	rows, err := packReservations(engine, sampleReservations())
	if err != nil {
		t.Fatalf("packReservations() error = %v", err)
	}

	want := []struct {
		id, slot, start, end string
		index                int
	}{
		{"d", "09:00", "09:45", "10:05", -1},
		{"b", "09:00", "09:00", "09:20", 0},
		{"a", "09:00", "09:21", "09:41", 1},
		{"c", "09:00", "09:42", "10:02", 2},
		{"e", "11:00", "11:00", "11:20", 0},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(rows), len(want), rows)
	}
	for i, w := range want {
		got := rows[i]
		if got.ID != w.id || got.Slot != w.slot || got.Index != w.index || got.Start != w.start || got.End != w.end {
			t.Errorf("row %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestPackReservations_SkipsInvalid(t *testing.T) {
	cfg := testConfig(t)
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	rs := append(sampleReservations(), models.Reservation{SubjectID: "s9", Date: "2026-03-02", Time: "09:00"})
	rows, err := packReservations(engine, rs)
	if err == nil {
		t.Error("expected an error for the reservation without id")
	}
	if len(rows) != 5 {
		t.Errorf("got %d rows, want the 5 valid ones", len(rows))
	}
}

func TestWritePacked(t *testing.T) {
	t.Parallel()

	rows := []packedEntry{
		{ID: "x", Date: "2026-03-02", Slot: "09:00", Index: -1, Start: "09:10", End: "09:30", Kind: "non_movable"},
	}

	var table bytes.Buffer
	if err := writePacked(&table, "table", rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "DATE") {
		t.Fatalf("table output = %q", table.String())
	}
	if fields := strings.Fields(lines[1]); fields[2] != "-" {
		t.Errorf("unpacked index column = %q, want -", fields[2])
	}

	var js bytes.Buffer
	if err := writePacked(&js, "json", rows); err != nil {
		t.Fatal(err)
	}
	var decoded []packedEntry
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil || len(decoded) != 1 || decoded[0].ID != "x" {
		t.Errorf("json output = %s (err %v)", js.String(), err)
	}

	if err := writePacked(&js, "yaml", rows); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestReadReservations(t *testing.T) {
	t.Parallel()

	body := `[{"id":"r1","subject_id":"s1","date":"2026-03-02","time":"09:00","kind":1}]`

	rs, err := readReservations("-", strings.NewReader(body))
	if err != nil || len(rs) != 1 || rs[0].Kind != models.KindFollowUp {
		t.Fatalf("stdin read = %+v, %v", rs, err)
	}

	path := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	rs, err = readReservations(path, nil)
	if err != nil || len(rs) != 1 || rs[0].ID != "r1" {
		t.Fatalf("file read = %+v, %v", rs, err)
	}

	if _, err := readReservations("-", strings.NewReader("{")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestWriteDateStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Blackout.Dates = []string{"2026-12-25"}
	cfg.Blackout.Weekdays = []string{"sunday"}
	cal, err := newCalendar(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	blocked := writeDateStatus(&buf, cal, []string{"2026-12-25", "2026-12-27", "2026-12-28", "bogus"})
	if blocked != 2 {
		t.Errorf("blocked = %d, want 2", blocked)
	}
	want := "2026-12-25\tblocked\n2026-12-27\tblocked\n2026-12-28\topen\nbogus\tinvalid\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	writeCalendar(&buf, cal)
	if buf.String() != "2026-12-25\nevery Sunday\n" {
		t.Errorf("list output = %q", buf.String())
	}
}

func TestBlackoutCommand_Strict(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BLACKOUT_DATES", "2026-12-25")

	var out bytes.Buffer
	run := func(args ...string) error {
		app := newApp()
		app.Writer = &out
		app.ExitErrHandler = func(*cli.Context, error) {}
		return app.Run(append([]string{"slotsync"}, args...))
	}

	if err := run("blackout", "check", "2026-12-24"); err != nil {
		t.Fatalf("check open date: %v", err)
	}
	err := run("blackout", "check", "--strict", "2026-12-25")
	if err == nil || !strings.Contains(err.Error(), errDatesBlocked.Error()) {
		t.Errorf("strict check error = %v", err)
	}
	if !strings.Contains(out.String(), "2026-12-25\tblocked") {
		t.Errorf("output = %q", out.String())
	}
}

func TestAssemble(t *testing.T) {
	cfg := testConfig(t)

	d, err := assemble(cfg)
	if err != nil {
		t.Fatalf("assemble() error = %v", err)
	}
	defer d.close()

	if d.fallback != nil {
		t.Error("fallback should be disabled without a backend HTTP URL")
	}
	if d.server.Addr != cfg.Server.Addr() {
		t.Errorf("server addr = %s", d.server.Addr)
	}
	if d.coordinator.Pending() != 0 {
		t.Error("fresh coordinator has pending mutations")
	}
	if d.stream.Len() == 0 {
		t.Error("broadcast handler is not attached to the stream")
	}
}

func TestSeedStore(t *testing.T) {
	cfg := testConfig(t)
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(engine)

	if err := seedStore(st, sampleReservations()); err != nil {
		t.Fatalf("seedStore() error = %v", err)
	}
	if st.Len() != 5 {
		t.Fatalf("store len = %d, want 5", st.Len())
	}

	a, _, ok := st.Get("a")
	if !ok {
		t.Fatal("reservation a missing")
	}
	if got := a.RawStart.Format(clockLayout); got != "09:21" {
		t.Errorf("a packed start = %s, want 09:21", got)
	}
}
