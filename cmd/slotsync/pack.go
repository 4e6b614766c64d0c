// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/slots"
	"github.com/tomtom215/slotsync/internal/store"
)

const clockLayout = "15:04"

// packedEntry is one row of the pack output. Index is -1 for entries that do
// not take part in packing.
type packedEntry struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Slot        string `json:"slot"`
	Index       int    `json:"index"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func packCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Print the packed layout of a JSON list of reservations.",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "reservations JSON file, - for stdin", Value: "-"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output format: json or table", Value: "table"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			engine, err := newEngine(cfg)
			if err != nil {
				return fmt.Errorf("failed to build slot engine: %w", err)
			}

			rs, err := readReservations(c.String("input"), os.Stdin)
			if err != nil {
				return err
			}
			rows, err := packReservations(engine, rs)
			if err != nil {
				return err
			}
			return writePacked(c.App.Writer, c.String("format"), rows)
		},
	}
}

// readReservations decodes a JSON array of reservations from path, or from
// stdin when path is "-".
func readReservations(path string, stdin io.Reader) ([]models.Reservation, error) {
	r := stdin
	if path != "-" && path != "" {
		f, err := os.Open(path) //nolint:gosec // operator-supplied input file
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var rs []models.Reservation
	if err := json.NewDecoder(r).Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return rs, nil
}

// packReservations runs rs through a scratch store and returns the layout
// ordered by date, slot and packing index.
func packReservations(engine *slots.Engine, rs []models.Reservation) ([]packedEntry, error) {
	st := store.New(engine)
	seedErr := seedStore(st, rs)

	bySlot := make(map[models.SlotKey][]models.Reservation)
	for _, r := range st.All() {
		bySlot[r.Slot()] = append(bySlot[r.Slot()], r)
	}

	rows := make([]packedEntry, 0, st.Len())
	for key, members := range bySlot {
		positioned, err := engine.PackSlot(members)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", key, err)
		}
		packed := make(map[string]bool, len(positioned))
		for _, p := range positioned {
			packed[p.Reservation.ID] = true
			rows = append(rows, newPackedEntry(p.Reservation, p.Index, p.Start, p.End))
		}
		for _, r := range members {
			if !packed[r.ID] {
				rows = append(rows, newPackedEntry(r, -1, r.RawStart, r.RawEnd))
			}
		}
	}

	slices.SortFunc(rows, func(a, b packedEntry) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Slot, b.Slot),
			cmp.Compare(a.Index, b.Index),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return rows, seedErr
}

func newPackedEntry(r models.Reservation, index int, start, end time.Time) packedEntry {
	return packedEntry{
		ID:          r.ID,
		SubjectID:   r.SubjectID,
		DisplayName: r.DisplayName,
		Kind:        r.Kind.String(),
		Date:        r.Date,
		Slot:        r.SlotTime,
		Index:       index,
		Start:       start.Format(clockLayout),
		End:         end.Format(clockLayout),
	}
}

func writePacked(w io.Writer, format string, rows []packedEntry) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tSLOT\tIDX\tSTART\tEND\tKIND\tID\tNAME")
		for _, r := range rows {
			idx := fmt.Sprint(r.Index)
			if r.Index < 0 {
				idx = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Date, r.Slot, idx, r.Start, r.End, r.Kind, r.ID, r.DisplayName)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
