// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tomtom215/slotsync/internal/blackout"
	"github.com/tomtom215/slotsync/internal/config"
)

// errDatesBlocked makes "blackout check --strict" exit non-zero.
var errDatesBlocked = errors.New("one or more dates are blocked")

func blackoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "blackout",
		Usage: "Inspect the configured blackout calendar.",
		Subcommands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Report whether each date is blocked.",
				ArgsUsage: "YYYY-MM-DD...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "strict", Usage: "exit non-zero when any date is blocked"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("at least one date is required", 2)
					}
					cal, err := loadCalendar(c)
					if err != nil {
						return err
					}
					blocked := writeDateStatus(c.App.Writer, cal, c.Args().Slice())
					if blocked > 0 && c.Bool("strict") {
						return cli.Exit(errDatesBlocked.Error(), 1)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "Print the explicitly blocked dates and weekdays.",
				Action: func(c *cli.Context) error {
					cal, err := loadCalendar(c)
					if err != nil {
						return err
					}
					writeCalendar(c.App.Writer, cal)
					return nil
				},
			},
		},
	}
}

func loadCalendar(c *cli.Context) (*blackout.Calendar, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newCalendar(cfg)
}

func newCalendar(cfg *config.Config) (*blackout.Calendar, error) {
	loc, err := slotLocation(cfg)
	if err != nil {
		return nil, err
	}
	cal, err := blackout.New(blackout.Config{
		Dates:    cfg.Blackout.Dates,
		Weekdays: cfg.Blackout.Weekdays,
		ICSFiles: cfg.Blackout.ICSFiles,
		Location: loc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load blackout calendar: %w", err)
	}
	return cal, nil
}

// writeDateStatus prints one line per date and returns how many are blocked.
// Malformed dates are reported as invalid and never count as blocked.
func writeDateStatus(w io.Writer, cal *blackout.Calendar, dates []string) int {
	blocked := 0
	for _, d := range dates {
		status := "open"
		switch {
		case !validDate(d):
			status = "invalid"
		case cal.IsBlockedDate(d):
			status = "blocked"
			blocked++
		}
		fmt.Fprintf(w, "%s\t%s\n", d, status)
	}
	return blocked
}

func writeCalendar(w io.Writer, cal *blackout.Calendar) {
	for _, d := range cal.Dates() {
		fmt.Fprintln(w, d)
	}
	for _, wd := range cal.Weekdays() {
		fmt.Fprintf(w, "every %s\n", wd)
	}
}

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
