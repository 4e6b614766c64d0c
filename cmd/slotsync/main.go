// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tomtom215/slotsync/internal/config"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/slots"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Error().Err(err).Msg("slotsync failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "slotsync",
		Usage:   "Keep a local reservation calendar in sync with the scheduling backend.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.ConfigPathEnvVar},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			packCommand(),
			blackoutCommand(),
		},
	}
}

// loadConfig reads the configuration and initializes logging from it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}

// slotLocation resolves the configured slot timezone.
func slotLocation(cfg *config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Slots.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid slot timezone %q: %w", cfg.Slots.Timezone, err)
	}
	return loc, nil
}

// newEngine builds the slot engine from the slots section.
func newEngine(cfg *config.Config) (*slots.Engine, error) {
	loc, err := slotLocation(cfg)
	if err != nil {
		return nil, err
	}
	return slots.New(slots.Config{
		Duration:       cfg.Slots.Duration,
		WindowStart:    cfg.Slots.WindowStart,
		DenseThreshold: cfg.Slots.DenseThreshold,
		DenseWidth:     cfg.Slots.DenseWidth,
		SparseWidth:    cfg.Slots.SparseWidth,
		Gap:            cfg.Slots.Gap,
		Location:       loc,
	})
}
