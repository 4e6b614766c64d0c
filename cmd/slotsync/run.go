// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tomtom215/slotsync/internal/api"
	"github.com/tomtom215/slotsync/internal/blackout"
	"github.com/tomtom215/slotsync/internal/broadcast"
	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/config"
	"github.com/tomtom215/slotsync/internal/confirm"
	"github.com/tomtom215/slotsync/internal/coordinator"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/fallback"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/store"
	"github.com/tomtom215/slotsync/internal/supervisor"
	"github.com/tomtom215/slotsync/internal/supervisor/services"
	"github.com/tomtom215/slotsync/internal/uihub"
)

const (
	snapshotTimeout = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the synchronization engine and the local control API.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-snapshot", Usage: "skip the initial HTTP snapshot load"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			d, err := assemble(cfg)
			if err != nil {
				return err
			}
			defer d.close()

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			if !c.Bool("no-snapshot") {
				d.loadSnapshot(ctx)
			}
			return d.serve(ctx, cancel)
		},
	}
}

// daemon holds the assembled engine.
type daemon struct {
	cfg *config.Config

	store       *store.Store
	stream      *channel.Stream
	transport   *channel.WebSocketTransport
	channel     *channel.Channel
	echoes      *echo.Registry
	calendar    *blackout.Calendar
	fallback    *fallback.Client
	coordinator *coordinator.Coordinator
	hub         *uihub.Hub
	server      *http.Server

	unsubscribe []func()
}

// assemble wires every component from cfg. Nothing touches the network until
// serve starts the supervisor tree.
func assemble(cfg *config.Config) (*daemon, error) {
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build slot engine: %w", err)
	}
	loc, err := slotLocation(cfg)
	if err != nil {
		return nil, err
	}

	calendar, err := newCalendar(cfg)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:      cfg,
		store:    store.New(engine),
		stream:   channel.NewStream(),
		echoes:   echo.NewRegistry(cfg.Echo.SweepInterval),
		calendar: calendar,
	}

	d.transport = channel.NewWebSocketTransport(channel.WebSocketConfig{
		URL:              cfg.Backend.WSURL,
		Token:            cfg.Backend.Token,
		HandshakeTimeout: cfg.Backend.HandshakeTimeout,
		ReconnectMin:     cfg.Backend.ReconnectMin,
		ReconnectMax:     cfg.Backend.ReconnectMax,
		PingInterval:     cfg.Backend.PingInterval,
	}, d.stream)
	d.channel = channel.New(d.transport, channel.Config{
		DrainInterval: cfg.Channel.DrainInterval,
		QueueTTL:      cfg.Channel.QueueTTL,
		MaxQueue:      cfg.Channel.MaxQueue,
	})

	registry := confirm.New(d.stream, d.channel, confirm.Config{
		Timeout:          cfg.Confirm.Timeout,
		Ceiling:          cfg.Confirm.Ceiling,
		OpenPollInterval: cfg.Confirm.OpenPollInterval,
	})

	opts := coordinator.Options{Blocked: calendar}
	if cfg.Fallback.Enabled {
		client, err := fallback.New(fallback.Config{
			BaseURL:            cfg.Backend.HTTPURL,
			Token:              cfg.Backend.Token,
			Timeout:            cfg.Fallback.Timeout,
			RatePerSecond:      cfg.Fallback.RatePerSecond,
			Burst:              cfg.Fallback.Burst,
			BreakerMaxFailures: cfg.Fallback.BreakerMaxFailures,
			BreakerTimeout:     cfg.Fallback.BreakerTimeout,
		})
		switch {
		case errors.Is(err, fallback.ErrDisabled):
			logging.Info().Msg("HTTP fallback disabled: no backend HTTP URL configured")
		case err != nil:
			return nil, fmt.Errorf("failed to create HTTP fallback client: %w", err)
		default:
			d.fallback = client
			opts.HTTP = client
		}
	}

	d.coordinator = coordinator.New(d.store, d.channel, registry, d.echoes, coordinator.Config{
		ConfirmTimeout: cfg.Confirm.Timeout,
		ModifyEchoTTL:  cfg.Echo.ModifyTTL,
		CancelEchoTTL:  cfg.Echo.CancelTTL,
	}, opts)

	d.hub = uihub.NewHub(d.store.All)
	d.unsubscribe = append(d.unsubscribe, d.store.Subscribe(d.hub))

	sub := broadcast.New(d.store, d.echoes, d.hub).Attach(d.stream)
	d.unsubscribe = append(d.unsubscribe, sub.Unsubscribe)

	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security))
	handler := api.NewHandler(api.Deps{
		Events:         d.store,
		Mutator:        d.coordinator,
		Channel:        d.channel,
		Hub:            d.hub,
		AllowedOrigins: mw.AllowedOrigins(),
		Version:        version,
	})
	d.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	logging.Info().
		Str("backend_ws", cfg.Backend.WSURL).
		Bool("http_fallback", d.fallback != nil).
		Int("blackout_dates", len(calendar.Dates())).
		Str("timezone", loc.String()).
		Msg("Engine assembled")
	return d, nil
}

// loadSnapshot seeds the store from the HTTP fallback. Failure is logged and
// the engine starts empty; broadcasts fill the calendar as they arrive.
func (d *daemon) loadSnapshot(ctx context.Context) {
	if d.fallback == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	rs, err := d.fallback.ListReservations(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Initial snapshot load failed, starting with an empty calendar")
		return
	}
	if err := seedStore(d.store, rs); err != nil {
		logging.Warn().Err(err).Msg("Some snapshot reservations were skipped")
	}
	logging.Info().Int("reservations", d.store.Len()).Msg("Initial snapshot loaded")
}

// seedStore replaces the store content with rs and packs every slot it
// touches.
func seedStore(st *store.Store, rs []models.Reservation) error {
	replaceErr := st.Replace(rs, store.OriginRemote)

	all := st.All()
	keys := make([]models.SlotKey, 0, len(all))
	for i := range all {
		keys = append(keys, all[i].Slot())
	}
	return errors.Join(replaceErr, st.Reflow(keys...))
}

// serve runs the supervisor tree until ctx is cancelled or a signal arrives.
func (d *daemon) serve(ctx context.Context, cancel context.CancelFunc) error {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	tree.AddTransportService(services.NewTransportService(d.transport))
	tree.AddTransportService(services.NewChannelService(d.channel))
	tree.AddEngineService(services.NewEchoJanitorService(d.echoes))
	tree.AddAPIService(services.NewUIHubService(d.hub))
	tree.AddAPIService(services.NewHTTPServerService(d.server, shutdownTimeout))
	logging.Info().Str("addr", d.server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Int("pending", d.coordinator.Pending()).Msg("slotsync stopped")
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("supervisor tree stopped: %w", serveErr)
	}
	return nil
}

func (d *daemon) close() {
	for _, fn := range d.unsubscribe {
		fn()
	}
}
