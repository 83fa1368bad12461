// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package main is the entry point for the Warden server.
//
// Warden watches a proxy's account database: it tails the login-event
// change feed, correlates device and network history per account to
// flag leaked or shared credentials and VPN usage, and drives each
// account's lifecycle (active, inactive, expired, banned) with sweeps
// and admin actions.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, yaml, env)
//  2. Store: MongoDB connection over the proxy's collections
//  3. Reputation: rate-limited, circuit-broken VPN/GeoIP clients
//  4. Detection: the correlator with its four rules
//  5. Lifecycle: the account state machine
//  6. Services: feed consumer, sweeps, HTTP server, all under a
//     suture supervisor tree
//
// # Configuration
//
// Everything is configurable via WARDEN_-prefixed environment
// variables or a yaml file (WARDEN_CONFIG_PATH). The only required
// setting is the MongoDB URI:
//
//	export WARDEN_MONGO_URI=mongodb://localhost:27017
//	./warden
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the feed consumer
// saves its checkpoint, sweeps finish their current account, and the
// HTTP server drains in-flight requests.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/warden/internal/alert"
	"github.com/tomtom215/warden/internal/api"
	"github.com/tomtom215/warden/internal/config"
	"github.com/tomtom215/warden/internal/detection"
	"github.com/tomtom215/warden/internal/feed"
	"github.com/tomtom215/warden/internal/lifecycle"
	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/reputation"
	"github.com/tomtom215/warden/internal/store"
	"github.com/tomtom215/warden/internal/supervisor"
	"github.com/tomtom215/warden/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors use the default logger, config is not available.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("database", cfg.Mongo.Database).
		Msg("Starting Warden")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	st, err := store.Connect(connectCtx, cfg.Mongo)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store connected")

	checker := reputation.NewChecker(reputation.Config{
		ProxyCheckURL:     cfg.Reputation.ProxyCheckURL,
		ProxyCheckKey:     cfg.Reputation.ProxyCheckKey,
		GeoURL:            cfg.Reputation.GeoURL,
		Timeout:           cfg.Reputation.Timeout,
		RequestsPerSecond: cfg.Reputation.RequestsPerSecond,
		BreakerFailures:   cfg.Reputation.BreakerFailures,
		BreakerTimeout:    cfg.Reputation.BreakerTimeout,
	}, nil)

	emitter := alert.NewFanout(alert.NewLogEmitter())

	history := store.NewFingerprintHistory(st, cfg.Detection.CountryLookback)
	engine := detection.NewEngine(history, checker, emitter, cfg.Detection.IPWindow)
	engine.RegisterDetector(detection.NewMultiDeviceDetector())
	engine.RegisterDetector(detection.NewMultiIPDetector(detection.MultiIPConfig{
		Window:         cfg.Detection.IPWindow,
		MaxDistinctIPs: cfg.Detection.MaxDistinctIPs,
	}))
	engine.RegisterDetector(detection.NewMultiCountryDetector(detection.MultiCountryConfig{
		MaxDistinctCountries: cfg.Detection.MaxDistinctCountries,
	}))
	engine.RegisterDetector(detection.NewVPNUsageDetector())

	manager := lifecycle.NewManager(st, emitter)

	consumer := feed.NewConsumer(feed.NewStoreSource(st), engine, feed.DefaultConfig())

	inactivity := sweep.NewInactivitySweep(st, manager,
		cfg.Sweep.Interval, cfg.Sweep.InactivityAfter,
		cfg.Sweep.AccountBatchSize, cfg.Sweep.PerAccountTimeout)
	expiry := sweep.NewExpirySweep(st, manager, emitter,
		cfg.Sweep.Interval, cfg.Sweep.ExpiryWarnHorizon, cfg.Sweep.ExpiryWarnDays,
		cfg.Sweep.AccountBatchSize, cfg.Sweep.PerAccountTimeout)

	handler := api.NewHandler(st, manager)
	server := api.NewServer(cfg.HTTP, api.NewRouter(handler, cfg.HTTP.AdminRateLimit))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddIngestService(consumer)
	tree.AddSweepService(inactivity)
	tree.AddSweepService(expiry)
	tree.AddAPIService(server)

	errCh := tree.ServeBackground(ctx)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Supervisor tree failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		}
		if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
			for _, svc := range report {
				logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
			}
		}
	}

	logging.Info().Msg("Warden stopped")
}
