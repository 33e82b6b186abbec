// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/attendsync/internal/api"
	"github.com/tomtom215/attendsync/internal/config"
	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/supervisor"
	"github.com/tomtom215/attendsync/internal/supervisor/services"
	ws "github.com/tomtom215/attendsync/internal/websocket"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logCfg.Dir = cfg.Logging.Dir
	logCfg.RetentionDays = cfg.Logging.RetentionDays
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logging.Init(logCfg)
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
		}
	}()

	logging.Info().
		Str("device", net.JoinHostPort(cfg.Device.IP, strconv.Itoa(cfg.Device.Port))).
		Str("mode", cfg.Device.Mode).
		Dur("interval", cfg.Sync.Interval).
		Str("db_path", cfg.Database.Path).
		Bool("wal", cfg.WAL.Enabled).
		Msg("Starting AttendSync")

	app, err := newApp(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer app.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  35 * time.Second,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}

	if app.spool != nil {
		tree.AddDataService(services.NewSpoolMaintenanceService(app.ledger, app.spool, services.DefaultSpoolInterval))
	}
	if app.audit != nil {
		tree.AddDataService(app.audit)
	}
	if app.backups != nil {
		tree.AddDataService(app.backups)
	}
	tree.AddMessagingService(services.NewWebSocketHubService(app.hub))
	tree.AddMessagingService(services.NewSyncService(app.orch, 30*time.Second))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           app.router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}
	// Manual syncs run on the request goroutine; leave room for a full
	// retry budget before the write deadline.
	if budget := syncBudget(cfg); cfg.Server.Timeout < budget {
		server.WriteTimeout = budget
	} else {
		server.WriteTimeout = cfg.Server.Timeout
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server configured")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
	return 0
}

// syncBudget is the longest a manual sync can take: every connect
// attempt times out and every delay between them elapses, twice (users
// then punches).
func syncBudget(cfg *config.Config) time.Duration {
	tries := cfg.DeviceConnectionTries()
	per := time.Duration(tries)*cfg.Device.EffectiveTimeout() + time.Duration(tries-1)*cfg.DeviceConnectionDelay()
	return 2*per + 10*time.Second
}

func (a *app) router(cfg *config.Config) http.Handler {
	var opts []api.HandlerOption
	if a.audit != nil {
		opts = append(opts, api.WithAuditor(a.audit))
	}
	if a.backups != nil {
		opts = append(opts, api.WithBackups(a.backups))
	}
	handler := api.NewHandler(a.orch, a.ledger, a.db, cfg.Location(), opts...)
	return api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		RateLimitDisabled: cfg.Server.RateLimitDisabled,
		SlowRequest:       2 * time.Second,
	}, ws.Handler(a.hub, cfg.Server.CORSOrigins)).Setup()
}
