// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package main

import (
	"fmt"

	"github.com/tomtom215/attendsync/internal/attendance"
	"github.com/tomtom215/attendsync/internal/audit"
	"github.com/tomtom215/attendsync/internal/backup"
	"github.com/tomtom215/attendsync/internal/cache"
	"github.com/tomtom215/attendsync/internal/config"
	"github.com/tomtom215/attendsync/internal/database"
	"github.com/tomtom215/attendsync/internal/device"
	"github.com/tomtom215/attendsync/internal/events"
	"github.com/tomtom215/attendsync/internal/ledger"
	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/notify"
	"github.com/tomtom215/attendsync/internal/probe"
	"github.com/tomtom215/attendsync/internal/sync"
	ws "github.com/tomtom215/attendsync/internal/websocket"
	"github.com/tomtom215/attendsync/internal/wal"
	"github.com/tomtom215/attendsync/internal/zk"
)

// app holds the long-lived components.
type app struct {
	db      *database.DB
	spool   *wal.Spool
	ledger  *ledger.Ledger
	hub     *ws.Hub
	orch    *sync.Orchestrator
	audit   *audit.Logger
	backups *backup.Manager
	nats    *events.EmbeddedServer
	pub     *events.Publisher
}

// newApp opens storage and wires the sync pipeline. Only storage
// failures are fatal; the device is contacted lazily by the first cycle.
func newApp(cfg *config.Config) (*app, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized successfully")

	a := &app{db: db}

	if cfg.WAL.Enabled {
		spool, err := wal.Open(wal.Options{Path: cfg.WAL.Path, SyncWrites: true})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open ledger spool: %w", err)
		}
		a.spool = spool
		logging.Info().Str("path", cfg.WAL.Path).Msg("Ledger spool enabled")
	}

	loc := cfg.Location()
	// A nil *wal.Spool must not become a non-nil ledger.Spool.
	var spool ledger.Spool
	if a.spool != nil {
		spool = a.spool
	}
	a.ledger = ledger.New(db, spool, loc)

	client := device.New(device.Config{
		IP:              cfg.Device.IP,
		Port:            cfg.Device.Port,
		Timeout:         cfg.Device.EffectiveTimeout(),
		ConnectionTries: cfg.DeviceConnectionTries(),
		ConnectionDelay: cfg.DeviceConnectionDelay(),
	}, device.ZKDialer{Layout: zk.Layout(cfg.Device.ParserVersion), Location: loc})

	directory := cache.NewDirectory(client, db, cfg.Sync.CacheTTL)
	engine := attendance.NewEngine(db, attendance.Config{
		Location:   loc,
		Department: cfg.Sync.DefaultDepartment,
		DeviceIP:   cfg.Device.IP,
	})

	a.hub = ws.NewHub()

	if cfg.Backup.Enabled {
		mgr, err := backup.NewManager(backup.Config{
			Dir:           cfg.Backup.Dir,
			Interval:      cfg.Backup.Interval,
			PreferredHour: cfg.Backup.PreferredHour,
			Location:      loc,
			MinCount:      cfg.Backup.MinCount,
			MaxCount:      cfg.Backup.MaxCount,
			MaxAge:        cfg.Backup.MaxAge,
		}, db)
		if err != nil {
			// Sync does not depend on backups.
			logging.Error().Err(err).Str("dir", cfg.Backup.Dir).Msg("Database backups disabled")
		} else {
			a.backups = mgr
			logging.Info().Str("dir", cfg.Backup.Dir).Dur("interval", cfg.Backup.Interval).Msg("Database backups enabled")
		}
	}

	if cfg.Audit.Enabled {
		acfg := audit.DefaultConfig()
		acfg.RetentionDays = cfg.Audit.RetentionDays
		a.audit = audit.NewLogger(db, acfg)
	}

	deps := sync.Deps{
		Device:    client,
		Directory: directory,
		Engine:    engine,
		Ledger:    a.ledger,
		Notifier:  notify.New(db, db),
		Events:    a.eventSink(cfg),
		Clock:     sync.SystemClock{},
	}
	if cfg.Device.ProbeEnabled {
		deps.Prober = probe.New(cfg.Device.ProbeTimeout)
	}
	a.orch = sync.New(deps, sync.Config{
		Interval:          cfg.Sync.Interval,
		AutoSync:          cfg.Sync.AutoStart,
		ProbeEnabled:      cfg.Device.ProbeEnabled,
		ManualMinInterval: cfg.Sync.ManualMinInterval,
		DeviceMode:        cfg.Device.Mode,
		CacheTTL:          cfg.Sync.CacheTTL,
	})
	return a, nil
}

// eventSink returns the hub, plus a NATS publisher when enabled. Broker
// failures only disable publishing.
func (a *app) eventSink(cfg *config.Config) events.Sink {
	if !cfg.Events.Enabled {
		return a.hub
	}
	url := cfg.Events.URL
	if cfg.Events.Embedded {
		srv, err := events.NewEmbeddedServer(events.ServerConfig{Host: cfg.Events.EmbeddedHost, Port: cfg.Events.EmbeddedPort})
		if err != nil {
			logging.Error().Err(err).Msg("Embedded NATS server failed to start; event publishing disabled")
			return a.hub
		}
		a.nats = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	pcfg := events.DefaultConfig(url)
	pcfg.SubjectPrefix = cfg.Events.SubjectPrefix
	pub, err := events.NewPublisher(pcfg)
	if err != nil {
		logging.Error().Err(err).Msg("NATS publisher unavailable; event publishing disabled")
		return a.hub
	}
	a.pub = pub
	logging.Info().Str("url", url).Str("subject", pub.Subject("*")).Msg("Sync events published to NATS")
	return events.Fanout(a.hub, pub)
}

// close releases resources in reverse order of opening.
func (a *app) close() {
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS publisher")
		}
	}
	if a.nats != nil {
		a.nats.Shutdown()
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}
	if a.spool != nil {
		if err := a.spool.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing ledger spool")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}
}
