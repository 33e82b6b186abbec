// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package main is the entry point for the AttendSync server.
//
// AttendSync keeps the HRMS attendance table in step with a ZKTeco-style
// biometric terminal. It polls the device on a fixed interval, upserts one
// attendance row per employee per day, records a ledger entry per cycle and
// notifies HR staff about new records.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, YAML file, environment)
//  2. Logging (zerolog, optional rotating file)
//  3. DuckDB; failure exits with status 1
//  4. Ledger spool (BadgerDB) when WAL_ENABLED is set
//  5. Device client, prober, user directory cache, upsert engine, notifier
//  6. WebSocket hub and sync orchestrator
//  7. Supervisor tree with the sync, hub, spool and HTTP services
//
// # Signals
//
// SIGINT and SIGTERM cancel the supervisor tree. The sync service lets an
// in-flight cycle finish (bounded by the shutdown timeout), the HTTP server
// drains, then the spool and the database close. A clean stop exits 0.
//
// # Example
//
//	export DEVICE_IP=192.168.1.201
//	export DUCKDB_PATH=/var/lib/attendsync/hrms.duckdb
//	export SYNC_TIMEZONE=Asia/Kolkata
//	./attendsync
package main
