// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package database provides the DuckDB persistence layer for AttendSync.
//
// # Overview
//
// A single *DB implements every store the sync core depends on:
//
//   - crud_attendance.go: per-day attendance rows and the bulk upsert
//   - crud_sync_status.go: the append-only sync ledger and its aggregates
//   - crud_device_users.go: the persisted device user directory snapshot
//   - crud_users.go: HRMS accounts, read for notification recipients
//   - crud_notifications.go: in-app notifications
//
// Lifecycle, schema and helpers live in database.go, schema.go and errors.go.
//
// # Time Handling
//
// Instants are stored as TIMESTAMP. The attendance date column holds the
// local-midnight instant of the punch, so day lookups always use the
// half-open range [dayStart, dayEnd) computed by the caller in its own
// location. Values read back are UTC; callers convert with time.In.
//
// # Concurrency
//
// *DB is safe for concurrent use. The bulk attendance upsert runs in one
// transaction so a failed write leaves no partial rows.
package database
