// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// createIndexes creates secondary indexes for the status and day queries
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records(date)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_status_timestamp ON sync_status(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_control_audit_timestamp ON control_audit(recorded_at)`,
	}
	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		// One row per (device user, local calendar day).
		`CREATE TABLE IF NOT EXISTS attendance_records (
			device_user_id INTEGER NOT NULL,
			employee_name TEXT NOT NULL,
			employee_number TEXT NOT NULL,
			department TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			time_in TIMESTAMP NOT NULL,
			time_out TIMESTAMP,
			location TEXT NOT NULL,
			verify_method INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'present',
			notes TEXT,
			modified BOOLEAN NOT NULL DEFAULT false,
			raw_data TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (device_user_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS device_users (
			device_user_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			role INTEGER NOT NULL DEFAULT 0,
			card_number TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sync_status (
			id TEXT PRIMARY KEY,
			recorded_at TIMESTAMP NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT NOT NULL,
			records_processed INTEGER NOT NULL DEFAULT 0,
			records_added INTEGER NOT NULL DEFAULT 0,
			records_updated INTEGER NOT NULL DEFAULT 0,
			records_skipped INTEGER NOT NULL DEFAULT 0,
			today_records INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			trigger_source TEXT NOT NULL,
			device_ip TEXT NOT NULL,
			device_port INTEGER NOT NULL,
			device_user_count INTEGER NOT NULL DEFAULT 0
		)`,

		// HRMS accounts. Owned by the portal; the sync core only reads them.
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT false,
			role TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			type TEXT NOT NULL,
			metadata TEXT,
			is_read BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS control_audit (
			id TEXT PRIMARY KEY,
			recorded_at TIMESTAMP NOT NULL,
			action TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT NOT NULL,
			remote_addr TEXT,
			request_id TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0
		)`,
	}
}
