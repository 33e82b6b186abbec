// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// UpsertDeviceUsers writes a directory snapshot keyed by device user id.
// Users absent from the snapshot are left untouched.
func (db *DB) UpsertDeviceUsers(ctx context.Context, users []models.DeviceUser) (err error) {
	if len(users) == 0 {
		return nil
	}
	if err := db.checkConn(); err != nil {
		return err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", "device_users", time.Since(start), err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO device_users (device_user_id, name, role, card_number, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_user_id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			card_number = excluded.card_number,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare device user upsert: %w", err)
	}
	defer closeWithLog(stmt, nil, "prepared statement")

	for _, u := range users {
		updated := u.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		var card sql.NullString
		if u.CardNumber != nil {
			card = sql.NullString{String: *u.CardNumber, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, u.DeviceUserID, u.Name, u.Role, card, updated); err != nil {
			return fmt.Errorf("failed to upsert device user %d: %w", u.DeviceUserID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListDeviceUsers returns the persisted snapshot ordered by device user id.
func (db *DB) ListDeviceUsers(ctx context.Context) (users []models.DeviceUser, err error) {
	if err := db.checkConn(); err != nil {
		return nil, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("list", "device_users", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT device_user_id, name, role, card_number, updated_at FROM device_users ORDER BY device_user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query device users: %w", err)
	}
	defer closeWithLog(rows, nil, "rows")

	users = []models.DeviceUser{}
	for rows.Next() {
		var u models.DeviceUser
		var card sql.NullString
		if err = rows.Scan(&u.DeviceUserID, &u.Name, &u.Role, &card, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device user: %w", err)
		}
		u.CardNumber = stringPtr(card)
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device users: %w", err)
	}
	return users, nil
}
