// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// UpsertUser inserts or replaces an HRMS account.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) (err error) {
	if err := db.checkConn(); err != nil {
		return err
	}
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", "users", time.Since(start), err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO users (id, name, email, is_admin, role)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			is_admin = excluded.is_admin,
			role = excluded.role`,
		u.ID, u.Name, u.Email, u.IsAdmin, u.Role)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// ListNotificationRecipients returns every admin and HR manager, ordered by id.
func (db *DB) ListNotificationRecipients(ctx context.Context) (users []models.User, err error) {
	if err := db.checkConn(); err != nil {
		return nil, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("recipients", "users", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, email, is_admin, role
		FROM users
		WHERE is_admin OR role = ?
		ORDER BY id`, models.RoleHRManager)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification recipients: %w", err)
	}
	defer closeWithLog(rows, nil, "rows")

	users = []models.User{}
	for rows.Next() {
		var u models.User
		if err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}
