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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// InsertNotification stores one notification. Empty ID and zero CreatedAt are filled in.
func (db *DB) InsertNotification(ctx context.Context, n *models.Notification) (err error) {
	if err := db.checkConn(); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	var meta sql.NullString
	if len(n.Metadata) > 0 {
		b, mErr := json.Marshal(n.Metadata)
		if mErr != nil {
			return fmt.Errorf("failed to encode notification metadata: %w", mErr)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "notifications", time.Since(start), err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO notifications
		(id, user_id, title, message, type, metadata, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, meta, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotificationsForUser returns a user's notifications, newest first.
// A non-positive limit defaults to 50.
func (db *DB) ListNotificationsForUser(ctx context.Context, userID string, limit int) (out []models.Notification, err error) {
	if err := db.checkConn(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("list", "notifications", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, user_id, title, message, type, metadata, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer closeWithLog(rows, nil, "rows")

	out = []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var meta sql.NullString
		if err = rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &meta, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if meta.Valid && meta.String != "" {
			if err = json.Unmarshal([]byte(meta.String), &n.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode notification metadata: %w", err)
			}
		}
		out = append(out, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}
