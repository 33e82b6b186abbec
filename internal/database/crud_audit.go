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

	"github.com/google/uuid"

	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// InsertAuditEvent stores one control audit event. An empty ID is filled in.
func (db *DB) InsertAuditEvent(ctx context.Context, ev *models.AuditEvent) (err error) {
	if err := db.checkConn(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "control_audit", time.Since(start), err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO control_audit
		(id, recorded_at, action, success, message, remote_addr, request_id, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, string(ev.Action), ev.Success, ev.Message,
		nullString(ev.RemoteAddr), nullString(ev.RequestID), ev.DurationMs)
	if isDuplicateKey(err) {
		return fmt.Errorf("failed to insert audit event %s: %w", ev.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the newest events first. A non-positive limit
// defaults to 50.
func (db *DB) ListAuditEvents(ctx context.Context, limit int) (out []models.AuditEvent, err error) {
	if err := db.checkConn(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("list", "control_audit", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, recorded_at, action, success, message,
			remote_addr, request_id, duration_ms
		FROM control_audit
		ORDER BY recorded_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer closeWithLog(rows, nil, "rows")

	out = []models.AuditEvent{}
	for rows.Next() {
		var ev models.AuditEvent
		var action string
		var remote, reqID sql.NullString
		if err = rows.Scan(&ev.ID, &ev.Timestamp, &action, &ev.Success, &ev.Message, &remote, &reqID, &ev.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.Action = models.AuditAction(action)
		ev.RemoteAddr = remote.String
		ev.RequestID = reqID.String
		out = append(out, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return out, nil
}

// DeleteAuditEventsBefore removes events recorded before cutoff and
// returns how many were removed.
func (db *DB) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (n int64, err error) {
	if err := db.checkConn(); err != nil {
		return 0, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete", "control_audit", time.Since(start), err) }()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM control_audit WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit events: %w", err)
	}
	return n, nil
}
