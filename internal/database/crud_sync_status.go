// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// InsertSyncStatus appends one ledger entry. An empty ID is filled with a new UUID.
func (db *DB) InsertSyncStatus(ctx context.Context, rec *models.SyncStatusRecord) (err error) {
	if err := db.checkConn(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "sync_status", time.Since(start), err) }()

	var errText sql.NullString
	if rec.Error != nil {
		errText = sql.NullString{String: *rec.Error, Valid: true}
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO sync_status (
			id, recorded_at, success, message, records_processed, records_added, records_updated,
			records_skipped, today_records, error, duration_ms, trigger_source,
			device_ip, device_port, device_user_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.Success, rec.Message, rec.RecordsProcessed, rec.RecordsAdded,
		rec.RecordsUpdated, rec.RecordsSkipped, rec.TodayRecords, errText, rec.DurationMs,
		string(rec.Trigger), rec.DeviceInfo.IP, rec.DeviceInfo.Port, rec.DeviceInfo.UserCount,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("failed to insert sync status %s: %w", rec.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert sync status: %w", err)
	}
	return nil
}

// LatestSyncStatus returns the most recent ledger entry, or nil when the ledger is empty.
func (db *DB) LatestSyncStatus(ctx context.Context) (rec *models.SyncStatusRecord, err error) {
	if err := db.checkConn(); err != nil {
		return nil, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("latest", "sync_status", time.Since(start), err) }()

	var r models.SyncStatusRecord
	var trigger string
	var errText sql.NullString
	err = db.conn.QueryRowContext(ctx, `SELECT
			id, recorded_at, success, message, records_processed, records_added, records_updated,
			records_skipped, today_records, error, duration_ms, trigger_source,
			device_ip, device_port, device_user_count
		FROM sync_status
		ORDER BY recorded_at DESC
		LIMIT 1`).Scan(
		&r.ID, &r.Timestamp, &r.Success, &r.Message, &r.RecordsProcessed, &r.RecordsAdded,
		&r.RecordsUpdated, &r.RecordsSkipped, &r.TodayRecords, &errText, &r.DurationMs, &trigger,
		&r.DeviceInfo.IP, &r.DeviceInfo.Port, &r.DeviceInfo.UserCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sync status: %w", err)
	}
	r.Trigger = models.SyncTrigger(trigger)
	r.Error = stringPtr(errText)
	return &r, nil
}

// SyncStatusSummary aggregates ledger entries with timestamp in [from, to).
// Date on the result is from.
func (db *DB) SyncStatusSummary(ctx context.Context, from, to time.Time) (summary models.DailySummary, err error) {
	if err := db.checkConn(); err != nil {
		return models.DailySummary{}, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("summary", "sync_status", time.Since(start), err) }()

	var last sql.NullTime
	// SUM yields HUGEINT in DuckDB; cast so the driver returns int64.
	err = db.conn.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success),
			CAST(COALESCE(SUM(records_processed), 0) AS BIGINT),
			CAST(COALESCE(SUM(records_added), 0) AS BIGINT),
			MAX(recorded_at)
		FROM sync_status
		WHERE recorded_at >= ? AND recorded_at < ?`, from, to).Scan(
		&summary.TotalSyncs, &summary.SuccessfulSyncs, &summary.FailedSyncs,
		&summary.TotalRecordsProcessed, &summary.TotalRecordsAdded, &last,
	)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("failed to summarize sync status: %w", err)
	}
	summary.Date = from
	if last.Valid {
		t := last.Time
		summary.LastSync = &t
	}
	return summary, nil
}

// SyncStatusTotals counts every successful and failed ledger entry.
func (db *DB) SyncStatusTotals(ctx context.Context) (totals models.SyncTotals, err error) {
	if err := db.checkConn(); err != nil {
		return models.SyncTotals{}, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("totals", "sync_status", time.Since(start), err) }()

	err = db.conn.QueryRowContext(ctx, `SELECT
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success)
		FROM sync_status`).Scan(&totals.SuccessfulSyncs, &totals.FailedSyncs)
	if err != nil {
		return models.SyncTotals{}, fmt.Errorf("failed to count sync status: %w", err)
	}
	return totals, nil
}
