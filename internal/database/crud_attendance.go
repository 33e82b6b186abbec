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
	"strconv"
	"time"

	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

const attendanceColumns = `device_user_id, employee_name, employee_number, department, date,
	time_in, time_out, location, verify_method, status, notes, modified, raw_data,
	created_at, updated_at`

// BulkUpsertAttendance applies rows in order inside one transaction.
//
// A row whose (DeviceUserID, Date) key is new is inserted with the punch as
// time_in. An existing row always gets its employee name and updated_at
// refreshed; the punch becomes time_out only when it is later than time_in
// and later than any stored time_out. Either every row is applied or none is.
func (db *DB) BulkUpsertAttendance(ctx context.Context, rows []models.AttendanceUpsert) (result models.BulkResult, err error) {
	if len(rows) == 0 {
		return models.BulkResult{}, nil
	}
	if err := db.checkConn(); err != nil {
		return models.BulkResult{}, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("bulk_upsert", "attendance_records", time.Since(start), err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.BulkResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx, &err)

	selectStmt, err := tx.PrepareContext(ctx,
		`SELECT time_in, time_out FROM attendance_records WHERE device_user_id = ? AND date = ?`)
	if err != nil {
		return models.BulkResult{}, fmt.Errorf("failed to prepare select: %w", err)
	}
	defer closeWithLog(selectStmt, nil, "prepared statement")

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO attendance_records (`+attendanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, NULL, false, ?, ?, ?)`)
	if err != nil {
		return models.BulkResult{}, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer closeWithLog(insertStmt, nil, "prepared statement")

	updateStmt, err := tx.PrepareContext(ctx, `UPDATE attendance_records
		SET employee_name = ?, time_out = ?, updated_at = ?
		WHERE device_user_id = ? AND date = ?`)
	if err != nil {
		return models.BulkResult{}, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer closeWithLog(updateStmt, nil, "prepared statement")

	for i := range rows {
		r := &rows[i]
		var timeIn time.Time
		var timeOut sql.NullTime

		err = selectStmt.QueryRowContext(ctx, r.DeviceUserID, r.Date).Scan(&timeIn, &timeOut)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			number := strconv.Itoa(r.DeviceUserID)
			if _, err = insertStmt.ExecContext(ctx,
				r.DeviceUserID, r.EmployeeName, number, r.Department, r.Date,
				r.Punch, r.Location, r.VerifyMethod, string(models.AttendanceStatusPresent),
				nullString(r.RawData), r.SeenAt, r.SeenAt,
			); err != nil {
				return models.BulkResult{}, fmt.Errorf("failed to insert attendance for user %d: %w", r.DeviceUserID, err)
			}
			result.Added++
			result.AddedEmployeeNumbers = append(result.AddedEmployeeNumbers, number)

		case err != nil:
			return models.BulkResult{}, fmt.Errorf("failed to read attendance for user %d: %w", r.DeviceUserID, err)

		default:
			if promoteTimeOut(r.Punch, timeIn, timeOut) {
				timeOut = sql.NullTime{Time: r.Punch, Valid: true}
			}
			if _, err = updateStmt.ExecContext(ctx,
				r.EmployeeName, timeOut, r.SeenAt, r.DeviceUserID, r.Date,
			); err != nil {
				return models.BulkResult{}, fmt.Errorf("failed to update attendance for user %d: %w", r.DeviceUserID, err)
			}
			result.Updated++
		}
	}

	if err = tx.Commit(); err != nil {
		return models.BulkResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// promoteTimeOut reports whether punch should replace the stored time_out.
func promoteTimeOut(punch, timeIn time.Time, timeOut sql.NullTime) bool {
	if !punch.After(timeIn) {
		return false
	}
	return !timeOut.Valid || punch.After(timeOut.Time)
}

// CountAttendanceInRange counts rows whose date falls in [from, to).
func (db *DB) CountAttendanceInRange(ctx context.Context, from, to time.Time) (n int, err error) {
	if err := db.checkConn(); err != nil {
		return 0, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("count_range", "attendance_records", time.Since(start), err) }()

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE date >= ? AND date < ?`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}

// CountAttendance counts every attendance row.
func (db *DB) CountAttendance(ctx context.Context) (n int, err error) {
	if err := db.checkConn(); err != nil {
		return 0, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("count", "attendance_records", time.Since(start), err) }()

	if err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}

// ListAttendanceInRange returns rows whose date falls in [from, to),
// ordered by date then device user id.
func (db *DB) ListAttendanceInRange(ctx context.Context, from, to time.Time) (records []models.AttendanceRecord, err error) {
	if err := db.checkConn(); err != nil {
		return nil, err
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_range", "attendance_records", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE date >= ? AND date < ?
		ORDER BY date, device_user_id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer closeWithLog(rows, nil, "rows")

	records = []models.AttendanceRecord{}
	for rows.Next() {
		var rec models.AttendanceRecord
		var status string
		var timeOut sql.NullTime
		var notes, raw sql.NullString
		if err = rows.Scan(
			&rec.DeviceUserID, &rec.EmployeeName, &rec.EmployeeNumber, &rec.Department, &rec.Date,
			&rec.TimeIn, &timeOut, &rec.Location, &rec.VerifyMethod, &status, &notes, &rec.Modified, &raw,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.Status = models.AttendanceStatus(status)
		if timeOut.Valid {
			t := timeOut.Time
			rec.TimeOut = &t
		}
		rec.Notes = stringPtr(notes)
		rec.RawData = stringPtr(raw)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
