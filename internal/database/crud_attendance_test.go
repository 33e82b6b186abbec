// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/attendsync/internal/models"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ist)
}

func punchRow(userID int, name string, punch time.Time) models.AttendanceUpsert {
	local := punch.In(ist)
	return models.AttendanceUpsert{
		DeviceUserID: userID,
		EmployeeName: name,
		Department:   "General",
		Date:         time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, ist),
		Punch:        punch,
		Location:     "192.168.1.201",
		VerifyMethod: 1,
		RawData:      "0a0b",
		SeenAt:       punch.Add(time.Minute),
	}
}

func TestBulkUpsertAttendance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	in := time.Date(2026, time.January, 10, 9, 0, 0, 0, ist)
	out := time.Date(2026, time.January, 10, 18, 0, 0, 0, ist)

	res, err := db.BulkUpsertAttendance(ctx, []models.AttendanceUpsert{
		punchRow(1, "Alice", in),
		punchRow(1, "Alice", out),
	})
	if err != nil {
		t.Fatalf("BulkUpsertAttendance() error = %v", err)
	}
	if res.Added != 1 || res.Updated != 1 {
		t.Errorf("result = %+v, want added=1 updated=1", res)
	}
	if len(res.AddedEmployeeNumbers) != 1 || res.AddedEmployeeNumbers[0] != "1" {
		t.Errorf("AddedEmployeeNumbers = %v", res.AddedEmployeeNumbers)
	}

	recs, err := db.ListAttendanceInRange(ctx, day(2026, time.January, 10), day(2026, time.January, 11))
	if err != nil {
		t.Fatalf("ListAttendanceInRange() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	r := recs[0]
	if !r.TimeIn.Equal(in) {
		t.Errorf("TimeIn = %v, want %v", r.TimeIn, in)
	}
	if r.TimeOut == nil || !r.TimeOut.Equal(out) {
		t.Errorf("TimeOut = %v, want %v", r.TimeOut, out)
	}
	if !r.Date.Equal(day(2026, time.January, 10)) {
		t.Errorf("Date = %v, want local midnight", r.Date)
	}
	if r.Status != models.AttendanceStatusPresent || r.Department != "General" || r.EmployeeNumber != "1" {
		t.Errorf("record defaults = %+v", r)
	}
	if r.Location != "192.168.1.201" || r.VerifyMethod != 1 || r.RawData == nil || *r.RawData != "0a0b" {
		t.Errorf("record device fields = %+v", r)
	}
	if r.Modified {
		t.Error("Modified should default to false")
	}
}

func TestBulkUpsertAttendanceIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rows := []models.AttendanceUpsert{
		punchRow(1, "Alice", time.Date(2026, time.January, 10, 9, 0, 0, 0, ist)),
		punchRow(2, "Bob", time.Date(2026, time.January, 10, 9, 5, 0, 0, ist)),
		punchRow(1, "Alice", time.Date(2026, time.January, 10, 18, 0, 0, 0, ist)),
	}

	if _, err := db.BulkUpsertAttendance(ctx, rows); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first, _ := db.ListAttendanceInRange(ctx, day(2026, time.January, 10), day(2026, time.January, 11))

	res, err := db.BulkUpsertAttendance(ctx, rows)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res.Added != 0 || res.Updated != 3 {
		t.Errorf("second result = %+v, want added=0 updated=3", res)
	}

	second, _ := db.ListAttendanceInRange(ctx, day(2026, time.January, 10), day(2026, time.January, 11))
	if len(second) != len(first) || len(second) != 2 {
		t.Fatalf("row count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].TimeIn.Equal(second[i].TimeIn) {
			t.Errorf("row %d TimeIn changed", i)
		}
		if (first[i].TimeOut == nil) != (second[i].TimeOut == nil) ||
			(first[i].TimeOut != nil && !first[i].TimeOut.Equal(*second[i].TimeOut)) {
			t.Errorf("row %d TimeOut changed", i)
		}
	}
}

func TestBulkUpsertAttendanceTimeOutRules(t *testing.T) {
	tests := []struct {
		name    string
		punches []time.Time
		wantIn  time.Time
		wantOut *time.Time
	}{
		{
			name:    "single punch",
			punches: []time.Time{at(9, 0)},
			wantIn:  at(9, 0),
		},
		{
			name:    "forward order",
			punches: []time.Time{at(9, 0), at(12, 0), at(18, 0)},
			wantIn:  at(9, 0),
			wantOut: ptr(at(18, 0)),
		},
		{
			name:    "reverse order keeps first punch as time in",
			punches: []time.Time{at(18, 0), at(9, 0)},
			wantIn:  at(18, 0),
		},
		{
			name:    "earlier later punch does not lower time out",
			punches: []time.Time{at(9, 0), at(18, 0), at(12, 0)},
			wantIn:  at(9, 0),
			wantOut: ptr(at(18, 0)),
		},
		{
			name:    "equal punch is ignored",
			punches: []time.Time{at(9, 0), at(9, 0)},
			wantIn:  at(9, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()

			rows := make([]models.AttendanceUpsert, 0, len(tt.punches))
			for _, p := range tt.punches {
				rows = append(rows, punchRow(7, "Grace", p))
			}
			if _, err := db.BulkUpsertAttendance(ctx, rows); err != nil {
				t.Fatalf("BulkUpsertAttendance() error = %v", err)
			}

			recs, err := db.ListAttendanceInRange(ctx, day(2026, time.January, 10), day(2026, time.January, 11))
			if err != nil || len(recs) != 1 {
				t.Fatalf("records = %v, err = %v", recs, err)
			}
			if !recs[0].TimeIn.Equal(tt.wantIn) {
				t.Errorf("TimeIn = %v, want %v", recs[0].TimeIn, tt.wantIn)
			}
			switch {
			case tt.wantOut == nil && recs[0].TimeOut != nil:
				t.Errorf("TimeOut = %v, want nil", *recs[0].TimeOut)
			case tt.wantOut != nil && (recs[0].TimeOut == nil || !recs[0].TimeOut.Equal(*tt.wantOut)):
				t.Errorf("TimeOut = %v, want %v", recs[0].TimeOut, *tt.wantOut)
			}
		})
	}
}

func TestBulkUpsertAttendanceRefreshesName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.BulkUpsertAttendance(ctx, []models.AttendanceUpsert{punchRow(3, "Unknown", at(9, 0))}); err != nil {
		t.Fatal(err)
	}
	later := punchRow(3, "Carol", at(9, 0))
	later.SeenAt = at(10, 0)
	if _, err := db.BulkUpsertAttendance(ctx, []models.AttendanceUpsert{later}); err != nil {
		t.Fatal(err)
	}

	recs, _ := db.ListAttendanceInRange(ctx, day(2026, time.January, 10), day(2026, time.January, 11))
	if len(recs) != 1 || recs[0].EmployeeName != "Carol" {
		t.Fatalf("records = %+v, want name refreshed to Carol", recs)
	}
	if !recs[0].UpdatedAt.Equal(at(10, 0)) {
		t.Errorf("UpdatedAt = %v, want %v", recs[0].UpdatedAt, at(10, 0))
	}
}

func TestBulkUpsertAttendanceSeparatesDays(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// 23:30 and 00:30 local fall on different calendar days.
	late := time.Date(2026, time.January, 10, 23, 30, 0, 0, ist)
	early := time.Date(2026, time.January, 11, 0, 30, 0, 0, ist)
	res, err := db.BulkUpsertAttendance(ctx, []models.AttendanceUpsert{punchRow(1, "Alice", late), punchRow(1, "Alice", early)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 2 {
		t.Errorf("Added = %d, want 2", res.Added)
	}

	n, err := db.CountAttendanceInRange(ctx, day(2026, time.January, 11), day(2026, time.January, 12))
	if err != nil || n != 1 {
		t.Errorf("CountAttendanceInRange(Jan 11) = %d, %v; want 1", n, err)
	}
	total, err := db.CountAttendance(ctx)
	if err != nil || total != 2 {
		t.Errorf("CountAttendance() = %d, %v; want 2", total, err)
	}
}

func TestBulkUpsertAttendanceRollsBackOnFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.BulkUpsertAttendance(ctx, []models.AttendanceUpsert{punchRow(1, "Alice", at(9, 0))})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}

	n, err := db.CountAttendance(context.Background())
	if err != nil || n != 0 {
		t.Errorf("CountAttendance() = %d, %v; want 0 rows after failed write", n, err)
	}
}

func TestBulkUpsertAttendanceEmpty(t *testing.T) {
	db := setupTestDB(t)
	res, err := db.BulkUpsertAttendance(context.Background(), nil)
	if err != nil || res.Added != 0 || res.Updated != 0 {
		t.Errorf("BulkUpsertAttendance(nil) = %+v, %v", res, err)
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, time.January, 10, hour, minute, 0, 0, ist)
}

func ptr(t time.Time) *time.Time { return &t }
