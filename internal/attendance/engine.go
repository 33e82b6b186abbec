// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package attendance turns raw device punches into per-day attendance rows.
//
// Every punch is keyed by (device user id, local calendar day). The first
// punch seen for a key becomes time in; a later punch on the same day
// becomes time out. Re-applying the same punches changes nothing, so the
// whole device log can be replayed on every sync cycle.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/models"
)

// DefaultDepartment is assigned to rows created by sync.
const DefaultDepartment = "General"

// timestampLayouts are tried in order. Zone-less layouts are read in the engine location.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ErrBadTimestamp marks a punch whose timestamp could not be parsed.
var ErrBadTimestamp = errors.New("unparseable punch timestamp")

// ErrBadUserID marks a punch whose device user id is not a non-negative integer.
var ErrBadUserID = errors.New("invalid device user id")

// Store is the persistence the engine writes through.
type Store interface {
	BulkUpsertAttendance(ctx context.Context, rows []models.AttendanceUpsert) (models.BulkResult, error)
	CountAttendanceInRange(ctx context.Context, from, to time.Time) (int, error)
	CountAttendance(ctx context.Context) (int, error)
}

// Config holds engine settings.
type Config struct {
	// Location defines calendar days. Nil means time.Local.
	Location *time.Location
	// Department is stored on inserted rows. Empty means DefaultDepartment.
	Department string
	// DeviceIP is stored as the row location.
	DeviceIP string
}

// Result summarizes one Upsert call.
type Result struct {
	Processed            int
	Added                int
	Updated              int
	Skipped              int
	AddedEmployeeNumbers []string
}

// Engine applies punches to the attendance store.
type Engine struct {
	store      Store
	loc        *time.Location
	department string
	deviceIP   string
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(store Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		loc:        cfg.Location,
		department: cfg.Department,
		deviceIP:   cfg.DeviceIP,
		now:        time.Now,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.department == "" {
		e.department = DefaultDepartment
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the location calendar days are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Upsert applies punches in the order given through one bulk write.
//
// Punches with a bad timestamp or user id are counted as skipped. Names come
// from names, falling back to models.DefaultEmployeeName. A failed write
// returns the error and a zero Result.
func (e *Engine) Upsert(ctx context.Context, punches []models.PunchEvent, names map[int]string) (Result, error) {
	res := Result{Processed: len(punches)}
	if len(punches) == 0 {
		return res, nil
	}

	log := logging.Ctx(ctx)
	now := e.now()
	rows := make([]models.AttendanceUpsert, 0, len(punches))

	for _, p := range punches {
		row, err := e.resolve(p, names, now)
		if err != nil {
			res.Skipped++
			log.Warn().Err(err).
				Str("device_user_id", p.DeviceUserID).
				Str("timestamp", p.Timestamp).
				Msg("Skipping punch")
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return res, nil
	}

	bulk, err := e.store.BulkUpsertAttendance(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("bulk upsert of %d punches: %w", len(rows), err)
	}

	res.Added = bulk.Added
	res.Updated = bulk.Updated
	res.AddedEmployeeNumbers = bulk.AddedEmployeeNumbers
	log.Debug().
		Int("processed", res.Processed).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Msg("Attendance upserted")
	return res, nil
}

func (e *Engine) resolve(p models.PunchEvent, names map[int]string, now time.Time) (models.AttendanceUpsert, error) {
	userID, err := ParseUserID(p.DeviceUserID)
	if err != nil {
		return models.AttendanceUpsert{}, err
	}
	ts, err := ParseTimestamp(p.Timestamp, e.loc)
	if err != nil {
		return models.AttendanceUpsert{}, err
	}

	name, ok := names[userID]
	if !ok || strings.TrimSpace(name) == "" {
		name = models.DefaultEmployeeName
	}

	return models.AttendanceUpsert{
		DeviceUserID: userID,
		EmployeeName: name,
		Department:   e.department,
		Date:         CalendarDay(ts, e.loc),
		Punch:        ts,
		Location:     e.deviceIP,
		VerifyMethod: p.TypeCode,
		RawData:      p.RawData,
		SeenAt:       now,
	}, nil
}

// CountByDay counts rows for the calendar day containing day.
func (e *Engine) CountByDay(ctx context.Context, day time.Time) (int, error) {
	from, to := DayBounds(day, e.loc)
	return e.store.CountAttendanceInRange(ctx, from, to)
}

// CountAll counts every attendance row.
func (e *Engine) CountAll(ctx context.Context) (int, error) {
	return e.store.CountAttendance(ctx)
}

// ParseTimestamp parses a device timestamp. Zone-less values are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadTimestamp)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// ParseUserID parses a device user id.
func ParseUserID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadUserID, s)
	}
	return id, nil
}

// CalendarDay returns local midnight of t in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open range [start, end) of the calendar day containing t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := CalendarDay(t, loc)
	return start, time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
}
