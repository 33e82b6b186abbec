// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"context"
	"time"

	"github.com/tomtom215/attendsync/internal/backup"
	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/sync"
)

// SyncController is the sync control interface.
type SyncController interface {
	GetSyncStatus(ctx context.Context) sync.SyncStatus
	SyncNow(ctx context.Context) sync.CycleResult
	TestConnection(ctx context.Context) sync.ConnectionResult
	StartAutoSync() sync.ControlResult
	StopAutoSync() sync.ControlResult
}

// History answers ledger queries.
type History interface {
	Latest(ctx context.Context) *models.SyncStatusRecord
	DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error)
}

// Store is the read side of the database used by the API.
type Store interface {
	Ping(ctx context.Context) error
	ListAttendanceInRange(ctx context.Context, from, to time.Time) ([]models.AttendanceRecord, error)
	ListDeviceUsers(ctx context.Context) ([]models.DeviceUser, error)
}

// Auditor records control operations.
type Auditor interface {
	Record(ev *models.AuditEvent)
	Recent(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

// Backups manages database snapshots.
type Backups interface {
	List() ([]backup.Backup, error)
	Create(ctx context.Context, trigger backup.Trigger) (*backup.Backup, error)
	Verify(ctx context.Context, id string) (*backup.Backup, error)
}

// Handler serves the HTTP endpoints.
type Handler struct {
	sync      SyncController
	history   History
	store     Store
	audit     Auditor
	backups   Backups
	loc       *time.Location
	startTime time.Time
	now       func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAuditor records control operations to a.
func WithAuditor(a Auditor) HandlerOption {
	return func(h *Handler) { h.audit = a }
}

// WithBackups enables the backup endpoints.
func WithBackups(b Backups) HandlerOption {
	return func(h *Handler) { h.backups = b }
}

// NewHandler creates a Handler. loc nil means time.Local.
func NewHandler(ctl SyncController, history History, store Store, loc *time.Location, opts ...HandlerOption) *Handler {
	if loc == nil {
		loc = time.Local
	}
	h := &Handler{
		sync:      ctl,
		history:   history,
		store:     store,
		loc:       loc,
		startTime: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
