// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package ledger records one status entry per sync cycle and answers
// health queries over them. Recording never fails the caller: a store
// error is logged and the entry is spooled for replay.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/attendsync/internal/attendance"
	"github.com/tomtom215/attendsync/internal/database"
	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/wal"
)

// WriteTimeout bounds one Record call. Writes do not inherit the caller's
// cancellation, so a cycle canceled mid-flight still leaves its entry.
const WriteTimeout = 10 * time.Second

// Store persists ledger entries.
type Store interface {
	InsertSyncStatus(ctx context.Context, rec *models.SyncStatusRecord) error
	LatestSyncStatus(ctx context.Context) (*models.SyncStatusRecord, error)
	SyncStatusSummary(ctx context.Context, from, to time.Time) (models.DailySummary, error)
	SyncStatusTotals(ctx context.Context) (models.SyncTotals, error)
}

// Spool holds entries the store rejected.
type Spool interface {
	Append(ctx context.Context, rec *models.SyncStatusRecord, reason string) (uint64, error)
	Pending(ctx context.Context) ([]wal.Entry, error)
	Remove(ctx context.Context, seq uint64) error
}

// Ledger is the sync status ledger.
type Ledger struct {
	store Store
	spool Spool
	loc   *time.Location

	mu     sync.RWMutex
	latest *models.SyncStatusRecord

	replayMu sync.Mutex
}

// New creates a Ledger. spool may be nil; loc nil means time.Local.
func New(store Store, spool Spool, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{store: store, spool: spool, loc: loc}
}

// Record appends rec. It never returns an error and never panics.
func (l *Ledger) Record(ctx context.Context, rec *models.SyncStatusRecord) {
	if rec == nil {
		return
	}
	log := logging.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			metrics.LedgerWriteFailures.Inc()
			log.Error().Interface("panic", r).Msg("Recovered panic while recording sync status")
		}
	}()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	l.remember(rec)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), WriteTimeout)
	defer cancel()

	if err := l.store.InsertSyncStatus(ctx, rec); err != nil {
		metrics.LedgerWriteFailures.Inc()
		log.Error().Err(err).Str("status_id", rec.ID).Bool("success", rec.Success).Msg("Failed to record sync status")
		l.spoolRecord(ctx, rec, err)
		return
	}

	if _, err := l.Replay(ctx); err != nil {
		log.Warn().Err(err).Msg("Spool replay stopped early")
	}
}

func (l *Ledger) spoolRecord(ctx context.Context, rec *models.SyncStatusRecord, cause error) {
	if l.spool == nil {
		return
	}
	seq, err := l.spool.Append(ctx, rec, cause.Error())
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("status_id", rec.ID).Msg("Failed to spool sync status; entry lost")
		return
	}
	metrics.LedgerSpooled.Inc()
	logging.Ctx(ctx).Info().Uint64("seq", seq).Str("status_id", rec.ID).Msg("Sync status spooled for replay")
}

// Replay writes spooled entries to the store in append order and returns
// how many were written. It stops at the first store failure. Entries the
// store already holds are dropped. Concurrent calls return immediately.
func (l *Ledger) Replay(ctx context.Context) (int, error) {
	if l.spool == nil {
		return 0, nil
	}
	if !l.replayMu.TryLock() {
		return 0, nil
	}
	defer l.replayMu.Unlock()

	pending, err := l.spool.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("read spool: %w", err)
	}

	replayed := 0
	for i := range pending {
		e := &pending[i]
		err := l.store.InsertSyncStatus(ctx, &e.Record)
		switch {
		case err == nil:
			replayed++
			metrics.LedgerReplayed.Inc()
		case errors.Is(err, database.ErrDuplicateKey):
			logging.Ctx(ctx).Debug().Str("status_id", e.Record.ID).Msg("Spooled sync status already stored")
		default:
			return replayed, fmt.Errorf("replay entry %d: %w", e.Seq, err)
		}
		if err := l.spool.Remove(ctx, e.Seq); err != nil {
			return replayed, fmt.Errorf("remove entry %d: %w", e.Seq, err)
		}
	}

	if replayed > 0 {
		logging.Ctx(ctx).Info().Int("replayed", replayed).Msg("Replayed spooled sync statuses")
	}
	return replayed, nil
}

func (l *Ledger) remember(rec *models.SyncStatusRecord) {
	cp := *rec
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil || !cp.Timestamp.Before(l.latest.Timestamp) {
		l.latest = &cp
	}
}

func (l *Ledger) cached() *models.SyncStatusRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latest == nil {
		return nil
	}
	cp := *l.latest
	return &cp
}

// Latest returns the most recent entry, or nil when none exists. When the
// store is unavailable or behind, the last recorded entry is returned.
func (l *Ledger) Latest(ctx context.Context) *models.SyncStatusRecord {
	mem := l.cached()
	stored, err := l.store.LatestSyncStatus(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to read latest sync status; using in-memory copy")
		return mem
	}
	if stored == nil || (mem != nil && mem.Timestamp.After(stored.Timestamp)) {
		return mem
	}
	return stored
}

// DailySummary aggregates the entries of the calendar day containing day.
func (l *Ledger) DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error) {
	from, to := attendance.DayBounds(day, l.loc)
	s, err := l.store.SyncStatusSummary(ctx, from, to)
	if err != nil {
		return models.DailySummary{Date: from}, fmt.Errorf("daily summary: %w", err)
	}
	s.Date = from
	return s, nil
}

// Totals returns all-time success and failure counts.
func (l *Ledger) Totals(ctx context.Context) (models.SyncTotals, error) {
	t, err := l.store.SyncStatusTotals(ctx)
	if err != nil {
		return models.SyncTotals{}, fmt.Errorf("sync totals: %w", err)
	}
	return t, nil
}
