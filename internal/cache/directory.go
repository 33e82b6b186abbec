// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package cache holds the device user directory between sync cycles so the
// terminal's user table is read at most once per TTL.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// DefaultTTL is the snapshot lifetime.
const DefaultTTL = 5 * time.Minute

// UserSource reads the authoritative user table.
type UserSource interface {
	ListUsers(ctx context.Context) ([]models.DeviceUser, error)
}

// SnapshotStore persists refreshed snapshots.
type SnapshotStore interface {
	UpsertDeviceUsers(ctx context.Context, users []models.DeviceUser) error
}

// Directory is a TTL cache over a UserSource.
type Directory struct {
	source UserSource
	store  SnapshotStore
	ttl    time.Duration
	now    func() time.Time

	// refreshMu serializes device reads; mu guards the snapshot.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	users     []models.DeviceUser
	fetchedAt time.Time
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// NewDirectory creates a directory cache. store may be nil.
func NewDirectory(source UserSource, store SnapshotStore, ttl time.Duration, opts ...Option) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d := &Directory{source: source, store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetUsers returns the cached snapshot while it is younger than the TTL,
// otherwise (or when forceRefresh is set) reads the device. A failed read is
// returned to the caller and leaves the previous snapshot in place.
func (d *Directory) GetUsers(ctx context.Context, forceRefresh bool) ([]models.DeviceUser, error) {
	if !forceRefresh {
		if users, ok := d.fresh(); ok {
			metrics.DirectoryCacheHits.Inc()
			return users, nil
		}
	}

	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if !forceRefresh {
		if users, ok := d.fresh(); ok {
			metrics.DirectoryCacheHits.Inc()
			return users, nil
		}
	}
	metrics.DirectoryCacheMisses.Inc()

	users, err := d.source.ListUsers(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Bool("forced", forceRefresh).Msg("User directory refresh failed")
		return nil, err
	}

	now := d.now()
	for i := range users {
		users[i].UpdatedAt = now
	}

	d.mu.Lock()
	d.users = users
	d.fetchedAt = now
	d.mu.Unlock()
	metrics.DirectoryCacheEntries.Set(float64(len(users)))

	if d.store != nil {
		if err := d.store.UpsertDeviceUsers(ctx, users); err != nil {
			logging.Ctx(ctx).Error().Err(err).Int("users", len(users)).Msg("Failed to persist device user snapshot")
		}
	}

	logging.Ctx(ctx).Debug().Int("users", len(users)).Msg("User directory refreshed")
	return copyUsers(users), nil
}

func (d *Directory) fresh() ([]models.DeviceUser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.fetchedAt.IsZero() || d.now().Sub(d.fetchedAt) >= d.ttl {
		return nil, false
	}
	return copyUsers(d.users), true
}

// Invalidate drops the snapshot so the next GetUsers reads the device.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = nil
	d.fetchedAt = time.Time{}
}

// SnapshotInfo describes the cached snapshot.
type SnapshotInfo struct {
	Size      int           `json:"size"`
	FetchedAt *time.Time    `json:"fetched_at,omitempty"`
	Age       time.Duration `json:"age_ns"`
	Fresh     bool          `json:"fresh"`
}

// Snapshot reports the size and age of the cached snapshot.
func (d *Directory) Snapshot() SnapshotInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info := SnapshotInfo{Size: len(d.users)}
	if !d.fetchedAt.IsZero() {
		at := d.fetchedAt
		info.FetchedAt = &at
		info.Age = d.now().Sub(at)
		info.Fresh = info.Age < d.ttl
	}
	return info
}

// NameMap indexes user names by device user id.
func NameMap(users []models.DeviceUser) map[int]string {
	m := make(map[int]string, len(users))
	for _, u := range users {
		m[u.DeviceUserID] = u.Name
	}
	return m
}

func copyUsers(users []models.DeviceUser) []models.DeviceUser {
	if users == nil {
		return nil
	}
	out := make([]models.DeviceUser, len(users))
	copy(out, users)
	return out
}
