// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/attendsync/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	users []models.DeviceUser
	err   error
}

func (s *countingSource) ListUsers(context.Context) ([]models.DeviceUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.DeviceUser, len(s.users))
	copy(out, s.users)
	return out, nil
}

type recordingStore struct {
	mu        sync.Mutex
	snapshots [][]models.DeviceUser
	err       error
}

func (s *recordingStore) UpsertDeviceUsers(_ context.Context, users []models.DeviceUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, users)
	return s.err
}

func newTestDirectory(src UserSource, store SnapshotStore) (*Directory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)}
	return NewDirectory(src, store, 5*time.Minute, WithClock(clock.Now)), clock
}

func TestGetUsersHonorsTTL(t *testing.T) {
	src := &countingSource{users: []models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}}}
	store := &recordingStore{}
	dir, clock := newTestDirectory(src, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := dir.GetUsers(ctx, false); err != nil {
			t.Fatalf("GetUsers() error = %v", err)
		}
	}
	if src.calls != 1 {
		t.Errorf("ListUsers calls = %d, want 1 within TTL", src.calls)
	}

	clock.Advance(4*time.Minute + 59*time.Second)
	_, _ = dir.GetUsers(ctx, false)
	if src.calls != 1 {
		t.Errorf("ListUsers calls = %d, want 1 just before expiry", src.calls)
	}

	clock.Advance(time.Second)
	_, _ = dir.GetUsers(ctx, false)
	if src.calls != 2 {
		t.Errorf("ListUsers calls = %d, want 2 after expiry", src.calls)
	}

	if _, err := dir.GetUsers(ctx, true); err != nil {
		t.Fatalf("forced GetUsers() error = %v", err)
	}
	if src.calls != 3 {
		t.Errorf("ListUsers calls = %d, want 3 after forced refresh", src.calls)
	}

	if len(store.snapshots) != 3 {
		t.Errorf("persisted snapshots = %d, want 3 (one per refresh)", len(store.snapshots))
	}
	if got := store.snapshots[0][0].UpdatedAt; !got.Equal(time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("snapshot UpdatedAt = %v, want clock time", got)
	}
}

func TestGetUsersPropagatesFailure(t *testing.T) {
	src := &countingSource{users: []models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}}}
	dir, clock := newTestDirectory(src, nil)
	ctx := context.Background()

	if _, err := dir.GetUsers(ctx, false); err != nil {
		t.Fatalf("GetUsers() error = %v", err)
	}

	src.err = errors.New("device offline")
	clock.Advance(10 * time.Minute)

	users, err := dir.GetUsers(ctx, false)
	if err == nil {
		t.Fatal("expected refresh error to propagate")
	}
	if users != nil {
		t.Errorf("users = %v, want nil on failure", users)
	}
	if info := dir.Snapshot(); info.Size != 1 {
		t.Errorf("previous snapshot size = %d, want 1 (not invalidated)", info.Size)
	}
}

func TestPersistFailureIsNotReturned(t *testing.T) {
	src := &countingSource{users: []models.DeviceUser{{DeviceUserID: 2, Name: "Bob"}}}
	store := &recordingStore{err: errors.New("disk full")}
	dir, _ := newTestDirectory(src, store)

	users, err := dir.GetUsers(context.Background(), false)
	if err != nil {
		t.Fatalf("GetUsers() error = %v, want nil when only persistence fails", err)
	}
	if len(users) != 1 {
		t.Errorf("users = %v", users)
	}
}

func TestReturnedSliceIsACopy(t *testing.T) {
	src := &countingSource{users: []models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}}}
	dir, _ := newTestDirectory(src, nil)

	users, _ := dir.GetUsers(context.Background(), false)
	users[0].Name = "Mallory"

	again, _ := dir.GetUsers(context.Background(), false)
	if again[0].Name != "Alice" {
		t.Errorf("cached snapshot mutated through returned slice: %q", again[0].Name)
	}
}

func TestConcurrentRefreshIsSerialized(t *testing.T) {
	src := &countingSource{users: []models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}}}
	dir, _ := newTestDirectory(src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = dir.GetUsers(context.Background(), false)
		}()
	}
	wg.Wait()

	if src.calls != 1 {
		t.Errorf("ListUsers calls = %d, want 1 for concurrent cold reads", src.calls)
	}
}

func TestSnapshotAndInvalidate(t *testing.T) {
	src := &countingSource{users: []models.DeviceUser{{DeviceUserID: 1}, {DeviceUserID: 2}}}
	dir, clock := newTestDirectory(src, nil)

	if info := dir.Snapshot(); info.Size != 0 || info.FetchedAt != nil || info.Fresh {
		t.Errorf("empty snapshot = %+v", info)
	}

	_, _ = dir.GetUsers(context.Background(), false)
	clock.Advance(time.Minute)
	info := dir.Snapshot()
	if info.Size != 2 || info.Age != time.Minute || !info.Fresh {
		t.Errorf("snapshot = %+v", info)
	}

	dir.Invalidate()
	_, _ = dir.GetUsers(context.Background(), false)
	if src.calls != 2 {
		t.Errorf("ListUsers calls = %d, want 2 after Invalidate", src.calls)
	}
}

func TestNameMap(t *testing.T) {
	m := NameMap([]models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}, {DeviceUserID: 7, Name: "Grace"}})
	if m[1] != "Alice" || m[7] != "Grace" || len(m) != 2 {
		t.Errorf("NameMap = %v", m)
	}
}
