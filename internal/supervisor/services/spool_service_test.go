// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/attendsync/internal/wal"
)

type countingReplayer struct {
	calls atomic.Int32
	err   error
}

func (r *countingReplayer) Replay(context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestSpoolMaintenanceServiceTicks(t *testing.T) {
	spool, err := wal.Open(wal.Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer spool.Close()

	replayer := &countingReplayer{err: errors.New("store still down")}
	svc := NewSpoolMaintenanceService(replayer, spool, 10*time.Millisecond)
	if svc.String() != "ledger-spool" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for replayer.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if n := replayer.calls.Load(); n < 3 {
		t.Errorf("replay calls = %d, want at least 3", n)
	}
}

func TestSpoolMaintenanceServiceDefaults(t *testing.T) {
	svc := NewSpoolMaintenanceService(&countingReplayer{}, nil, 0)
	if svc.interval != DefaultSpoolInterval {
		t.Errorf("interval = %v", svc.interval)
	}
	svc.runOnce(context.Background())
}
