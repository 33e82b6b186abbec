// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/attendsync/internal/logging"
)

// Defaults for SpoolMaintenanceService.
const (
	DefaultSpoolInterval  = time.Minute
	DefaultGCDiscardRatio = 0.5
)

// Replayer drains spooled ledger entries into the store.
type Replayer interface {
	Replay(ctx context.Context) (int, error)
}

// Collector reclaims spool storage.
type Collector interface {
	RunGC(discardRatio float64) error
}

// SpoolMaintenanceService replays the ledger spool and collects BadgerDB
// garbage on a fixed interval. Replay covers entries spooled while no cycle
// has since succeeded. Failures are logged and retried next tick.
type SpoolMaintenanceService struct {
	replayer  Replayer
	collector Collector
	interval  time.Duration
	name      string
}

// NewSpoolMaintenanceService creates the service. A non-positive interval
// means DefaultSpoolInterval. collector may be nil.
func NewSpoolMaintenanceService(replayer Replayer, collector Collector, interval time.Duration) *SpoolMaintenanceService {
	if interval <= 0 {
		interval = DefaultSpoolInterval
	}
	return &SpoolMaintenanceService{
		replayer:  replayer,
		collector: collector,
		interval:  interval,
		name:      "ledger-spool",
	}
}

// Serve implements suture.Service.
func (s *SpoolMaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SpoolMaintenanceService) runOnce(ctx context.Context) {
	log := logging.WithComponent(s.name)
	if n, err := s.replayer.Replay(ctx); err != nil {
		log.Warn().Err(err).Msg("Spool replay failed; will retry")
	} else if n > 0 {
		log.Info().Int("replayed", n).Msg("Spool replay caught up")
	}
	if s.collector == nil {
		return
	}
	if err := s.collector.RunGC(DefaultGCDiscardRatio); err != nil {
		log.Warn().Err(err).Msg("Spool garbage collection failed")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *SpoolMaintenanceService) String() string {
	return s.name
}
