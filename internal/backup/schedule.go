// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package backup

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/attendsync/internal/logging"
)

const day = 24 * time.Hour

// Serve runs scheduled backups until ctx is canceled. Retention is applied
// after every scheduled backup. It implements suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	for {
		now := m.now()
		next := m.nextRun(now)
		logging.Debug().Time("next_backup", next).Msg("Backup scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := m.Create(ctx, TriggerScheduled); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrInProgress) {
				logging.Info().Msg("Scheduled backup skipped; another backup is running")
			}
		}
		if _, err := m.Prune(ctx); err != nil {
			logging.Error().Err(err).Msg("Backup retention failed")
		}
	}
}

// String names the service in supervisor logs.
func (m *Manager) String() string { return "database-backup" }

// nextRun returns the next scheduled time after now. Intervals under a day
// are relative to now; longer ones land on PreferredHour.
func (m *Manager) nextRun(now time.Time) time.Time {
	if m.cfg.Interval < day {
		return now.Add(m.cfg.Interval)
	}
	local := now.In(m.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), m.cfg.PreferredHour, 0, 0, 0, m.cfg.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	if days := int(m.cfg.Interval / day); days > 1 {
		next = next.AddDate(0, 0, days-1)
	}
	return next
}
