// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package sync

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/attendsync/internal/cache"
	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/models"
)

// ControlResult answers StartAutoSync and StopAutoSync.
type ControlResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConnectionResult answers TestConnection. UserCount is set on success;
// Reachable is set when the probe ran.
type ConnectionResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	UserCount  *int   `json:"userCount,omitempty"`
	Reachable  *bool  `json:"reachable,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// StatusConfig is the configuration reported by GetSyncStatus.
type StatusConfig struct {
	DeviceIP     string `json:"deviceIp"`
	DevicePort   int    `json:"devicePort"`
	Mode         string `json:"mode"`
	Interval     string `json:"interval"`
	ProbeEnabled bool   `json:"probeEnabled"`
	CacheTTL     string `json:"cacheTtl,omitempty"`
}

// SyncStatus answers GetSyncStatus. Uptime is in seconds and SuccessRate
// is a percentage of all recorded cycles.
type SyncStatus struct {
	LastSync        *time.Time         `json:"lastSync"`
	LastSyncSuccess *bool              `json:"lastSyncSuccess,omitempty"`
	LastMessage     string             `json:"lastMessage,omitempty"`
	LastError       *string            `json:"lastError,omitempty"`
	LastErrorAt     *time.Time         `json:"lastErrorAt,omitempty"`
	TotalRecords    int                `json:"totalRecords"`
	TodayRecords    int                `json:"todayRecords"`
	NewRecords      int                `json:"newRecords"`
	SuccessfulSyncs int                `json:"successfulSyncs"`
	FailedSyncs     int                `json:"failedSyncs"`
	Uptime          int64              `json:"uptime"`
	SuccessRate     float64            `json:"successRate"`
	AutoSync        bool               `json:"autoSync"`
	State           State              `json:"state"`
	Directory       cache.SnapshotInfo `json:"directory"`
	Config          StatusConfig       `json:"config"`
}

// SyncNow runs a manual cycle on the caller's goroutine. Requests closer
// together than Config.ManualMinInterval are refused. The cycle keeps the
// caller's context values but not its cancellation: like a scheduled
// tick, it ends early only when Shutdown gives up waiting. A request
// refused as busy does not use up the manual allowance.
func (o *Orchestrator) SyncNow(ctx context.Context) CycleResult {
	if o.isClosed() {
		return CycleResult{Message: "Sync service is shutting down"}
	}
	now := o.clock.Now()
	reservation := o.manual.ReserveN(now, 1)
	if !reservation.OK() || reservation.DelayFrom(now) > 0 {
		reservation.CancelAt(now)
		logging.Ctx(ctx).Info().Dur("min_interval", o.cfg.ManualMinInterval).Msg("Manual sync throttled")
		return CycleResult{
			Message:   fmt.Sprintf("Manual sync is limited to one every %v", o.cfg.ManualMinInterval),
			Throttled: true,
		}
	}

	ctx, cancel := o.detach(ctx)
	defer cancel()
	res := o.RunCycle(ctx, models.SyncTriggerManual)
	if res.Busy {
		reservation.CancelAt(now)
	}
	return res
}

// detach returns a context carrying ctx's values that is canceled only
// with the orchestrator's base context.
func (o *Orchestrator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(o.baseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// GetSyncStatus reports sync health. Store errors degrade individual
// fields to zero and are logged.
func (o *Orchestrator) GetSyncStatus(ctx context.Context) SyncStatus {
	log := logging.Ctx(ctx)
	info := o.device.Info()
	now := o.clock.Now()

	st := SyncStatus{
		Uptime:    int64(now.Sub(o.startedAt) / time.Second),
		AutoSync:  o.autoSyncRunning(),
		State:     o.CurrentState(),
		Directory: o.directory.Snapshot(),
		Config: StatusConfig{
			DeviceIP:     info.IP,
			DevicePort:   info.Port,
			Mode:         o.cfg.DeviceMode,
			Interval:     o.cfg.Interval.String(),
			ProbeEnabled: o.cfg.ProbeEnabled,
		},
	}
	if o.cfg.CacheTTL > 0 {
		st.Config.CacheTTL = o.cfg.CacheTTL.String()
	}

	if latest := o.ledger.Latest(ctx); latest != nil {
		ts := latest.Timestamp
		ok := latest.Success
		st.LastSync = &ts
		st.LastSyncSuccess = &ok
		st.LastMessage = latest.Message
		if ok {
			st.NewRecords = latest.RecordsAdded
		}
	}

	o.mu.RLock()
	if f := o.lastFail; f != nil {
		msg, at := f.message, f.at
		st.LastError = &msg
		st.LastErrorAt = &at
	}
	o.mu.RUnlock()

	var err error
	if st.TotalRecords, err = o.engine.CountAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to count attendance records")
	}
	if st.TodayRecords, err = o.engine.CountByDay(ctx, now); err != nil {
		log.Warn().Err(err).Msg("Failed to count today's attendance")
	}

	totals, err := o.ledger.Totals(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read sync totals")
	}
	st.SuccessfulSyncs = totals.SuccessfulSyncs
	st.FailedSyncs = totals.FailedSyncs
	st.SuccessRate = successRate(totals)
	return st
}

func successRate(t models.SyncTotals) float64 {
	total := t.SuccessfulSyncs + t.FailedSyncs
	if total == 0 {
		return 0
	}
	return math.Round(float64(t.SuccessfulSyncs)*10000/float64(total)) / 100
}

// TestConnection probes the device and reads its user table. It shares the
// cycle lock because terminals accept one session at a time.
func (o *Orchestrator) TestConnection(ctx context.Context) ConnectionResult {
	start := time.Now()
	if o.isClosed() {
		return ConnectionResult{Message: "Sync service is shutting down"}
	}
	if !o.cycleMu.TryLock() {
		return ConnectionResult{Message: "A sync cycle is in progress; try again shortly"}
	}
	defer o.cycleMu.Unlock()

	info := o.device.Info()
	log := logging.Ctx(ctx).With().Str("device", info.IP).Logger()
	res := ConnectionResult{}

	if o.cfg.ProbeEnabled && o.prober != nil {
		p := o.prober.Probe(ctx, info.IP)
		alive := p.Alive
		res.Reachable = &alive
		if !alive {
			log.Warn().Str("reason", p.Reason).Msg("Device did not answer probe; trying TCP anyway")
		}
	}

	count, err := o.device.TestConnection(ctx)
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Message = fmt.Sprintf("Connection to %s:%d failed: %v", info.IP, info.Port, err)
		log.Warn().Err(err).Msg("Device connection test failed")
		return res
	}

	res.Success = true
	res.UserCount = &count
	res.Message = fmt.Sprintf("Connected to %s:%d; %d users enrolled", info.IP, info.Port, count)
	log.Info().Int("users", count).Int64("duration_ms", res.DurationMs).Msg("Device connection test succeeded")
	return res
}

// StartAutoSync starts the fixed-interval scheduler.
func (o *Orchestrator) StartAutoSync() ControlResult {
	if o.isClosed() {
		return ControlResult{Message: "Sync service is shutting down"}
	}
	if !o.startAuto(o.baseCtx) {
		return ControlResult{Message: "Auto-sync is already running"}
	}
	return ControlResult{Success: true, Message: fmt.Sprintf("Auto-sync started (every %v)", o.cfg.Interval)}
}

// StopAutoSync stops the scheduler. An in-flight cycle finishes.
func (o *Orchestrator) StopAutoSync() ControlResult {
	if !o.stopAuto() {
		return ControlResult{Message: "Auto-sync is not running"}
	}
	return ControlResult{Success: true, Message: "Auto-sync stopped"}
}
