// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/attendsync/internal/cache"
	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// Event types published to Broadcaster.
const (
	EventSyncCompleted = "sync_completed"
	EventSyncFailed    = "sync_failed"
)

// Failure stages reported in metrics and messages.
const (
	stageUsers   = "fetch_users"
	stagePunches = "fetch_punches"
	stageUpsert  = "upsert"
)

// CycleResult is the outcome of one cycle request.
type CycleResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Added        int    `json:"added"`
	Updated      int    `json:"updated"`
	Skipped      int    `json:"skipped"`
	Processed    int    `json:"processed"`
	TodayRecords int    `json:"todayRecords"`
	DurationMs   int64  `json:"durationMs"`

	// Busy is set when the request was dropped because a cycle was running.
	Busy bool `json:"busy,omitempty"`
	// Throttled is set when a manual request arrived too soon after the last.
	Throttled bool `json:"throttled,omitempty"`
}

// CycleEvent is the payload of EventSyncCompleted and EventSyncFailed.
type CycleEvent struct {
	CycleID   string             `json:"cycleId"`
	Trigger   models.SyncTrigger `json:"trigger"`
	Timestamp time.Time          `json:"timestamp"`
	Stage     string             `json:"stage,omitempty"`
	CycleResult
}

// RunCycle runs one cycle unless another is in flight, in which case it
// returns immediately with Busy set.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger models.SyncTrigger) CycleResult {
	if o.isClosed() {
		return CycleResult{Message: "Sync service is shutting down"}
	}
	if !o.cycleMu.TryLock() {
		metrics.RecordSyncSkipped(string(trigger))
		logging.Ctx(ctx).Info().Str("trigger", string(trigger)).Msg("Sync cycle already in progress; skipping")
		return CycleResult{Busy: true, Message: "A sync cycle is already in progress"}
	}
	defer o.cycleMu.Unlock()
	defer o.setState(StateIdle)

	return o.cycle(ctx, trigger)
}

// run carries one cycle's bookkeeping.
type run struct {
	id      string
	trigger models.SyncTrigger
	started time.Time
	clock   time.Time
	info    models.DeviceInfo
}

func (r *run) elapsed() time.Duration { return time.Since(r.started) }

func (o *Orchestrator) cycle(ctx context.Context, trigger models.SyncTrigger) CycleResult {
	r := &run{
		id:      logging.NewCycleID(),
		trigger: trigger,
		started: time.Now(),
		clock:   o.clock.Now(),
		info:    o.device.Info(),
	}
	ctx = logging.ContextWithCycleID(ctx, r.id)
	log := logging.Ctx(ctx)

	o.setState(StateScheduled)
	log.Debug().Str("trigger", string(trigger)).Str("device", r.info.IP).Msg("Sync cycle started")

	if o.cfg.ProbeEnabled && o.prober != nil {
		o.setState(StateProbing)
		if res := o.prober.Probe(ctx, r.info.IP); !res.Alive {
			log.Warn().Str("device", r.info.IP).Str("reason", res.Reason).
				Msg("Device did not answer probe; attempting sync anyway")
		}
	}

	o.setState(StateFetchingUsers)
	users, err := o.directory.GetUsers(ctx, false)
	if err != nil {
		return o.fail(ctx, r, stageUsers, err)
	}
	r.info.UserCount = len(users)

	o.setState(StateFetchingPunches)
	punches, err := o.device.ListPunches(ctx)
	if err != nil {
		return o.fail(ctx, r, stagePunches, err)
	}

	o.setState(StateUpserting)
	up, err := o.engine.Upsert(ctx, punches, cache.NameMap(users))
	if err != nil {
		return o.fail(ctx, r, stageUpsert, err)
	}

	today, err := o.engine.CountByDay(ctx, o.clock.Now())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count today's attendance")
	}

	res := CycleResult{
		Success:      true,
		Message:      fmt.Sprintf("Processed %d punches: %d added, %d updated, %d skipped", up.Processed, up.Added, up.Updated, up.Skipped),
		Added:        up.Added,
		Updated:      up.Updated,
		Skipped:      up.Skipped,
		Processed:    up.Processed,
		TodayRecords: today,
		DurationMs:   r.elapsed().Milliseconds(),
	}

	o.setState(StateRecording)
	o.ledger.Record(ctx, &models.SyncStatusRecord{
		Timestamp:        r.clock,
		Success:          true,
		Message:          res.Message,
		RecordsProcessed: res.Processed,
		RecordsAdded:     res.Added,
		RecordsUpdated:   res.Updated,
		RecordsSkipped:   res.Skipped,
		TodayRecords:     today,
		DurationMs:       res.DurationMs,
		Trigger:          trigger,
		DeviceInfo:       r.info,
	})

	if up.Added > 0 && o.notifier != nil {
		o.notifier.NotifyNewAttendance(ctx, up.Added, up.AddedEmployeeNumbers)
	}

	o.remember(res, r.clock)
	o.publish(EventSyncCompleted, r, "", res)
	metrics.RecordSyncCycle(string(trigger), r.elapsed(), up.Added, up.Updated, up.Skipped, "")

	log.Info().
		Str("trigger", string(trigger)).
		Int("processed", res.Processed).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("today", today).
		Int64("duration_ms", res.DurationMs).
		Msg("Sync cycle completed")
	return res
}

// fail ends a cycle at stage with one failed ledger entry.
func (o *Orchestrator) fail(ctx context.Context, r *run, stage string, cause error) CycleResult {
	errMsg := cause.Error()
	res := CycleResult{
		Message:    fmt.Sprintf("Sync failed during %s: %s", stage, errMsg),
		DurationMs: r.elapsed().Milliseconds(),
	}

	o.setState(StateRecording)
	o.ledger.Record(ctx, &models.SyncStatusRecord{
		Timestamp:  r.clock,
		Success:    false,
		Message:    res.Message,
		Error:      &errMsg,
		DurationMs: res.DurationMs,
		Trigger:    r.trigger,
		DeviceInfo: r.info,
	})

	o.remember(res, r.clock)
	o.publish(EventSyncFailed, r, stage, res)
	metrics.RecordSyncCycle(string(r.trigger), r.elapsed(), 0, 0, 0, stage)

	logging.Ctx(ctx).Error().Err(cause).
		Str("trigger", string(r.trigger)).
		Str("stage", stage).
		Int64("duration_ms", res.DurationMs).
		Msg("Sync cycle failed")
	return res
}

// failure is the most recent failed cycle.
type failure struct {
	message string
	at      time.Time
}

func (o *Orchestrator) remember(res CycleResult, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &res
	if !res.Success {
		o.lastFail = &failure{message: res.Message, at: at}
	}
}

// LastResult returns the outcome of the most recent completed cycle.
func (o *Orchestrator) LastResult() (CycleResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return CycleResult{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) publish(eventType string, r *run, stage string, res CycleResult) {
	if o.events == nil {
		return
	}
	o.events.BroadcastJSON(eventType, CycleEvent{
		CycleID:     r.id,
		Trigger:     r.trigger,
		Timestamp:   r.clock,
		Stage:       stage,
		CycleResult: res,
	})
}
