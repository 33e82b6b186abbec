// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package sync runs attendance sync cycles against the biometric terminal.

An Orchestrator owns one cycle at a time:

 1. Probe: advisory ICMP reachability check; a failure is logged and the cycle continues
 2. Users: the device user directory, served from a TTL cache
 3. Punches: every punch the device holds
 4. Upsert: punches applied to attendance keyed by (device user, calendar day)
 5. Record: one ledger entry per cycle, success or failure
 6. Notify: HR is told when the cycle added records

A users, punches or upsert failure ends the cycle with one failed ledger entry
and no further writes. The next tick tries again.

Cycles never overlap. A tick or manual trigger that arrives while a cycle runs
is skipped and counted in attendsync_sync_cycles_skipped_total.

The control methods (SyncNow, GetSyncStatus, TestConnection, StartAutoSync,
StopAutoSync) never return Go errors; failures become Success=false with a
human readable Message so the API layer can pass them straight through.

Lifecycle:

	orch := sync.New(deps, cfg)
	if err := orch.Start(ctx); err != nil { ... }
	defer orch.Shutdown(shutdownCtx)

Start records an initial startup cycle and then starts the auto-sync ticker
when enabled. Shutdown stops the ticker and waits for the in-flight cycle.
*/
package sync
