// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package services adapts AttendSync components to suture.Service.

  - SyncService: Start/Shutdown lifecycle of the sync orchestrator
  - WebSocketHubService: the hub's RunWithContext loop
  - HTTPServerService: ListenAndServe with graceful Shutdown
  - SpoolMaintenanceService: periodic ledger spool replay and BadgerDB value log GC

Each wrapper returns ctx.Err() on a normal stop and a wrapped error when the
component fails, which suture counts toward its restart backoff.
*/
package services
