// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package models defines data structures shared across AttendSync.

Key Components:

  - AttendanceRecord: one row per (device user id, calendar day)
  - PunchEvent: a single clock-in/out event as reported by the terminal
  - DeviceUser: an enrolled user from the terminal's directory
  - SyncStatusRecord: one ledger entry per sync cycle attempt
  - User, Notification: HRMS collaborators read and written by the notifier
  - APIResponse: standardized HTTP response wrapper

Models carry JSON tags for the HTTP API and the ledger spool. Database
mapping lives in internal/database; this package has no storage logic.
*/
package models
