// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package api exposes the sync control interface and read-only attendance
queries over HTTP using the chi router.

Endpoints (all under /api/v1 unless noted):

	GET  /health                 database and last-sync health
	GET  /health/live            liveness probe
	GET  /health/ready           readiness probe (503 until the database answers)
	GET  /sync/status            sync health report
	POST /sync/now               run a manual cycle (429 when throttled, 409 when busy)
	POST /sync/test-connection   probe and handshake with the device
	POST /sync/auto/start        start the periodic scheduler
	POST /sync/auto/stop         stop the periodic scheduler
	GET  /sync/latest            latest ledger entry
	GET  /sync/history/summary   ledger summary of ?date=YYYY-MM-DD
	GET  /sync/audit             recent control operations, ?limit=1..500
	GET  /attendance             attendance records of ?date=YYYY-MM-DD
	GET  /device/users           persisted device directory
	GET  /backups                database snapshots, newest first
	POST /backups                take a snapshot now (409 when one is running)
	POST /backups/{id}/verify    recheck a snapshot's checksums
	GET  /ws                     live sync_completed and sync_failed events
	GET  /metrics                Prometheus exposition (root path)

Every JSON response uses the models.APIResponse envelope. Control
operations never fail at the HTTP level: their outcome is the data payload,
whose success flag and message describe what happened.
*/
package api
