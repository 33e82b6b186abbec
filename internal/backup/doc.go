// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package backup snapshots the DuckDB attendance store to compressed tar
// archives and prunes old snapshots.
//
// Archive layout:
//
//	attendsync-20260110T020000Z-1a2b3c4d.tar.gz
//	├── database/attendsync.duckdb
//	├── database/attendsync.duckdb.wal   (when present)
//	└── backup-metadata.json
//
// Each archive has a sidecar <archive>.json holding the same metadata, so
// listing never opens an archive. The Manager is a suture service: Serve
// runs the schedule and applies retention after every scheduled backup.
//
// Usage:
//
//	mgr, err := backup.NewManager(backup.DefaultConfig("/data/backups"), db)
//	if err != nil {
//		return err
//	}
//	tree.AddDataService(mgr)
//
//	b, err := mgr.Create(ctx, backup.TriggerManual)
package backup
