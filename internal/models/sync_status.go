// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package models

import (
	"time"
)

// SyncTrigger records what started a sync cycle.
type SyncTrigger string

const (
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerStartup   SyncTrigger = "startup"
)

// SyncStatusRecord is one append-only ledger entry per sync cycle attempt.
type SyncStatusRecord struct {
	ID               string      `json:"id"`
	Timestamp        time.Time   `json:"timestamp"`
	Success          bool        `json:"success"`
	Message          string      `json:"message"`
	RecordsProcessed int         `json:"records_processed"`
	RecordsAdded     int         `json:"records_added"`
	RecordsUpdated   int         `json:"records_updated"`
	RecordsSkipped   int         `json:"records_skipped"`
	TodayRecords     int         `json:"today_records"`
	Error            *string     `json:"error,omitempty"`
	DurationMs       int64       `json:"duration_ms"`
	Trigger          SyncTrigger `json:"trigger"`
	DeviceInfo       DeviceInfo  `json:"device_info"`
}

// DailySummary aggregates the ledger entries of one calendar day.
type DailySummary struct {
	Date                  time.Time  `json:"date"`
	TotalSyncs            int        `json:"total_syncs"`
	SuccessfulSyncs       int        `json:"successful_syncs"`
	FailedSyncs           int        `json:"failed_syncs"`
	TotalRecordsProcessed int        `json:"total_records_processed"`
	TotalRecordsAdded     int        `json:"total_records_added"`
	LastSync              *time.Time `json:"last_sync,omitempty"`
}

// SyncTotals are all-time ledger counters.
type SyncTotals struct {
	SuccessfulSyncs int `json:"successful_syncs"`
	FailedSyncs     int `json:"failed_syncs"`
}
