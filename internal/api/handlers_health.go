// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string     `json:"status"`
	DatabaseConnected bool       `json:"database_connected"`
	LastSync          *time.Time `json:"last_sync,omitempty"`
	LastSyncSuccess   *bool      `json:"last_sync_success,omitempty"`
	Uptime            float64    `json:"uptime"`
}

// Health reports database connectivity and the latest ledger entry.
// It always answers 200; a down database yields status "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	health := HealthStatus{
		Status:            "healthy",
		DatabaseConnected: h.store.Ping(r.Context()) == nil,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if !health.DatabaseConnected {
		health.Status = "degraded"
	}
	if latest := h.history.Latest(r.Context()); latest != nil {
		ts, ok := latest.Timestamp, latest.Success
		health.LastSync = &ts
		health.LastSyncSuccess = &ok
	}
	respondData(w, http.StatusOK, health, start)
}

// HealthLive answers 200 while the process runs.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady answers 200 once the database responds and 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Database not ready", err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{"ready": true}, start)
}
