// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/models"
)

// SyncStatus handles GET /api/v1/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondData(w, http.StatusOK, h.sync.GetSyncStatus(r.Context()), start)
}

// SyncNow handles POST /api/v1/sync/now. The cycle runs on the request
// goroutine and the response carries its outcome.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := h.sync.SyncNow(r.Context())
	h.record(r, models.AuditActionManualSync, res.Success, res.Message, start)
	status := http.StatusOK
	switch {
	case res.Throttled:
		status = http.StatusTooManyRequests
	case res.Busy:
		status = http.StatusConflict
	}
	respondOutcome(w, status, res.Success, res, start)
}

// TestConnection handles POST /api/v1/sync/test-connection.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := h.sync.TestConnection(r.Context())
	h.record(r, models.AuditActionTestConnection, res.Success, res.Message, start)
	respondOutcome(w, http.StatusOK, res.Success, res, start)
}

// StartAutoSync handles POST /api/v1/sync/auto/start.
func (h *Handler) StartAutoSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := h.sync.StartAutoSync()
	h.record(r, models.AuditActionAutoSyncStart, res.Success, res.Message, start)
	respondOutcome(w, http.StatusOK, res.Success, res, start)
}

// StopAutoSync handles POST /api/v1/sync/auto/stop.
func (h *Handler) StopAutoSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := h.sync.StopAutoSync()
	h.record(r, models.AuditActionAutoSyncStop, res.Success, res.Message, start)
	respondOutcome(w, http.StatusOK, res.Success, res, start)
}

// SyncLatest handles GET /api/v1/sync/latest.
func (h *Handler) SyncLatest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	latest := h.history.Latest(r.Context())
	if latest == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No sync has been recorded yet", nil)
		return
	}
	respondData(w, http.StatusOK, latest, start)
}

// SyncHistorySummary handles GET /api/v1/sync/history/summary?date=YYYY-MM-DD.
func (h *Handler) SyncHistorySummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	day, apiErr := h.parseDay(r)
	if apiErr != nil {
		respondJSONError(w, http.StatusBadRequest, apiErr)
		return
	}
	summary, err := h.history.DailySummary(r.Context(), day)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load sync summary", err)
		return
	}
	respondData(w, http.StatusOK, summary, start)
}

// SyncAudit handles GET /api/v1/sync/audit?limit=N.
func (h *Handler) SyncAudit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.audit == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Audit trail is not enabled", nil)
		return
	}
	limit, apiErr := parseLimit(r)
	if apiErr != nil {
		respondJSONError(w, http.StatusBadRequest, apiErr)
		return
	}
	events, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load audit trail", err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	respondData(w, http.StatusOK, events, start)
}

func (h *Handler) record(r *http.Request, action models.AuditAction, success bool, message string, start time.Time) {
	if h.audit == nil {
		return
	}
	h.audit.Record(&models.AuditEvent{
		Timestamp:  h.now(),
		Action:     action,
		Success:    success,
		Message:    message,
		RemoteAddr: r.RemoteAddr,
		RequestID:  logging.RequestIDFromContext(r.Context()),
		DurationMs: time.Since(start).Milliseconds(),
	})
}
