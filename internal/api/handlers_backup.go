// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/attendsync/internal/backup"
	"github.com/tomtom215/attendsync/internal/models"
)

// ListBackups handles GET /api/v1/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.backupsEnabled(w, r) {
		return
	}
	list, err := h.backups.List()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeBackupFailed, "Failed to list backups", err)
		return
	}
	respondData(w, http.StatusOK, list, start)
}

// CreateBackup handles POST /api/v1/backups. The snapshot is taken on the
// request goroutine.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.backupsEnabled(w, r) {
		return
	}
	b, err := h.backups.Create(r.Context(), backup.TriggerManual)
	if err != nil {
		h.record(r, models.AuditActionBackupCreate, false, err.Error(), start)
		switch {
		case errors.Is(err, backup.ErrInProgress):
			respondError(w, r, http.StatusConflict, ErrCodeBackupInProgress, "A backup is already running", nil)
		case errors.Is(err, backup.ErrNoDatabaseFile):
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "The database is not file-backed", nil)
		default:
			respondError(w, r, http.StatusInternalServerError, ErrCodeBackupFailed, "Backup failed", err)
		}
		return
	}
	h.record(r, models.AuditActionBackupCreate, true, "Backup "+b.FileName+" created", start)
	respondData(w, http.StatusCreated, b, start)
}

// VerifyBackup handles POST /api/v1/backups/{id}/verify.
func (h *Handler) VerifyBackup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.backupsEnabled(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	b, err := h.backups.Verify(r.Context(), id)
	switch {
	case errors.Is(err, backup.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Backup not found", nil)
		return
	case errors.Is(err, backup.ErrCorrupted):
		h.record(r, models.AuditActionBackupVerify, false, err.Error(), start)
		respondError(w, r, http.StatusUnprocessableEntity, ErrCodeBackupCorrupted, err.Error(), nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, ErrCodeBackupFailed, "Verification failed", err)
		return
	}
	h.record(r, models.AuditActionBackupVerify, true, "Backup "+b.FileName+" verified", start)
	respondData(w, http.StatusOK, b, start)
}

func (h *Handler) backupsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.backups == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Backups are not enabled", nil)
		return false
	}
	return true
}
