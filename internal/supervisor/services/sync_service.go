// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package services

import (
	"context"
	"fmt"
	"time"
)

// Orchestrator is the sync orchestrator's lifecycle.
type Orchestrator interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// SyncService runs the orchestrator until its context ends, then shuts it
// down, waiting up to shutdownTimeout for the in-flight cycle.
type SyncService struct {
	orchestrator    Orchestrator
	shutdownTimeout time.Duration
	name            string
}

// NewSyncService wraps o. A non-positive timeout means 30s.
func NewSyncService(o Orchestrator, shutdownTimeout time.Duration) *SyncService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &SyncService{
		orchestrator:    o,
		shutdownTimeout: shutdownTimeout,
		name:            "sync-orchestrator",
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("sync orchestrator start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.orchestrator.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sync orchestrator shutdown failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logs.
func (s *SyncService) String() string {
	return s.name
}
