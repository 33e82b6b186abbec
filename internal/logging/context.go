// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// cycleIDKey carries the sync cycle ID through device, cache and store calls.
	cycleIDKey contextKey = "cycle_id"

	// requestIDKey carries the HTTP request ID.
	requestIDKey contextKey = "request_id"
)

// NewCycleID returns a short unique ID for one sync cycle.
func NewCycleID() string {
	return uuid.New().String()[:8]
}

// NewRequestID returns a unique HTTP request ID.
func NewRequestID() string {
	return uuid.New().String()
}

// ContextWithCycleID returns a context tagged with the given sync cycle ID.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext returns the cycle ID, or "" if none is set.
func CycleIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a context tagged with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with cycle_id and request_id from ctx.
//
//	logging.Ctx(ctx).Info().Int("users", n).Msg("Directory refreshed")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := CycleIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("cycle_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
//
//	log := logging.WithComponent("device")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
