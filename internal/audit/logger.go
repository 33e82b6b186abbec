// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/models"
)

// Store persists audit events.
type Store interface {
	InsertAuditEvent(ctx context.Context, ev *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, limit int) ([]models.AuditEvent, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds audit settings.
type Config struct {
	// BufferSize is the capacity of the async write buffer.
	BufferSize int
	// RetentionDays is how long events are kept. Zero keeps them forever.
	RetentionDays int
	// CleanupInterval is how often Serve applies retention.
	CleanupInterval time.Duration
	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:      256,
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
		WriteTimeout:    5 * time.Second,
	}
}

// Logger records control audit events asynchronously.
type Logger struct {
	cfg    Config
	store  Store
	events chan *models.AuditEvent
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewLogger creates a Logger and starts its writer.
func NewLogger(store Store, cfg Config) *Logger {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	l := &Logger{
		cfg:    cfg,
		store:  store,
		events: make(chan *models.AuditEvent, cfg.BufferSize),
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

func (l *Logger) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			for {
				select {
				case ev := <-l.events:
					l.write(ev)
				default:
					return
				}
			}
		case ev := <-l.events:
			l.write(ev)
		}
	}
}

func (l *Logger) write(ev *models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.WriteTimeout)
	defer cancel()
	if err := l.store.InsertAuditEvent(ctx, ev); err != nil {
		logging.Error().Err(err).Str("event_id", ev.ID).Str("action", string(ev.Action)).Msg("Failed to save audit event")
	}
}

// Record enqueues ev. It fills ID and Timestamp when unset and never blocks.
func (l *Logger) Record(ev *models.AuditEvent) {
	if ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}

	logging.Info().
		Str("event_id", ev.ID).
		Str("action", string(ev.Action)).
		Bool("success", ev.Success).
		Str("remote_addr", ev.RemoteAddr).
		Str("request_id", ev.RequestID).
		Str("message", ev.Message).
		Msg("Control action")

	select {
	case <-l.stop:
		logging.Warn().Str("event_id", ev.ID).Msg("Audit logger closed, dropping event")
		return
	default:
	}
	select {
	case l.events <- ev:
	default:
		logging.Warn().Str("event_id", ev.ID).Msg("Audit event buffer full, dropping event")
	}
}

// Recent returns up to limit events, newest first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	return l.store.ListAuditEvents(ctx, limit)
}

// Cleanup deletes events older than the retention window.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	return l.store.DeleteAuditEventsBefore(ctx, cutoff)
}

// Serve applies retention every CleanupInterval until ctx ends.
func (l *Logger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := l.Cleanup(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("Audit cleanup error")
				continue
			}
			if n > 0 {
				logging.Info().Int64("count", n).Msg("Cleaned up old audit events")
			}
		}
	}
}

// String names the retention service in the supervisor tree.
func (l *Logger) String() string { return "audit-retention" }

// Close stops the writer after draining buffered events. It is safe to
// call more than once.
func (l *Logger) Close() error {
	l.once.Do(func() { close(l.stop) })
	l.wg.Wait()
	return nil
}
