// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package notify tells HRMS admins and HR managers about newly synced
// attendance. Delivery is best-effort and never fails the sync cycle.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
)

// Source tags notification metadata with the producing subsystem.
const Source = "biometric_device"

// maxListedNumbers caps how many employee numbers the message text spells out.
const maxListedNumbers = 10

// Recipients lists the users to notify.
type Recipients interface {
	ListNotificationRecipients(ctx context.Context) ([]models.User, error)
}

// Store persists notifications.
type Store interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// Notifier creates one in-app notification per recipient.
type Notifier struct {
	recipients Recipients
	store      Store
	now        func() time.Time
}

// New creates a Notifier.
func New(recipients Recipients, store Store) *Notifier {
	return &Notifier{recipients: recipients, store: store, now: time.Now}
}

// WithClock returns a copy of n using now for CreatedAt.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	cp := *n
	cp.now = now
	return &cp
}

// NotifyNewAttendance announces count new records. It returns how many
// notifications were stored. Failures are logged and counted, never returned.
func (n *Notifier) NotifyNewAttendance(ctx context.Context, count int, employeeNumbers []string) int {
	if count <= 0 {
		return 0
	}
	log := logging.Ctx(ctx)

	users, err := n.recipients.ListNotificationRecipients(ctx)
	if err != nil {
		metrics.RecordNotification(err)
		log.Error().Err(err).Int("count", count).Msg("Failed to load notification recipients")
		return 0
	}
	if len(users) == 0 {
		log.Debug().Int("count", count).Msg("No notification recipients configured")
		return 0
	}

	title := "New Attendance Records"
	message := buildMessage(count, employeeNumbers)
	numbers := append([]string(nil), employeeNumbers...)
	created := n.now()

	sent := 0
	for _, u := range users {
		note := &models.Notification{
			UserID:  u.ID,
			Title:   title,
			Message: message,
			Type:    models.NotificationTypeAttendanceSync,
			Metadata: map[string]interface{}{
				"count":           count,
				"employeeNumbers": numbers,
				"source":          Source,
			},
			CreatedAt: created,
		}
		err := n.store.InsertNotification(ctx, note)
		metrics.RecordNotification(err)
		if err != nil {
			log.Warn().Err(err).Str("user_id", u.ID).Msg("Failed to create attendance notification")
			continue
		}
		sent++
	}

	log.Info().Int("count", count).Int("recipients", len(users)).Int("sent", sent).Msg("Attendance notifications sent")
	return sent
}

func buildMessage(count int, numbers []string) string {
	noun := "records"
	if count == 1 {
		noun = "record"
	}
	msg := fmt.Sprintf("%d new attendance %s synced from the biometric device", count, noun)
	if len(numbers) == 0 {
		return msg + "."
	}
	listed := numbers
	if len(listed) > maxListedNumbers {
		listed = listed[:maxListedNumbers]
	}
	msg += " for employees " + strings.Join(listed, ", ")
	if extra := len(numbers) - len(listed); extra > 0 {
		msg += fmt.Sprintf(" and %d more", extra)
	}
	return msg + "."
}
