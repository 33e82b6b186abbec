// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package device

import (
	"context"
	"time"

	"github.com/tomtom215/attendsync/internal/zk"
)

// Session is one open protocol session with the terminal.
type Session interface {
	Users(ctx context.Context) ([]zk.User, error)
	Attendance(ctx context.Context, users []zk.User) ([]zk.Attendance, error)
	Close(ctx context.Context) error
}

// Dialer opens sessions. Dial must honor ctx's deadline.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Session, error)
}

// ZKDialer opens TCP sessions with the zk protocol.
type ZKDialer struct {
	Layout   zk.Layout
	Location *time.Location
}

// Dial implements Dialer.
func (d ZKDialer) Dial(ctx context.Context, addr string) (Session, error) {
	return zk.Dial(ctx, addr, zk.WithLayout(d.Layout), zk.WithLocation(d.Location))
}
