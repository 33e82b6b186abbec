// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	if p := New(0); p.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", p.timeout, DefaultTimeout)
	}
	if p := New(500 * time.Millisecond); p.timeout != 500*time.Millisecond {
		t.Errorf("timeout = %v, want 500ms", p.timeout)
	}
}

func TestProbeNeverFails(t *testing.T) {
	fixed := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		host string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"ipv6 literal", "::1", func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) }},
		{"unresolvable", "no-such-host.invalid", func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) }},
		{"canceled context", "192.0.2.1", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(200 * time.Millisecond)
			p.now = func() time.Time { return fixed }

			ctx, cancel := tt.ctx()
			defer cancel()

			res := p.Probe(ctx, tt.host)
			if res.Alive {
				t.Errorf("Alive = true for %s", tt.host)
			}
			if res.Reason == "" {
				t.Error("Reason should explain the failure")
			}
			if !res.CheckedAt.Equal(fixed) {
				t.Errorf("CheckedAt = %v, want %v", res.CheckedAt, fixed)
			}
		})
	}
}

func TestProbeIsBounded(t *testing.T) {
	p := New(300 * time.Millisecond)

	start := time.Now()
	// Some networks answer for TEST-NET-1, so only the bound is asserted.
	res := p.Probe(context.Background(), "192.0.2.1")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Probe took %v, want it bounded by the timeout", elapsed)
	}
	if !res.Alive && res.Reason == "" {
		t.Error("a failed probe should carry a reason")
	}
}

func TestSameHost(t *testing.T) {
	ip := net.IPv4(10, 0, 0, 5)
	if !sameHost(&net.UDPAddr{IP: ip}, ip) {
		t.Error("UDPAddr with same IP should match")
	}
	if !sameHost(&net.IPAddr{IP: ip}, ip) {
		t.Error("IPAddr with same IP should match")
	}
	if sameHost(&net.IPAddr{IP: net.IPv4(10, 0, 0, 6)}, ip) {
		t.Error("different IP should not match")
	}
}
