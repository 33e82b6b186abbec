// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/attendsync/internal/zk"
)

// mockSession is a scripted Session.
type mockSession struct {
	users      []zk.User
	attendance []zk.Attendance
	usersErr   error
	attErr     error
	panicMsg   string
	block      bool
	closed     atomic.Int32
}

func (s *mockSession) Users(ctx context.Context) ([]zk.User, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.users, s.usersErr
}

func (s *mockSession) Attendance(_ context.Context, _ []zk.User) ([]zk.Attendance, error) {
	return s.attendance, s.attErr
}

func (s *mockSession) Close(context.Context) error {
	s.closed.Add(1)
	return nil
}

// mockDialer fails the first failN dials, then returns session.
type mockDialer struct {
	mu      sync.Mutex
	failN   int
	err     error
	session *mockSession
	dials   int
}

func (d *mockDialer) Dial(_ context.Context, _ string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failN < 0 || d.dials <= d.failN {
		return nil, d.err
	}
	return d.session, nil
}

func (d *mockDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func testConfig(tries int) Config {
	return Config{IP: "192.168.1.201", Port: 4370, Timeout: time.Second, ConnectionTries: tries, ConnectionDelay: 2 * time.Second}
}

func TestConnectRetryExhaustion(t *testing.T) {
	for _, tries := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("tries=%d", tries), func(t *testing.T) {
			dialer := &mockDialer{failN: -1, err: errors.New("connection refused")}
			rec := &sleepRecorder{}
			c := New(testConfig(tries), dialer, WithSleep(rec.sleep))

			_, err := c.ListUsers(context.Background())

			var ce *ConnectionError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want *ConnectionError", err)
			}
			if ce.Attempts != tries {
				t.Errorf("Attempts = %d, want %d", ce.Attempts, tries)
			}
			if ce.Address != "192.168.1.201:4370" {
				t.Errorf("Address = %q", ce.Address)
			}
			if dialer.count() != tries {
				t.Errorf("dials = %d, want %d", dialer.count(), tries)
			}
			if len(rec.delays) != tries-1 {
				t.Errorf("delays = %v, want %d waits", rec.delays, tries-1)
			}
			for _, d := range rec.delays {
				if d != 2*time.Second {
					t.Errorf("delay = %v, want 2s fixed", d)
				}
			}
		})
	}
}

func TestConnectSucceedsAfterRetries(t *testing.T) {
	sess := &mockSession{users: []zk.User{{UID: 1, Name: "Alice", UserID: "1"}}}
	dialer := &mockDialer{failN: 2, err: errors.New("timeout"), session: sess}
	rec := &sleepRecorder{}
	c := New(testConfig(5), dialer, WithSleep(rec.sleep))

	users, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].Name != "Alice" || users[0].DeviceUserID != 1 {
		t.Errorf("users = %+v", users)
	}
	if dialer.count() != 3 {
		t.Errorf("dials = %d, want 3", dialer.count())
	}
	if sess.closed.Load() != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed.Load())
	}
}

func TestSessionClosedOnEveryPath(t *testing.T) {
	tests := []struct {
		name    string
		session *mockSession
		check   func(error) bool
	}{
		{"success", &mockSession{}, func(err error) bool { return err == nil }},
		{"transport failure", &mockSession{usersErr: errors.New("broken pipe")}, IsConnectionError},
		{"protocol failure", &mockSession{usersErr: fmt.Errorf("decode: %w", zk.ErrShortPayload)}, IsProtocolError},
		{"panic", &mockSession{panicMsg: "index out of range"}, IsProtocolError},
		{"timeout", &mockSession{block: true}, IsConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(1)
			cfg.Timeout = 50 * time.Millisecond
			c := New(cfg, &mockDialer{session: tt.session})

			_, err := c.ListUsers(context.Background())
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
			if tt.session.closed.Load() != 1 {
				t.Errorf("session closed %d times, want 1", tt.session.closed.Load())
			}
		})
	}
}

func TestListPunches(t *testing.T) {
	ts := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	sess := &mockSession{attendance: []zk.Attendance{
		{UserID: "1", Timestamp: ts, Status: 1, Punch: 0, Raw: []byte{0xAB}},
	}}
	c := New(testConfig(1), &mockDialer{session: sess})

	punches, err := c.ListPunches(context.Background())
	if err != nil {
		t.Fatalf("ListPunches() error = %v", err)
	}
	if len(punches) != 1 {
		t.Fatalf("len = %d, want 1", len(punches))
	}
	p := punches[0]
	if p.DeviceUserID != "1" || p.Timestamp != "2026-01-10T09:00:00" || p.TypeCode != 1 || p.RawData != "ab" {
		t.Errorf("punch = %+v", p)
	}
}

func TestTestConnection(t *testing.T) {
	sess := &mockSession{users: []zk.User{{UID: 1, UserID: "1"}, {UID: 2, UserID: "2"}}}
	c := New(testConfig(1), &mockDialer{session: sess})

	n, err := c.TestConnection(context.Background())
	if err != nil || n != 2 {
		t.Errorf("TestConnection() = %d, %v; want 2, nil", n, err)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	dialer := &mockDialer{failN: -1, err: errors.New("no route to host")}
	c := New(testConfig(1), dialer, WithBreaker(3, time.Hour))

	for i := 0; i < 3; i++ {
		if _, err := c.ListUsers(context.Background()); !IsConnectionError(err) {
			t.Fatalf("call %d: error = %v", i, err)
		}
	}
	if c.BreakerState() != "open" {
		t.Fatalf("BreakerState() = %q, want open", c.BreakerState())
	}

	_, err := c.ListUsers(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsConnectionError(err) {
		t.Errorf("error = %v, want ConnectionError wrapping ErrOpenState", err)
	}
	if dialer.count() != 3 {
		t.Errorf("dials = %d, want 3 (open circuit must not dial)", dialer.count())
	}
}

func TestCanceledContextDoesNotTripBreaker(t *testing.T) {
	c := New(testConfig(1), &mockDialer{failN: -1, err: errors.New("refused")}, WithBreaker(1, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListUsers(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if c.BreakerState() != "closed" {
		t.Errorf("BreakerState() = %q, want closed", c.BreakerState())
	}
}

func TestToDeviceUser(t *testing.T) {
	tests := []struct {
		in     zk.User
		wantID int
	}{
		{zk.User{UID: 3, UserID: "1001"}, 1001},
		{zk.User{UID: 3, UserID: "EMP-7"}, 3},
		{zk.User{UID: 4, UserID: ""}, 4},
	}
	for _, tt := range tests {
		if got := toDeviceUser(tt.in); got.DeviceUserID != tt.wantID {
			t.Errorf("toDeviceUser(%+v).DeviceUserID = %d, want %d", tt.in, got.DeviceUserID, tt.wantID)
		}
	}
	if du := toDeviceUser(zk.User{UID: 1, UserID: "1", Card: 42}); du.CardNumber == nil || *du.CardNumber != "42" {
		t.Errorf("card number not mapped: %+v", du)
	}
}
