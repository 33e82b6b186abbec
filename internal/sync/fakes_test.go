// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package sync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/attendsync/internal/attendance"
	"github.com/tomtom215/attendsync/internal/cache"
	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/probe"
)

var errDevice = errors.New("connection refused")

// fakeDevice serves fixed users and punches. When hold is set, ListPunches
// signals entered and waits for hold to close or ctx to end.
type fakeDevice struct {
	mu         sync.Mutex
	users      []models.DeviceUser
	punches    []models.PunchEvent
	usersErr   error
	punchesErr error
	userCalls  int
	punchCalls int

	hold    chan struct{}
	entered chan struct{}
}

func (d *fakeDevice) Info() models.DeviceInfo {
	return models.DeviceInfo{IP: "192.168.1.201", Port: 4370}
}

func (d *fakeDevice) ListUsers(context.Context) ([]models.DeviceUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userCalls++
	if d.usersErr != nil {
		return nil, d.usersErr
	}
	return append([]models.DeviceUser(nil), d.users...), nil
}

func (d *fakeDevice) ListPunches(ctx context.Context) ([]models.PunchEvent, error) {
	d.mu.Lock()
	d.punchCalls++
	hold, entered := d.hold, d.entered
	punches, err := append([]models.PunchEvent(nil), d.punches...), d.punchesErr
	d.mu.Unlock()

	if hold != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return punches, nil
}

func (d *fakeDevice) TestConnection(ctx context.Context) (int, error) {
	users, err := d.ListUsers(ctx)
	return len(users), err
}

func (d *fakeDevice) calls() (users, punches int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userCalls, d.punchCalls
}

// fakeEngine counts punches per day without a database.
type fakeEngine struct {
	mu        sync.Mutex
	result    attendance.Result
	err       error
	calls     int
	today     int
	total     int
	lastNames map[int]string
}

func (e *fakeEngine) Upsert(_ context.Context, punches []models.PunchEvent, names map[int]string) (attendance.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastNames = names
	if e.err != nil {
		return attendance.Result{}, e.err
	}
	r := e.result
	r.Processed = len(punches)
	return r, nil
}

func (e *fakeEngine) CountByDay(context.Context, time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.today, nil
}

func (e *fakeEngine) CountAll(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total, nil
}

func (e *fakeEngine) upserts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeLedger keeps entries in memory.
type fakeLedger struct {
	mu      sync.Mutex
	entries []models.SyncStatusRecord
	replays int
}

func (l *fakeLedger) Record(_ context.Context, rec *models.SyncStatusRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *rec)
}

func (l *fakeLedger) Latest(context.Context) *models.SyncStatusRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	r := l.entries[len(l.entries)-1]
	return &r
}

func (l *fakeLedger) Totals(context.Context) (models.SyncTotals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var t models.SyncTotals
	for _, r := range l.entries {
		if r.Success {
			t.SuccessfulSyncs++
		} else {
			t.FailedSyncs++
		}
	}
	return t, nil
}

func (l *fakeLedger) Replay(context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replays++
	return 0, nil
}

func (l *fakeLedger) snapshot() []models.SyncStatusRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.SyncStatusRecord(nil), l.entries...)
}

type notifyCall struct {
	count   int
	numbers []string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	next  Notifier
}

func (n *fakeNotifier) NotifyNewAttendance(ctx context.Context, count int, numbers []string) int {
	n.mu.Lock()
	n.calls = append(n.calls, notifyCall{count: count, numbers: append([]string(nil), numbers...)})
	next := n.next
	n.mu.Unlock()
	if next != nil {
		return next.NotifyNewAttendance(ctx, count, numbers)
	}
	return 1
}

func (n *fakeNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type fakeEvents struct {
	mu     sync.Mutex
	types  []string
	events []CycleEvent
}

func (e *fakeEvents) BroadcastJSON(messageType string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, messageType)
	if ev, ok := data.(CycleEvent); ok {
		e.events = append(e.events, ev)
	}
}

type fakeProber struct {
	alive bool
	calls atomic.Int32
}

func (p *fakeProber) Probe(_ context.Context, host string) probe.Result {
	p.calls.Add(1)
	if !p.alive {
		return probe.Result{Reason: "no reply from " + host}
	}
	return probe.Result{Alive: true, RTT: time.Millisecond}
}

// harness bundles an orchestrator with its fakes.
type harness struct {
	orch     *Orchestrator
	device   *fakeDevice
	engine   *fakeEngine
	ledger   *fakeLedger
	notifier *fakeNotifier
	events   *fakeEvents
	prober   *fakeProber
	clock    *FixedClock
}

var testEpoch = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

func newHarness(cfg Config) *harness {
	h := &harness{
		device: &fakeDevice{
			users:   []models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}, {DeviceUserID: 2, Name: "Bob"}},
			punches: []models.PunchEvent{{DeviceUserID: "1", Timestamp: "2026-01-10T09:00:00"}},
		},
		engine:   &fakeEngine{result: attendance.Result{Added: 1, AddedEmployeeNumbers: []string{"1"}}, today: 1, total: 10},
		ledger:   &fakeLedger{},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
		prober:   &fakeProber{alive: true},
		clock:    NewFixedClock(testEpoch),
	}
	dir := cache.NewDirectory(h.device, nil, time.Minute, cache.WithClock(h.clock.Now))
	h.orch = New(Deps{
		Device:    h.device,
		Directory: dir,
		Engine:    h.engine,
		Ledger:    h.ledger,
		Prober:    h.prober,
		Notifier:  h.notifier,
		Events:    h.events,
		Clock:     h.clock,
	}, cfg)
	return h
}
