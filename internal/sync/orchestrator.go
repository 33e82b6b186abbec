// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/attendsync/internal/attendance"
	"github.com/tomtom215/attendsync/internal/cache"
	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/probe"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultInterval          = 5 * time.Second
	DefaultManualMinInterval = 5 * time.Second
)

// DeviceClient is the terminal the orchestrator reads from.
type DeviceClient interface {
	ListPunches(ctx context.Context) ([]models.PunchEvent, error)
	TestConnection(ctx context.Context) (int, error)
	Info() models.DeviceInfo
}

// UserDirectory serves device users from a cache.
type UserDirectory interface {
	GetUsers(ctx context.Context, forceRefresh bool) ([]models.DeviceUser, error)
	Snapshot() cache.SnapshotInfo
}

// Prober checks reachability before a cycle.
type Prober interface {
	Probe(ctx context.Context, host string) probe.Result
}

// Upserter applies punches to attendance.
type Upserter interface {
	Upsert(ctx context.Context, punches []models.PunchEvent, names map[int]string) (attendance.Result, error)
	CountByDay(ctx context.Context, day time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
}

// Ledger records one entry per cycle.
type Ledger interface {
	Record(ctx context.Context, rec *models.SyncStatusRecord)
	Latest(ctx context.Context) *models.SyncStatusRecord
	Totals(ctx context.Context) (models.SyncTotals, error)
	Replay(ctx context.Context) (int, error)
}

// Notifier announces newly added attendance.
type Notifier interface {
	NotifyNewAttendance(ctx context.Context, count int, employeeNumbers []string) int
}

// Broadcaster publishes cycle events to live clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// Deps are the collaborators of an Orchestrator. Prober, Notifier, Events
// and Clock are optional.
type Deps struct {
	Device    DeviceClient
	Directory UserDirectory
	Engine    Upserter
	Ledger    Ledger
	Prober    Prober
	Notifier  Notifier
	Events    Broadcaster
	Clock     Clock
}

// Config holds scheduling settings.
type Config struct {
	Interval          time.Duration
	AutoSync          bool
	ProbeEnabled      bool
	ManualMinInterval time.Duration

	// DeviceMode and CacheTTL are reported by GetSyncStatus only.
	DeviceMode string
	CacheTTL   time.Duration
}

// State is the orchestrator's position in the cycle.
type State string

const (
	StateIdle            State = "idle"
	StateScheduled       State = "scheduled"
	StateProbing         State = "probing_device"
	StateFetchingUsers   State = "fetching_users"
	StateFetchingPunches State = "fetching_punches"
	StateUpserting       State = "upserting"
	StateRecording       State = "recording_status"
)

// Orchestrator runs sync cycles one at a time.
type Orchestrator struct {
	device    DeviceClient
	directory UserDirectory
	engine    Upserter
	ledger    Ledger
	prober    Prober
	notifier  Notifier
	events    Broadcaster
	clock     Clock
	cfg       Config

	startedAt time.Time
	manual    *rate.Limiter

	// cycleMu is held for the whole of one cycle.
	cycleMu sync.Mutex

	// baseCtx parents cycles the orchestrator starts itself. It is
	// canceled only when Shutdown gives up waiting.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu       sync.RWMutex
	running  bool
	closed   bool
	state    State
	autoStop chan struct{}
	last     *CycleResult
	lastFail *failure

	wg sync.WaitGroup
}

// New creates an Orchestrator. It panics if a required dependency is nil.
func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Device == nil || deps.Directory == nil || deps.Engine == nil || deps.Ledger == nil {
		panic("sync: Device, Directory, Engine and Ledger are required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ManualMinInterval <= 0 {
		cfg.ManualMinInterval = DefaultManualMinInterval
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		device:     deps.Device,
		directory:  deps.Directory,
		engine:     deps.Engine,
		ledger:     deps.Ledger,
		prober:     deps.Prober,
		notifier:   deps.Notifier,
		events:     deps.Events,
		clock:      deps.Clock,
		cfg:        cfg,
		startedAt:  deps.Clock.Now(),
		manual:     rate.NewLimiter(rate.Every(cfg.ManualMinInterval), 1),
		baseCtx:    baseCtx,
		cancelBase: cancel,
		state:      StateIdle,
	}
}

// Start replays spooled ledger entries, runs an initial cycle in the
// background, and starts auto-sync when configured. ctx bounds the
// auto-sync loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("sync orchestrator is shut down")
	}
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("sync orchestrator is already running")
	}
	o.running = true
	// Added under mu so Shutdown's Wait cannot start before it.
	o.wg.Add(1)
	o.mu.Unlock()

	logging.Info().
		Str("device", o.device.Info().IP).
		Dur("interval", o.cfg.Interval).
		Bool("auto_sync", o.cfg.AutoSync).
		Msg("Starting sync orchestrator...")

	if n, err := o.ledger.Replay(ctx); err != nil {
		logging.Warn().Err(err).Msg("Ledger spool replay failed at startup")
	} else if n > 0 {
		logging.Info().Int("replayed", n).Msg("Replayed spooled sync statuses at startup")
	}

	go func() {
		defer o.wg.Done()
		res := o.RunCycle(o.baseCtx, models.SyncTriggerStartup)
		if !res.Success && !res.Busy {
			logging.Warn().Str("message", res.Message).Msg("Initial sync failed (will retry)")
		}
	}()

	if o.cfg.AutoSync {
		o.startAuto(ctx)
	}
	return nil
}

// Stop is Shutdown without a deadline.
func (o *Orchestrator) Stop() error {
	return o.Shutdown(context.Background())
}

// Shutdown stops auto-sync and waits for the in-flight cycle. When ctx
// expires first, the cycle's context is canceled and ctx.Err() returned.
// Later cycle requests are refused.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("sync orchestrator is not running")
	}
	o.running = false
	o.closed = true
	o.mu.Unlock()

	logging.Info().Msg("Stopping sync orchestrator...")
	o.stopAuto()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		o.cycleMu.Lock()
		o.cycleMu.Unlock() //nolint:staticcheck // waits for the in-flight cycle
		close(done)
	}()

	select {
	case <-done:
		o.cancelBase()
		logging.Info().Msg("Sync orchestrator stopped")
		return nil
	case <-ctx.Done():
		o.cancelBase()
		logging.Warn().Err(ctx.Err()).Msg("Sync orchestrator shutdown timed out; in-flight cycle canceled")
		return ctx.Err()
	}
}

// startAuto starts the ticker loop. It reports false when the loop is
// already running or the orchestrator is shut down.
func (o *Orchestrator) startAuto(ctx context.Context) bool {
	o.mu.Lock()
	if o.autoStop != nil || o.closed {
		o.mu.Unlock()
		return false
	}
	stop := make(chan struct{})
	o.autoStop = stop
	o.wg.Add(1)
	o.mu.Unlock()

	metrics.SetAutoSync(true)
	go o.autoLoop(ctx, stop)
	return true
}

// stopAuto stops the ticker loop. It reports false when none was running.
func (o *Orchestrator) stopAuto() bool {
	o.mu.Lock()
	stop := o.autoStop
	o.autoStop = nil
	o.mu.Unlock()
	if stop == nil {
		return false
	}
	close(stop)
	metrics.SetAutoSync(false)
	return true
}

func (o *Orchestrator) autoLoop(ctx context.Context, stop chan struct{}) {
	defer o.wg.Done()
	defer o.clearAuto(stop)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	logging.Info().Dur("interval", o.cfg.Interval).Msg("Auto-sync started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Auto-sync stopped: context canceled")
			return
		case <-stop:
			logging.Info().Msg("Auto-sync stopped")
			return
		case <-ticker.C:
			o.RunCycle(o.baseCtx, models.SyncTriggerScheduled)
		}
	}
}

// clearAuto forgets stop if the loop exited on its own.
func (o *Orchestrator) clearAuto(stop chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.autoStop == stop {
		o.autoStop = nil
		metrics.SetAutoSync(false)
	}
}

func (o *Orchestrator) autoSyncRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.autoStop != nil
}

func (o *Orchestrator) isClosed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// CurrentState returns where the orchestrator is in the cycle.
func (o *Orchestrator) CurrentState() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}
