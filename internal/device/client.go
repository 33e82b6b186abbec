// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package device is the attendance terminal client used by the sync
// orchestrator. Every operation opens its own session with a bounded number
// of connect attempts, runs under a deadline, and always disconnects.
package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/zk"
)

// Default retry budget.
const (
	DefaultConnectionTries = 5
	DefaultConnectionDelay = 2 * time.Second
	DefaultTimeout         = 15 * time.Second
)

// closeTimeout bounds the EXIT exchange so a wedged device cannot hold a session open.
const closeTimeout = 2 * time.Second

// Config holds terminal connection settings.
type Config struct {
	IP   string
	Port int

	// Timeout bounds each connect attempt and, separately, the operation that
	// follows a successful connect.
	Timeout time.Duration

	ConnectionTries int
	ConnectionDelay time.Duration
}

// State is a session lifecycle state, logged at debug level.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateExecuting    State = "executing"
	StateDisconnected State = "disconnected"
)

// Client talks to one terminal.
type Client struct {
	cfg         Config
	addr        string
	dialer      Dialer
	breaker     *gobreaker.CircuitBreaker[any]
	breakerName string
	sleep       func(ctx context.Context, d time.Duration) error

	// lastUsers resolves uids in legacy attendance records.
	mu        sync.RWMutex
	lastUsers []zk.User
}

// Option configures a Client.
type Option func(*Client)

// WithSleep replaces the wait between connect attempts. Tests use it to
// observe delays without sleeping.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithBreaker overrides the circuit breaker thresholds.
func WithBreaker(tripAfter uint32, openTimeout time.Duration) Option {
	return func(c *Client) { c.breaker = newBreaker(c.breakerName, tripAfter, openTimeout) }
}

// New creates a client. Zero-valued retry settings take the package defaults.
func New(cfg Config, dialer Dialer, opts ...Option) *Client {
	if cfg.Port == 0 {
		cfg.Port = zk.DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ConnectionTries <= 0 {
		cfg.ConnectionTries = DefaultConnectionTries
	}
	if cfg.ConnectionDelay < 0 {
		cfg.ConnectionDelay = DefaultConnectionDelay
	}
	if dialer == nil {
		dialer = ZKDialer{}
	}

	c := &Client{
		cfg:         cfg,
		addr:        net.JoinHostPort(cfg.IP, strconv.Itoa(cfg.Port)),
		dialer:      dialer,
		breakerName: breakerName,
		sleep:       sleepContext,
	}
	c.breaker = newBreaker(c.breakerName, breakerTripAfter, breakerOpenTimeout)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info returns the static device identity.
func (c *Client) Info() models.DeviceInfo {
	return models.DeviceInfo{IP: c.cfg.IP, Port: c.cfg.Port}
}

// Address returns host:port.
func (c *Client) Address() string {
	return c.addr
}

// ListUsers reads the terminal's user table.
func (c *Client) ListUsers(ctx context.Context) ([]models.DeviceUser, error) {
	var raw []zk.User
	err := c.withSession(ctx, "list_users", func(ctx context.Context, s Session) error {
		var err error
		raw, err = s.Users(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastUsers = raw
	c.mu.Unlock()

	users := make([]models.DeviceUser, 0, len(raw))
	for _, u := range raw {
		users = append(users, toDeviceUser(u))
	}
	return users, nil
}

// ListPunches reads the terminal's attendance log in device order.
func (c *Client) ListPunches(ctx context.Context) ([]models.PunchEvent, error) {
	c.mu.RLock()
	known := c.lastUsers
	c.mu.RUnlock()

	var raw []zk.Attendance
	err := c.withSession(ctx, "list_punches", func(ctx context.Context, s Session) error {
		var err error
		raw, err = s.Attendance(ctx, known)
		return err
	})
	if err != nil {
		return nil, err
	}

	punches := make([]models.PunchEvent, 0, len(raw))
	for _, a := range raw {
		punches = append(punches, models.PunchEvent{
			DeviceUserID: a.UserID,
			Timestamp:    a.TimestampString(),
			TypeCode:     int(a.Status),
			State:        int(a.Punch),
			RawData:      a.RawHex(),
		})
	}
	return punches, nil
}

// TestConnection connects and reads the user table, returning its size.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// withSession runs fn inside one breaker-guarded session.
func (c *Client) withSession(ctx context.Context, op string, fn func(context.Context, Session) error) error {
	start := time.Now()
	err := c.execute(func() error {
		return c.runSession(ctx, op, fn)
	})
	metrics.RecordDeviceOperation(op, time.Since(start), err)
	return err
}

func (c *Client) runSession(ctx context.Context, op string, fn func(context.Context, Session) error) (err error) {
	log := logging.Ctx(ctx).With().Str("component", "device").Str("op", op).Str("device", c.addr).Logger()
	log.Debug().Str("state", string(StateIdle)).Msg("Device operation requested")

	sess, attempts, err := c.connect(ctx)
	if err != nil {
		return err
	}
	log.Debug().Str("state", string(StateConnected)).Int("attempts", attempts).Msg("Device session open")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Device session panicked")
			err = &ProtocolError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}

		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil {
			log.Debug().Err(cerr).Msg("Device disconnect reported an error")
		}

		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		log.Debug().Str("state", string(StateDisconnected)).Str("outcome", outcome).Msg("Device session closed")
	}()

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	log.Debug().Str("state", string(StateExecuting)).Msg("Device operation executing")
	if ferr := fn(opCtx, sess); ferr != nil {
		if isWireFault(ferr) {
			return &ProtocolError{Op: op, Err: ferr}
		}
		if errors.Is(ferr, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Warn().Dur("timeout", c.cfg.Timeout).Msg("Device operation timed out")
		}
		return &ConnectionError{Address: c.addr, Attempts: attempts, Err: ferr}
	}
	return nil
}

// connect makes up to ConnectionTries attempts separated by ConnectionDelay.
func (c *Client) connect(ctx context.Context) (Session, int, error) {
	tries := c.cfg.ConnectionTries
	var lastErr error

	for attempt := 1; attempt <= tries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, &ConnectionError{Address: c.addr, Attempts: attempt - 1, Err: err}
		}

		logging.Ctx(ctx).Debug().Str("state", string(StateConnecting)).Str("device", c.addr).
			Int("attempt", attempt).Int("max_attempts", tries).Msg("Connecting to device")

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		sess, err := c.dialer.Dial(attemptCtx, c.addr)
		cancel()
		metrics.RecordDeviceConnect(err)
		if err == nil {
			return sess, attempt, nil
		}
		lastErr = err

		ev := logging.Ctx(ctx).Warn().Err(err).Str("device", c.addr).
			Int("attempt", attempt).Int("max_attempts", tries)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			ev = ev.Dur("timeout", c.cfg.Timeout).Bool("timed_out", true)
		}
		ev.Msg("Device connect attempt failed")

		if attempt < tries {
			if err := c.sleep(ctx, c.cfg.ConnectionDelay); err != nil {
				return nil, attempt, &ConnectionError{Address: c.addr, Attempts: attempt, Err: err}
			}
		}
	}

	return nil, tries, &ConnectionError{Address: c.addr, Attempts: tries, Err: lastErr}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// toDeviceUser maps a raw table row. Numeric user id strings become the
// device user id; otherwise the internal uid is used.
func toDeviceUser(u zk.User) models.DeviceUser {
	id, err := strconv.Atoi(u.UserID)
	if err != nil || id <= 0 {
		id = int(u.UID)
	}
	du := models.DeviceUser{
		DeviceUserID: id,
		Name:         u.Name,
		Role:         int(u.Privilege),
	}
	if u.Card != 0 {
		card := strconv.FormatUint(uint64(u.Card), 10)
		du.CardNumber = &card
	}
	return du
}
