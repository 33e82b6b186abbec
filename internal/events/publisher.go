// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package events

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
)

const breakerName = "event-publisher"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher is closed")

// Config holds publisher settings.
type Config struct {
	URL string

	// SubjectPrefix is prepended to the event type to form the subject.
	SubjectPrefix string

	MaxReconnects   int // -1 reconnects forever
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// BreakerTripAfter consecutive publish failures open the circuit for
	// BreakerOpenTimeout.
	BreakerTripAfter   uint32
	BreakerOpenTimeout time.Duration
}

// DefaultConfig returns production defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		SubjectPrefix:      "attendsync.sync",
		MaxReconnects:      -1,
		ReconnectWait:      2 * time.Second,
		ReconnectBuffer:    8 * 1024 * 1024,
		BreakerTripAfter:   5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Publisher sends cycle events to NATS.
type Publisher struct {
	cfg       Config
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to cfg.URL. The connection is retried in the
// background, so an unreachable broker does not fail startup.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	def := DefaultConfig(cfg.URL)
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.ReconnectBuffer <= 0 {
		cfg.ReconnectBuffer = def.ReconnectBuffer
	}
	if cfg.BreakerTripAfter == 0 {
		cfg.BreakerTripAfter = def.BreakerTripAfter
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = def.BreakerOpenTimeout
	}

	logger := NewLogger()
	natsOpts := []natsgo.Option{
		natsgo.Name("attendsync"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		cfg:       cfg,
		publisher: pub,
		breaker:   newBreaker(cfg.BreakerTripAfter, cfg.BreakerOpenTimeout),
		now:       time.Now,
	}, nil
}

func newBreaker(tripAfter uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			switch to {
			case gobreaker.StateClosed:
				metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
			case gobreaker.StateHalfOpen:
				metrics.CircuitBreakerState.WithLabelValues(name).Set(1)
			case gobreaker.StateOpen:
				metrics.CircuitBreakerState.WithLabelValues(name).Set(2)
			}
		},
	})
}

// Subject returns the subject events of eventType are published on.
func (p *Publisher) Subject(eventType string) string {
	return p.cfg.SubjectPrefix + "." + eventType
}

// Publish sends one event. data is encoded as JSON.
func (p *Publisher) Publish(eventType string, data interface{}) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", eventType)
	msg.Metadata.Set("source", "attendsync")
	msg.Metadata.Set("published_at", p.now().UTC().Format(time.RFC3339Nano))

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.Subject(eventType), msg)
	})
	return err
}

// BroadcastJSON publishes an event without returning the error, so a
// Publisher can stand in wherever cycle events are broadcast.
func (p *Publisher) BroadcastJSON(eventType string, data interface{}) {
	err := p.Publish(eventType, data)
	metrics.RecordEventPublish(eventType, err)
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		logging.Debug().Str("event_type", eventType).Msg("Event dropped; publisher circuit open")
	default:
		logging.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish sync event")
	}
}

// Close flushes and closes the connection. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
