// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package events

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/attendsync/internal/metrics"
)

func startServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(ServerConfig{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func subscribe(t *testing.T, url, subject string) *natsgo.Subscription {
	t.Helper()
	nc, err := natsgo.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	return sub
}

type cycleEvent struct {
	CycleID string `json:"cycleId"`
	Success bool   `json:"success"`
}

func TestPublishDeliversToSubject(t *testing.T) {
	srv := startServer(t)
	sub := subscribe(t, srv.ClientURL(), "attendsync.sync.>")

	pub, err := NewPublisher(DefaultConfig(srv.ClientURL()))
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer pub.Close()

	before := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("sync_completed", "success"))
	pub.BroadcastJSON("sync_completed", cycleEvent{CycleID: "c-1", Success: true})

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg() error = %v", err)
	}
	if msg.Subject != "attendsync.sync.sync_completed" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if got := msg.Header.Get("type"); got != "sync_completed" {
		t.Errorf("type header = %q", got)
	}
	var ev cycleEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("decode payload %q: %v", msg.Data, err)
	}
	if ev.CycleID != "c-1" || !ev.Success {
		t.Errorf("payload = %+v", ev)
	}
	if d := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("sync_completed", "success")) - before; d != 1 {
		t.Errorf("published delta = %v, want 1", d)
	}
}

func TestPublishAfterClose(t *testing.T) {
	srv := startServer(t)
	pub, err := NewPublisher(DefaultConfig(srv.ClientURL()))
	if err != nil {
		t.Fatal(err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := pub.Publish("sync_failed", cycleEvent{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after close = %v, want ErrClosed", err)
	}
}

func TestPublishEncodeError(t *testing.T) {
	srv := startServer(t)
	pub, err := NewPublisher(DefaultConfig(srv.ClientURL()))
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()
	if err := pub.Publish("sync_failed", make(chan int)); err == nil {
		t.Error("Publish() should fail for an unencodable payload")
	}
}

func TestNewPublisherRequiresURL(t *testing.T) {
	if _, err := NewPublisher(Config{}); err == nil {
		t.Error("NewPublisher() without URL should fail")
	}
}

func TestSubjectPrefix(t *testing.T) {
	cfg := DefaultConfig("nats://127.0.0.1:4222")
	cfg.SubjectPrefix = "hrms.attendance"
	p := &Publisher{cfg: cfg}
	if got := p.Subject("sync_failed"); got != "hrms.attendance.sync_failed" {
		t.Errorf("Subject() = %q", got)
	}
}

type recordingSink struct{ types []string }

func (r *recordingSink) BroadcastJSON(eventType string, _ interface{}) {
	r.types = append(r.types, eventType)
}

func TestFanout(t *testing.T) {
	if Fanout() != nil || Fanout(nil, nil) != nil {
		t.Error("Fanout of no sinks should be nil")
	}

	a := &recordingSink{}
	if got := Fanout(nil, a); got != Sink(a) {
		t.Error("Fanout of one sink should return it unwrapped")
	}

	b := &recordingSink{}
	f := Fanout(a, b)
	f.BroadcastJSON("sync_completed", nil)
	f.BroadcastJSON("sync_failed", nil)
	for _, s := range []*recordingSink{a, b} {
		if len(s.types) != 2 || s.types[0] != "sync_completed" || s.types[1] != "sync_failed" {
			t.Errorf("sink received %v", s.types)
		}
	}
}

func TestZerologAdapterWith(t *testing.T) {
	l := NewLogger().With(map[string]interface{}{"subject": "attendsync.sync.sync_failed"})
	// Smoke test: the adapter must accept nil fields and errors.
	l.Error("publish failed", errors.New("timeout"), nil)
	l.Info("connected", nil)
	l.Debug("debug", nil)
	l.Trace("trace", nil)
}
