// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/attendsync/internal/metrics"
)

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// dial connects a websocket client to an httptest server running Handler.
func dial(t *testing.T, hub *Hub, origins []string, header http.Header) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(Handler(hub, origins))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, srv
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return msg
}

func TestBroadcastReachesClients(t *testing.T) {
	hub := startHub(t)
	a, _ := dial(t, hub, nil, nil)
	b, _ := dial(t, hub, nil, nil)
	waitClients(t, hub, 2)

	sentBefore := testutil.ToFloat64(metrics.WSMessagesSent.WithLabelValues("sync_completed"))
	hub.BroadcastJSON("sync_completed", map[string]int{"added": 3})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg["type"] != "sync_completed" {
			t.Errorf("type = %v", msg["type"])
		}
		if data, ok := msg["data"].(map[string]interface{}); !ok || data["added"] != float64(3) {
			t.Errorf("data = %v", msg["data"])
		}
	}
	if d := testutil.ToFloat64(metrics.WSMessagesSent.WithLabelValues("sync_completed")) - sentBefore; d != 2 {
		t.Errorf("messages sent delta = %v, want 2", d)
	}
	if got := testutil.ToFloat64(metrics.WSConnections); got != 2 {
		t.Errorf("connections gauge = %v, want 2", got)
	}
}

func TestApplicationPing(t *testing.T) {
	hub := startHub(t)
	conn, _ := dial(t, hub, nil, nil)
	waitClients(t, hub, 1)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg["type"] != MessageTypePong {
		t.Errorf("reply = %v, want pong", msg)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	conn, _ := dial(t, hub, nil, nil)
	waitClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitClients(t, hub, 0)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
	fast := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 4)}
	hub.clients[slow] = true
	hub.clients[fast] = true

	hub.broadcastToClients(Message{Type: "sync_completed"})
	hub.broadcastToClients(Message{Type: "sync_failed"})

	if hub.ClientCount() != 1 || !hub.clients[fast] {
		t.Fatalf("clients after overflow = %d", hub.ClientCount())
	}
	if len(fast.send) != 2 {
		t.Errorf("fast client queued %d messages, want 2", len(fast.send))
	}
	if _, open := <-slow.send; !open {
		t.Error("slow client should still hold its first message")
	}
	if _, open := <-slow.send; open {
		t.Error("slow client send channel should be closed")
	}
}

func TestBroadcastJSONNeverBlocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastQueueSize+10; i++ {
			hub.BroadcastJSON("sync_completed", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastJSON blocked with no hub loop running")
	}
	if len(hub.broadcast) != broadcastQueueSize {
		t.Errorf("queued = %d, want %d", len(hub.broadcast), broadcastQueueSize)
	}
}

func TestRunWithContextClosesClients(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
		reason  ShutdownReason
	}{
		{
			name:    "canceled",
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			wantErr: context.Canceled,
			reason:  ShutdownReasonContextCanceled,
		},
		{
			name: "deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 200*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
			reason:  ShutdownReasonContextDeadline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub()
			ctx, cancel := tt.ctx()
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- hub.RunWithContext(ctx) }()

			c := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
			hub.Register <- c
			if tt.wantErr == context.Canceled {
				cancel()
			}

			select {
			case err := <-done:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("RunWithContext() = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("hub did not stop")
			}
			if hub.ClientCount() != 0 {
				t.Errorf("clients after shutdown = %d", hub.ClientCount())
			}
			if _, open := <-c.send; open {
				t.Error("client send channel should be closed")
			}
			if got := shutdownReason(ctx); got != tt.reason {
				t.Errorf("shutdownReason() = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", nil, "", "hrms.local", true},
		{"same host", nil, "http://hrms.local:8080", "hrms.local:8080", true},
		{"foreign host", nil, "http://evil.example", "hrms.local:8080", false},
		{"listed origin", []string{"https://portal.example/"}, "https://portal.example", "api.example", true},
		{"wildcard", []string{"*"}, "http://anything.example", "hrms.local", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("originChecker(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(Handler(hub, nil))
	defer srv.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		t.Fatal("Dial() from foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %v, want 403", resp)
	}
}

func TestMarshalMessage(t *testing.T) {
	b, err := MarshalMessage(Message{Type: "sync_failed", Data: map[string]string{"stage": "fetch_users"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"sync_failed","data":{"stage":"fetch_users"}}` {
		t.Errorf("MarshalMessage() = %s", b)
	}
}
