// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/sync"
)

type fakeController struct {
	status    sync.SyncStatus
	cycle     sync.CycleResult
	conn      sync.ConnectionResult
	start     sync.ControlResult
	stop      sync.ControlResult
	syncCalls int
}

func (f *fakeController) GetSyncStatus(context.Context) sync.SyncStatus { return f.status }

func (f *fakeController) SyncNow(context.Context) sync.CycleResult {
	f.syncCalls++
	return f.cycle
}

func (f *fakeController) TestConnection(context.Context) sync.ConnectionResult { return f.conn }
func (f *fakeController) StartAutoSync() sync.ControlResult                    { return f.start }
func (f *fakeController) StopAutoSync() sync.ControlResult                     { return f.stop }

type fakeHistory struct {
	latest     *models.SyncStatusRecord
	summary    models.DailySummary
	summaryErr error
	askedDay   time.Time
}

func (f *fakeHistory) Latest(context.Context) *models.SyncStatusRecord { return f.latest }

func (f *fakeHistory) DailySummary(_ context.Context, day time.Time) (models.DailySummary, error) {
	f.askedDay = day
	return f.summary, f.summaryErr
}

type fakeStore struct {
	pingErr    error
	records    []models.AttendanceRecord
	recordsErr error
	users      []models.DeviceUser
	from, to   time.Time
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListAttendanceInRange(_ context.Context, from, to time.Time) ([]models.AttendanceRecord, error) {
	f.from, f.to = from, to
	return f.records, f.recordsErr
}

func (f *fakeStore) ListDeviceUsers(context.Context) ([]models.DeviceUser, error) { return f.users, nil }

type testServer struct {
	ctl     *fakeController
	history *fakeHistory
	store   *fakeStore
	handler http.Handler
}

var utc = time.UTC

func newTestServer(cfg RouterConfig) *testServer {
	ts := &testServer{ctl: &fakeController{}, history: &fakeHistory{}, store: &fakeStore{}}
	h := NewHandler(ts.ctl, ts.history, ts.store, utc)
	h.now = func() time.Time { return time.Date(2024, time.January, 1, 10, 0, 0, 0, utc) }
	ts.handler = NewRouter(h, cfg, nil).Setup()
	return ts
}

// envelope decodes the response with the given data shape.
type envelope[T any] struct {
	Status string           `json:"status"`
	Data   T                `json:"data"`
	Error  *models.APIError `json:"error"`
}

func do[T any](t *testing.T, h http.Handler, method, path string) (int, envelope[T]) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s: Content-Type = %q", method, path, ct)
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	at := time.Date(2024, time.January, 1, 9, 59, 0, 0, utc)
	ts.history.latest = &models.SyncStatusRecord{Timestamp: at, Success: true}

	code, env := do[HealthStatus](t, ts.handler, http.MethodGet, "/api/v1/health")
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
	if env.Data.Status != "healthy" || !env.Data.DatabaseConnected {
		t.Errorf("health = %+v", env.Data)
	}
	if env.Data.LastSync == nil || !env.Data.LastSync.Equal(at) || env.Data.LastSyncSuccess == nil || !*env.Data.LastSyncSuccess {
		t.Errorf("last sync = %v / %v", env.Data.LastSync, env.Data.LastSyncSuccess)
	}

	ts.store.pingErr = errors.New("database closed")
	_, env = do[HealthStatus](t, ts.handler, http.MethodGet, "/api/v1/health")
	if env.Data.Status != "degraded" || env.Data.DatabaseConnected {
		t.Errorf("health with db down = %+v", env.Data)
	}
}

func TestHealthLiveAndReady(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())

	if code, _ := do[map[string]interface{}](t, ts.handler, http.MethodGet, "/api/v1/health/live"); code != http.StatusOK {
		t.Errorf("live = %d", code)
	}
	if code, _ := do[map[string]interface{}](t, ts.handler, http.MethodGet, "/api/v1/health/ready"); code != http.StatusOK {
		t.Errorf("ready = %d", code)
	}

	ts.store.pingErr = errors.New("not yet")
	code, env := do[map[string]interface{}](t, ts.handler, http.MethodGet, "/api/v1/health/ready")
	if code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("ready with db down = %d, %+v", code, env.Error)
	}
}

func TestSyncStatusEndpoint(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	ts.ctl.status = sync.SyncStatus{TotalRecords: 12, TodayRecords: 3, SuccessRate: 75, AutoSync: true, State: sync.StateIdle}

	code, env := do[map[string]interface{}](t, ts.handler, http.MethodGet, "/api/v1/sync/status")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if env.Data["totalRecords"] != float64(12) || env.Data["todayRecords"] != float64(3) ||
		env.Data["successRate"] != float64(75) || env.Data["autoSync"] != true {
		t.Errorf("status data = %v", env.Data)
	}
	if _, ok := env.Data["lastSync"]; !ok {
		t.Error("lastSync should be present even when null")
	}
}

func TestSyncNowOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     sync.CycleResult
		wantCode   int
		wantStatus string
	}{
		{"success", sync.CycleResult{Success: true, Message: "Sync completed", Added: 1}, http.StatusOK, "success"},
		{"device failure", sync.CycleResult{Message: "Sync failed during fetch_punches: timeout"}, http.StatusOK, "error"},
		{"busy", sync.CycleResult{Message: "A sync cycle is already in progress", Busy: true}, http.StatusConflict, "error"},
		{"throttled", sync.CycleResult{Message: "Manual sync is limited", Throttled: true}, http.StatusTooManyRequests, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(DefaultRouterConfig())
			ts.ctl.cycle = tt.result

			code, env := do[sync.CycleResult](t, ts.handler, http.MethodPost, "/api/v1/sync/now")
			if code != tt.wantCode || env.Status != tt.wantStatus {
				t.Errorf("code = %d, status = %q; want %d, %q", code, env.Status, tt.wantCode, tt.wantStatus)
			}
			if env.Data.Message != tt.result.Message || env.Data.Added != tt.result.Added {
				t.Errorf("data = %+v", env.Data)
			}
		})
	}
}

func TestSyncNowRequiresPost(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	code, env := do[interface{}](t, ts.handler, http.MethodGet, "/api/v1/sync/now")
	if code != http.StatusMethodNotAllowed || env.Error == nil {
		t.Errorf("GET /sync/now = %d, %+v", code, env)
	}
	if ts.ctl.syncCalls != 0 {
		t.Error("SyncNow should not run on GET")
	}
}

func TestControlEndpoints(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	users := 3
	ts.ctl.conn = sync.ConnectionResult{Success: true, Message: "Connected", UserCount: &users}
	ts.ctl.start = sync.ControlResult{Success: true, Message: "Auto-sync started (every 5s)"}
	ts.ctl.stop = sync.ControlResult{Success: false, Message: "Auto-sync is not running"}

	_, conn := do[sync.ConnectionResult](t, ts.handler, http.MethodPost, "/api/v1/sync/test-connection")
	if conn.Status != "success" || conn.Data.UserCount == nil || *conn.Data.UserCount != 3 {
		t.Errorf("test-connection = %+v", conn)
	}
	_, start := do[sync.ControlResult](t, ts.handler, http.MethodPost, "/api/v1/sync/auto/start")
	if start.Status != "success" || !strings.Contains(start.Data.Message, "started") {
		t.Errorf("auto/start = %+v", start)
	}
	code, stop := do[sync.ControlResult](t, ts.handler, http.MethodPost, "/api/v1/sync/auto/stop")
	if code != http.StatusOK || stop.Status != "error" || stop.Data.Message != "Auto-sync is not running" {
		t.Errorf("auto/stop = %d, %+v", code, stop)
	}
}

func TestSyncLatest(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())

	code, env := do[interface{}](t, ts.handler, http.MethodGet, "/api/v1/sync/latest")
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("empty ledger = %d, %+v", code, env)
	}

	ts.history.latest = &models.SyncStatusRecord{ID: "abc", Success: true, RecordsAdded: 2}
	code, rec := do[models.SyncStatusRecord](t, ts.handler, http.MethodGet, "/api/v1/sync/latest")
	if code != http.StatusOK || rec.Data.ID != "abc" || rec.Data.RecordsAdded != 2 {
		t.Errorf("latest = %d, %+v", code, rec.Data)
	}
}

func TestSyncHistorySummary(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	ts.history.summary = models.DailySummary{TotalSyncs: 4, SuccessfulSyncs: 3, FailedSyncs: 1}

	code, env := do[models.DailySummary](t, ts.handler, http.MethodGet, "/api/v1/sync/history/summary?date=2024-01-05")
	if code != http.StatusOK || env.Data.TotalSyncs != 4 {
		t.Fatalf("summary = %d, %+v", code, env)
	}
	if want := time.Date(2024, time.January, 5, 0, 0, 0, 0, utc); !ts.history.askedDay.Equal(want) {
		t.Errorf("asked day = %v, want %v", ts.history.askedDay, want)
	}

	do[models.DailySummary](t, ts.handler, http.MethodGet, "/api/v1/sync/history/summary")
	if ts.history.askedDay.Day() != 1 {
		t.Errorf("default day = %v, want today (Jan 1)", ts.history.askedDay)
	}

	code, bad := do[interface{}](t, ts.handler, http.MethodGet, "/api/v1/sync/history/summary?date=05-01-2024")
	if code != http.StatusBadRequest || bad.Error == nil || bad.Error.Code != ErrCodeValidation {
		t.Errorf("bad date = %d, %+v", code, bad.Error)
	}

	ts.history.summaryErr = errors.New("disk I/O error")
	code, failed := do[interface{}](t, ts.handler, http.MethodGet, "/api/v1/sync/history/summary?date=2024-01-05")
	if code != http.StatusInternalServerError || failed.Error.Code != ErrCodeDatabase {
		t.Errorf("store failure = %d, %+v", code, failed.Error)
	}
	if strings.Contains(failed.Error.Message, "disk") {
		t.Error("internal error text should not reach the client")
	}
}

func TestAttendanceByDay(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	in := time.Date(2024, time.January, 1, 9, 0, 0, 0, utc)
	ts.store.records = []models.AttendanceRecord{{DeviceUserID: 1, EmployeeName: "Alice", EmployeeNumber: "1", TimeIn: in}}

	code, env := do[[]models.AttendanceRecord](t, ts.handler, http.MethodGet, "/api/v1/attendance?date=2024-01-01")
	if code != http.StatusOK || len(env.Data) != 1 || env.Data[0].EmployeeName != "Alice" {
		t.Fatalf("attendance = %d, %+v", code, env.Data)
	}
	if !ts.store.from.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, utc)) || ts.store.to.Sub(ts.store.from) != 24*time.Hour {
		t.Errorf("range = [%v, %v)", ts.store.from, ts.store.to)
	}

	ts.store.records = nil
	_, empty := do[[]models.AttendanceRecord](t, ts.handler, http.MethodGet, "/api/v1/attendance?date=2024-01-02")
	if empty.Data == nil {
		t.Error("empty day should encode as [] not null")
	}
}

func TestDeviceUsers(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	ts.store.users = []models.DeviceUser{{DeviceUserID: 1, Name: "Alice"}}

	code, env := do[[]models.DeviceUser](t, ts.handler, http.MethodGet, "/api/v1/device/users")
	if code != http.StatusOK || len(env.Data) != 1 || env.Data[0].Name != "Alice" {
		t.Errorf("device users = %d, %+v", code, env.Data)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(DefaultRouterConfig())
	code, env := do[interface{}](t, ts.handler, http.MethodGet, "/api/v1/payroll")
	if code != http.StatusNotFound || env.Status != "error" {
		t.Errorf("unknown route = %d, %+v", code, env)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\r\x7f"); got != `a\x0ab\x0d\x7f` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
