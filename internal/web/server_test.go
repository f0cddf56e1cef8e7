package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexwitherspoon/clock/internal/logger"
	"github.com/alexwitherspoon/clock/internal/timehealth"
)

type fixedStatus timehealth.Status

func (f fixedStatus) GetStatus() timehealth.Status {
	return timehealth.Status(f)
}

func (f fixedStatus) IsHealthy() bool {
	return f.Healthy
}

var testNow = time.Date(2024, 3, 5, 21, 7, 9, 0, time.UTC)

func newTestServer(st timehealth.Status) *Server {
	return NewServer(ServerConfig{
		Version: "test",
		Commit:  "abc123",
		Health:  fixedStatus(st),
		Now:     func() time.Time { return testNow },
	})
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Code != http.StatusMethodNotAllowed {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: invalid JSON %q: %v", path, w.Body.String(), err)
		}
	}
	return w, body
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		wantCode   int
		wantStatus string
	}{
		{"healthy", true, http.StatusOK, "ok"},
		{"unhealthy", false, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(t, newTestServer(timehealth.Status{Healthy: tt.healthy}), "/healthz")

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["version"] != "test" || body["commit"] != "abc123" {
				t.Errorf("version = %v commit = %v, want test abc123", body["version"], body["commit"])
			}
			if body["time"] != "2024-03-05T21:07:09Z" {
				t.Errorf("time = %v", body["time"])
			}
		})
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(timehealth.Status{
		Healthy:         false,
		Offset:          1500 * time.Millisecond,
		LastCheck:       testNow,
		LastSuccess:     testNow.Add(-time.Minute),
		LastError:       errors.New("ntp: no usable samples"),
		Responding:      2,
		Servers:         5,
		Failures:        3,
		ReferenceServer: "pool.ntp.org",
		ReferenceOffset: 1480 * time.Millisecond,
		Delays:          timehealth.DelaySummary{Count: 10, P50: 12 * time.Millisecond, P99: 40 * time.Millisecond},
	})

	w, body := get(t, s, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	want := map[string]interface{}{
		"healthy":             false,
		"offset_ms":           1500.0,
		"last_check":          "2024-03-05T21:07:09Z",
		"last_success":        "2024-03-05T21:06:09Z",
		"last_error":          "ntp: no usable samples",
		"responding":          2.0,
		"servers":             5.0,
		"failures":            3.0,
		"reference_server":    "pool.ntp.org",
		"reference_offset_ms": 1480.0,
		"delay_count":         10.0,
		"delay_p50_ms":        12.0,
		"delay_p99_ms":        40.0,
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %v", k, body[k], v)
		}
	}
}

func TestStatus_BeforeFirstCheck(t *testing.T) {
	_, body := get(t, newTestServer(timehealth.Status{}), "/api/status")

	for _, k := range []string{"last_check", "last_success", "last_error", "reference_server", "reference_offset_ms"} {
		if _, ok := body[k]; ok {
			t.Errorf("%s should be omitted before the first check", k)
		}
	}
}

func TestTime(t *testing.T) {
	s := newTestServer(timehealth.Status{
		Healthy:     true,
		Offset:      -250 * time.Millisecond,
		LastCheck:   testNow,
		LastSuccess: testNow,
	})

	w, body := get(t, s, "/api/time")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if body["utc"] != "2024-03-05T21:07:09Z" {
		t.Errorf("utc = %v", body["utc"])
	}
	if body["unix"] != "1709672829" {
		t.Errorf("unix = %v, want 1709672829", body["unix"])
	}
	if body["corrected"] != "2024-03-05T21:07:08.75Z" {
		t.Errorf("corrected = %v, want 2024-03-05T21:07:08.75Z", body["corrected"])
	}
	if body["offset"] != "-250ms" {
		t.Errorf("offset = %v, want -250ms", body["offset"])
	}
	if _, ok := body["utc_offset"]; !ok {
		t.Error("utc_offset missing")
	}
}

func TestTime_NoCheckYet(t *testing.T) {
	_, body := get(t, newTestServer(timehealth.Status{}), "/api/time")

	if _, ok := body["corrected"]; ok {
		t.Error("corrected should be omitted before the first check")
	}
}

func TestTime_OnlyFailedChecks(t *testing.T) {
	_, body := get(t, newTestServer(timehealth.Status{
		LastCheck: testNow,
		LastError: errors.New("ntp: no usable samples"),
		Failures:  1,
	}), "/api/time")

	for _, k := range []string{"corrected", "offset"} {
		if _, ok := body[k]; ok {
			t.Errorf("%s = %v, should be omitted until a check succeeds", k, body[k])
		}
	}
}

type fixedLogs []logger.LogEntry

func (f fixedLogs) Recent(n int) []logger.LogEntry {
	if n < len(f) {
		return f[len(f)-n:]
	}
	return f
}

func newLogServer(logs LogSource) *Server {
	return NewServer(ServerConfig{Health: fixedStatus{}, Logs: logs})
}

func TestLogs(t *testing.T) {
	logs := fixedLogs{
		{Timestamp: testNow, Level: "WARN", Message: "Server did not respond",
			Attrs: map[string]any{"server": "a.example", "error": errors.New("timeout")}},
		{Timestamp: testNow.Add(time.Second), Level: "INFO", Message: "Consensus offset computed",
			Attrs: map[string]any{"offset_ms": 1.5, "interval": 5 * time.Minute}},
	}

	w, body := get(t, newLogServer(logs), "/api/logs")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	entries, ok := body["entries"].([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("entries = %v, want 2", body["entries"])
	}

	first := entries[0].(map[string]interface{})
	if first["message"] != "Server did not respond" || first["level"] != "WARN" || first["time"] != "2024-03-05T21:07:09Z" {
		t.Errorf("first entry = %v", first)
	}
	attrs := first["attrs"].(map[string]interface{})
	if attrs["error"] != "timeout" || attrs["server"] != "a.example" {
		t.Errorf("first attrs = %v, want error rendered as text", attrs)
	}
	second := entries[1].(map[string]interface{})["attrs"].(map[string]interface{})
	if second["interval"] != "5m0s" || second["offset_ms"] != 1.5 {
		t.Errorf("second attrs = %v", second)
	}
}

func TestLogs_Limit(t *testing.T) {
	logs := fixedLogs{{Message: "a"}, {Message: "b"}, {Message: "c"}}

	_, body := get(t, newLogServer(logs), "/api/logs?n=1")
	entries := body["entries"].([]interface{})
	if len(entries) != 1 || entries[0].(map[string]interface{})["message"] != "c" {
		t.Errorf("entries = %v, want only the newest", entries)
	}

	for _, n := range []string{"0", "-3", "many"} {
		req := httptest.NewRequest("GET", "/api/logs?n="+n, nil)
		w := httptest.NewRecorder()
		newLogServer(logs).Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("n=%s: code = %d, want 400", n, w.Code)
		}
	}
}

func TestLogs_Text(t *testing.T) {
	logs := fixedLogs{{Timestamp: testNow, Level: "WARN", Message: "slow", Attrs: map[string]any{"server": "a"}}}

	req := httptest.NewRequest("GET", "/api/logs?format=text", nil)
	w := httptest.NewRecorder()
	newLogServer(logs).Handler().ServeHTTP(w, req)

	want := logger.FormatEntry(logs[0]) + "\n"
	if w.Body.String() != want {
		t.Errorf("body = %q, want %q", w.Body.String(), want)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestLogs_Disabled(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/logs", nil)
	w := httptest.NewRecorder()
	newTestServer(timehealth.Status{}).Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404 without a log source", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(timehealth.Status{})
	for _, path := range []string{"/api/status", "/api/time", "/api/logs"} {
		req := httptest.NewRequest("POST", path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s = %d, want 405", path, w.Code)
		}
	}
}

func TestServeAndStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := newTestServer(timehealth.Status{Healthy: true})
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-errc; err != nil {
		t.Errorf("Serve() error = %v, want nil after Stop", err)
	}
}
