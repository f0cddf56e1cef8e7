// Package web serves the time health monitor's state over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alexwitherspoon/clock/internal/clock"
	"github.com/alexwitherspoon/clock/internal/logger"
	"github.com/alexwitherspoon/clock/internal/ntp"
	"github.com/alexwitherspoon/clock/internal/timehealth"
)

// StatusSource reports the latest health status. *timehealth.TimeHealth
// implements it.
type StatusSource interface {
	IsHealthy() bool
	GetStatus() timehealth.Status
}

// LogSource returns up to n recent log entries, oldest first.
// *logger.Logger implements it.
type LogSource interface {
	Recent(n int) []logger.LogEntry
}

// Limits for GET /api/logs?n=
const (
	defaultLogEntries = 50
	maxLogEntries     = 1000
)

// Server provides the status HTTP server
type Server struct {
	version string
	commit  string
	health  StatusSource
	logs    LogSource
	now     func() time.Time
	mux     *http.ServeMux
	server  *http.Server
}

// ServerConfig configures the web server
type ServerConfig struct {
	Version string
	Commit  string
	Health  StatusSource
	Logs    LogSource        // Optional; /api/logs returns 404 without it
	Now     func() time.Time // Defaults to clock.Now
}

// NewServer creates a new web server
func NewServer(cfg ServerConfig) *Server {
	if cfg.Now == nil {
		cfg.Now = clock.Now
	}

	s := &Server{
		version: cfg.Version,
		commit:  cfg.Commit,
		health:  cfg.Health,
		logs:    cfg.Logs,
		now:     cfg.Now,
		mux:     http.NewServeMux(),
	}

	s.setupRoutes()
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/time", s.handleTime)
	s.mux.HandleFunc("/api/logs", s.handleLogs)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve serves on ln until Stop. http.ErrServerClosed is not reported as
// an error.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the web server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// API Handlers

// statusResponse is the JSON form of timehealth.Status
type statusResponse struct {
	Healthy           bool     `json:"healthy"`
	OffsetMs          float64  `json:"offset_ms"`
	LastCheck         string   `json:"last_check,omitempty"`
	LastSuccess       string   `json:"last_success,omitempty"`
	LastError         string   `json:"last_error,omitempty"`
	Responding        int      `json:"responding"`
	Servers           int      `json:"servers"`
	Failures          int      `json:"failures"`
	ReferenceServer   string   `json:"reference_server,omitempty"`
	ReferenceOffsetMs *float64 `json:"reference_offset_ms,omitempty"`
	DelayCount        int64    `json:"delay_count"`
	DelayP50Ms        float64  `json:"delay_p50_ms"`
	DelayP99Ms        float64  `json:"delay_p99_ms"`
}

func newStatusResponse(st timehealth.Status) statusResponse {
	resp := statusResponse{
		Healthy:    st.Healthy,
		OffsetMs:   ntp.Millis(st.Offset),
		Responding: st.Responding,
		Servers:    st.Servers,
		Failures:   st.Failures,
		DelayCount: st.Delays.Count,
		DelayP50Ms: ntp.Millis(st.Delays.P50),
		DelayP99Ms: ntp.Millis(st.Delays.P99),
	}
	if !st.LastCheck.IsZero() {
		resp.LastCheck = st.LastCheck.UTC().Format(time.RFC3339)
	}
	if !st.LastSuccess.IsZero() {
		resp.LastSuccess = st.LastSuccess.UTC().Format(time.RFC3339)
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	if st.ReferenceServer != "" {
		ms := ntp.Millis(st.ReferenceOffset)
		resp.ReferenceServer = st.ReferenceServer
		resp.ReferenceOffsetMs = &ms
	}
	return resp
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.health.IsHealthy() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": s.version,
		"commit":  s.commit,
		"time":    s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, newStatusResponse(s.health.GetStatus()))
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := s.now()
	st := s.health.GetStatus()

	localTime := now.Local()
	_, offset := localTime.Zone()
	hours := offset / 3600
	mins := (offset % 3600) / 60
	if mins < 0 {
		mins = -mins
	}

	response := map[string]interface{}{
		"utc":        clock.Format(now.UTC(), clock.RFC3339),
		"local":      clock.Format(localTime, clock.RFC3339),
		"utc_offset": fmt.Sprintf("%+03d:%02d", hours, mins),
		"unix":       clock.Format(now, clock.Timestamp),
	}
	if !st.LastSuccess.IsZero() {
		// Local time corrected by the last good consensus offset
		response["corrected"] = clock.Format(now.Add(st.Offset).UTC(), clock.RFC3339)
		response["offset"] = clock.FormatOffset(ntp.Millis(st.Offset))
	}

	writeJSON(w, http.StatusOK, response)
}

// logEntryResponse is the JSON form of logger.LogEntry
type logEntryResponse struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.logs == nil {
		http.Error(w, "Log buffer not enabled", http.StatusNotFound)
		return
	}

	n := defaultLogEntries
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(parsed, maxLogEntries)
	}
	entries := s.logs.Recent(n)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, e := range entries {
			fmt.Fprintln(w, logger.FormatEntry(e))
		}
		return
	}

	resp := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := logEntryResponse{
			Time:    e.Timestamp.UTC().Format(time.RFC3339Nano),
			Level:   e.Level,
			Message: e.Message,
		}
		if len(e.Attrs) > 0 {
			item.Attrs = make(map[string]interface{}, len(e.Attrs))
			for k, v := range e.Attrs {
				// Errors and durations have no useful JSON form of their own
				switch v := v.(type) {
				case error:
					item.Attrs[k] = v.Error()
				case time.Duration:
					item.Attrs[k] = v.String()
				default:
					item.Attrs[k] = v
				}
			}
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": resp})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
